package repository

import (
	"coffeeshop/internal/domain/model"
	"context"
)

// productsのstocks/stock_statusを書くのはここだけ
type InventoryRepository interface {
	// 在庫の現在値とステータスを設定
	SetStock(ctx context.Context, productID int64, stocks int64, status model.StockStatus) error

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
