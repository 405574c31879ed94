package repository

import (
	"context"

	"coffeeshop/internal/domain/model"
)

// 注文時点の商品名・サイズ・フレーバー・単価を持つ明細。作成後は書き換えない
type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)

	// 一覧画面用。注文ごとの明細を1回のクエリで引く（明細の無い注文はキー無し）
	ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error)
}
