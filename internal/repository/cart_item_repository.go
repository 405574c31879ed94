package repository

import (
	"context"

	"coffeeshop/internal/domain/model"
)

type CartItemRepository interface {
	ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error)

	// (user, product, size, flavor)が同じなら数量を加算。1回の更新で行う
	UpsertLine(ctx context.Context, line model.CartItem) error

	// 数量をdeltaだけ変える。1未満になる場合は行を削除する
	// 行が無ければ found=false
	AdjustQuantity(ctx context.Context, userID int64, cartItemID int64, delta int64) (qty int64, removed bool, found bool, err error)

	DeleteByID(ctx context.Context, userID int64, cartItemID int64) error
	// 注文に入れた行だけ消す（他の行は残す）
	DeleteByIDs(ctx context.Context, userID int64, cartItemIDs []int64) error
}
