package repository

import (
	"context"

	"coffeeshop/internal/domain/model"
)

type FavoriteRepository interface {
	// 既にあれば何もしない
	Add(ctx context.Context, userID int64, productID int64) error
	Remove(ctx context.Context, userID int64, productID int64) error
	ListByUserID(ctx context.Context, userID int64) ([]model.Favorite, error)
}
