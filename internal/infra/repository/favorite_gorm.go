package repository

import (
	"context"

	"coffeeshop/internal/domain/model"
	repo "coffeeshop/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FavoriteGormRepository struct {
	db *gorm.DB
}

func NewFavoriteGormRepository(db *gorm.DB) *FavoriteGormRepository {
	return &FavoriteGormRepository{db: db}
}

// 二重登録は無視（user_id + product_id で一意）
func (r *FavoriteGormRepository) Add(ctx context.Context, userID int64, productID int64) error {
	fav := model.Favorite{UserID: userID, ProductID: productID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&fav).Error
}

func (r *FavoriteGormRepository) Remove(ctx context.Context, userID int64, productID int64) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&model.Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *FavoriteGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.Favorite, error) {
	favs := []model.Favorite{}
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Find(&favs).Error; err != nil {
		return []model.Favorite{}, err
	}
	return favs, nil
}
