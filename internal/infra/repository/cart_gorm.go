package repository

import (
	"context"
	"errors"
	"time"

	"coffeeshop/internal/domain/model"
	repo "coffeeshop/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// カート明細を一覧取得（追加順）
func (r *CartGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	return items, nil
}

// 同じ(user, product, size, flavor)なら数量加算
// INSERT ... ON CONFLICT DO UPDATE の1文で行うので、連打しても加算が消えない
func (r *CartGormRepository) UpsertLine(ctx context.Context, line model.CartItem) error {
	if line.Quantity <= 0 {
		return errors.New("invalid quantity")
	}

	now := time.Now()
	line.ID = 0
	line.CreatedAt = now
	line.UpdatedAt = now

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "product_id"},
				{Name: "size"},
				{Name: "flavor"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + EXCLUDED.quantity"),
				"updated_at": now,
			}),
		}).
		Create(&line).Error
}

// 数量をdeltaだけ変える
// 1以上になるなら条件付きUPDATE、ならないなら条件付きDELETE（読んでから書かない）
func (r *CartGormRepository) AdjustQuantity(ctx context.Context, userID int64, cartItemID int64, delta int64) (int64, bool, bool, error) {
	var (
		qty     int64
		removed bool
		found   bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var updated []model.CartItem
		res := tx.Model(&updated).
			Clauses(clause.Returning{Columns: []clause.Column{{Name: "quantity"}}}).
			Where("id = ? AND user_id = ? AND quantity + ? >= 1", cartItemID, userID, delta).
			Update("quantity", gorm.Expr("quantity + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			found = true
			if len(updated) > 0 {
				qty = updated[0].Quantity
			}
			return nil
		}

		// 1未満になる場合は削除
		del := tx.
			Where("id = ? AND user_id = ? AND quantity + ? < 1", cartItemID, userID, delta).
			Delete(&model.CartItem{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected > 0 {
			found = true
			removed = true
		}
		return nil
	})
	if err != nil {
		return 0, false, false, err
	}

	return qty, removed, found, nil
}

// 明細を削除
func (r *CartGormRepository) DeleteByID(ctx context.Context, userID int64, cartItemID int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", cartItemID, userID).
		Delete(&model.CartItem{})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 指定した明細だけ削除（注文に入った行）
func (r *CartGormRepository) DeleteByIDs(ctx context.Context, userID int64, cartItemIDs []int64) error {
	if len(cartItemIDs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, cartItemIDs).
		Delete(&model.CartItem{}).Error
}
