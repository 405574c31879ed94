package repository

import (
	"context"
	"fmt"

	repo "coffeeshop/internal/repository"

	"gorm.io/gorm"
)

// 注文と在庫の行ロック待ちの上限
const lockTimeout = "5s"

// チェックアウト・ステータス更新・在庫調整で使う、tx付きのrepo一式
type txReposGorm struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	cartItems  repo.CartItemRepository
	inventory  repo.InventoryRepository
	products   repo.ProductRepository
	auditLogs  repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository         { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *txReposGorm) CartItems() repo.CartItemRepository   { return r.cartItems }
func (r *txReposGorm) Inventory() repo.InventoryRepository  { return r.inventory }
func (r *txReposGorm) Products() repo.ProductRepository     { return r.products }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository   { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// fnのエラーはそのまま返す。fnが成功した後の失敗はErrCommitFailedで包む
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	bodyDone := false

	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//FOR UPDATEで待ち続けない
		if err := tx.Exec("SET LOCAL lock_timeout = '" + lockTimeout + "'").Error; err != nil {
			return err
		}

		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			orders:     NewOrderGormRepository(tx),
			orderItems: NewOrderItemGormRepository(tx),
			cartItems:  NewCartGormRepository(tx),
			inventory:  NewInventoryGormRepository(tx),
			products:   NewProductGormRepository(tx),
			auditLogs:  NewAuditLogGormRepository(tx),
		}
		if err := fn(r); err != nil {
			return err
		}
		bodyDone = true
		return nil
	})
	if err != nil && bodyDone {
		return fmt.Errorf("%w: %v", repo.ErrCommitFailed, err)
	}
	return err
}
