package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coffeeshop/internal/domain/model"
	repo "coffeeshop/internal/repository"

	"github.com/rs/zerolog"
)

// 在庫調整履歴の理由
const reasonOrderCompleted = "order completed"

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	events OrderEventPublisher
	log    zerolog.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, events OrderEventPublisher, log zerolog.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, events: events, log: log}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return []OrderOutput{}, wrapHTTPError(http.StatusBadRequest, "invalid status", ErrInvalidStatus)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "from must be <= to")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs, err = withItems(ctx, r, orders)
		return err
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// ステータス更新。Completedになった時だけ在庫を引き当てる（1注文1回）
func (u *AdminOrderUsecase) TransitionStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus := model.OrderStatus(strings.TrimSpace(in.Status))
	if !newStatus.Valid() {
		return OrderOutput{}, wrapHTTPError(http.StatusBadRequest, "invalid status", ErrInvalidStatus)
	}

	var (
		out          OrderOutput
		updated      model.Order
		prev         model.OrderStatus
		changed      bool
		stockTouched bool
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 行ロックで同じ注文への更新を直列にする
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// すでに同じなら何もしない（200）
		prev = o.Status
		if o.Status == newStatus {
			out = toOrderOutput(o, items)
			return nil
		}

		now := time.Now()
		if newStatus == model.OrderStatusCompleted && o.StockReconciledAt == nil {
			touched, err := u.reconcileStock(ctx, r, actorAdminUserID, o, items, now)
			stockTouched = touched
			if err != nil {
				return err
			}
			o.StockReconciledAt = &now
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, newStatus); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// 監査ログ（UPDATE_ORDER_STATUS）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   fmt.Sprintf(`{"status":%q}`, string(prev)),
			AfterJSON:    fmt.Sprintf(`{"status":%q}`, string(newStatus)),
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		o.Status = newStatus
		o.UpdatedAt = now
		updated = o
		out = toOrderOutput(o, items)
		changed = true
		return nil
	})

	if err != nil {
		// tx内で返したエラーはロールバック済み（再実行できる）
		if _, ok := AsHTTPError(err); ok {
			return OrderOutput{}, err
		}
		// commitの結果が分からない。在庫を触っていたら減算が残った可能性がある
		if stockTouched {
			u.log.Error().Err(err).
				Int64("order_id", orderID).
				Int64("actor_user_id", actorAdminUserID).
				Msg("stock reconciliation outcome unknown")
			return OrderOutput{}, wrapHTTPError(http.StatusInternalServerError, "stock reconciliation outcome unknown", ErrPartialReconciliation)
		}
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if changed {
		if err := u.events.StatusChanged(ctx, updated, prev); err != nil {
			u.log.Warn().Err(err).Int64("order_id", orderID).Msg("order event not published")
		}
	}
	return out, nil
}

// 注文明細ぶん在庫を減らす（0で止める）。消えた商品は飛ばす
func (u *AdminOrderUsecase) reconcileStock(ctx context.Context, r repo.TxRepos, actorID int64, o model.Order, items []model.OrderItem, now time.Time) (bool, error) {
	touched := false
	changes := make([]string, 0, len(items))

	for _, it := range items {
		p, err := r.Products().FindByIDForUpdate(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			u.log.Warn().
				Int64("order_id", o.ID).
				Int64("product_id", it.ProductID).
				Int64("quantity", it.Quantity).
				Msg("product missing, stock not reconciled")
			continue
		}
		if err != nil {
			return touched, NewHTTPError(http.StatusInternalServerError, "db error")
		}

		next := model.DecrementStock(p.Stocks, it.Quantity)
		if err := r.Inventory().SetStock(ctx, p.ID, next, model.DeriveStockStatus(next)); err != nil {
			return touched, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		touched = true

		orderID := o.ID
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   p.ID,
			ActorUserID: actorID,
			OrderID:     &orderID,
			Delta:       next - p.Stocks,
			Reason:      reasonOrderCompleted,
			CreatedAt:   now,
		}); err != nil {
			return touched, NewHTTPError(http.StatusInternalServerError, "db error")
		}

		changes = append(changes, fmt.Sprintf(`{"product_id":%d,"before":%d,"after":%d}`, p.ID, p.Stocks, next))
	}

	if err := r.Orders().MarkStockReconciled(ctx, o.ID, now); err != nil {
		return touched, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// 監査ログ（RECONCILE_STOCK）
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionReconcileStock,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   o.ID,
		BeforeJSON:   `{"stock_reconciled":false}`,
		AfterJSON:    `{"stock_reconciled":true,"products":[` + strings.Join(changes, ",") + `]}`,
		CreatedAt:    now,
	}); err != nil {
		return touched, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return touched, nil
}

// 期間パラメータ（RFC3339）。空ならnil
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
