package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"coffeeshop/internal/domain/model"
	repo "coffeeshop/internal/repository"

	"github.com/rs/zerolog"
)

// 注文後にカートを空にできなかった
const WarningCartNotCleared = "cart_not_cleared"

// 同じキーの注文が同時に作られた
var errIdempotencyRace = errors.New("idempotency race")

// 注文イベントの送信先（届かなくても注文は成立させる）
type OrderEventPublisher interface {
	OrderCreated(ctx context.Context, o model.Order) error
	StatusChanged(ctx context.Context, o model.Order, prev model.OrderStatus) error
}

type OrderUsecase struct {
	tx        repo.TransactionManager
	cartItems repo.CartItemRepository
	events    OrderEventPublisher
	log       zerolog.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, cartItems repo.CartItemRepository, events OrderEventPublisher, log zerolog.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, cartItems: cartItems, events: events, log: log}
}

type CheckoutInput struct {
	Pickup         string
	Payment        string
	IdempotencyKey string
}

type OrderItemOutput struct {
	ProductID int64      `json:"product_id"`
	Name      string     `json:"name"`
	Size      model.Size `json:"size"`
	Flavor    string     `json:"flavor"`
	Price     int64      `json:"price"`
	Quantity  int64      `json:"quantity"`
	LineTotal int64      `json:"line_total"`
}

type OrderOutput struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"user_id"`
	Status    string            `json:"status"`
	Pickup    string            `json:"pickup"`
	Payment   string            `json:"payment"`
	Total     int64             `json:"total"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Items     []OrderItemOutput `json:"items"`
}

type CheckoutOutput struct {
	Order    OrderOutput `json:"order"`
	Warnings []string    `json:"warnings,omitempty"`
}

type OrderUpdatesOutput struct {
	Statuses        map[int64]model.OrderStatus `json:"statuses"`
	HasUnseenUpdate bool                        `json:"has_unseen_update"`
}

// カートを注文に変換する
func (u *OrderUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	pickup := model.Pickup(strings.TrimSpace(in.Pickup))
	if !pickup.Valid() {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid pickup")
	}
	payment := model.Payment(strings.TrimSpace(in.Payment))
	if !payment.Valid() {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}

	var out OrderOutput
	var created model.Order
	var orderedLineIDs []int64
	replayed := false

	//注文処理はトランザクション
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := u.findByKey(ctx, r, userID, key)
			if err != nil {
				return err
			}
			if found {
				out = existing
				replayed = true
				return nil
			}
		}

		lines, err := r.CartItems().ListByUserID(ctx, userID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//スナップショット（商品が消えた行は飛ばす）
		now := time.Now()
		items := make([]model.OrderItem, 0, len(lines))
		priced := make([]model.PricedLine, 0, len(lines))
		lineIDs := make([]int64, 0, len(lines))
		for _, l := range lines {
			p, err := r.Products().FindByID(ctx, l.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			unit := model.EffectiveUnitPrice(p.Price, l.Size)
			items = append(items, model.OrderItem{
				ProductID: l.ProductID,
				Name:      p.Name,
				Size:      l.Size,
				Flavor:    l.Flavor,
				Quantity:  l.Quantity,
				Price:     unit,
				CreatedAt: now,
			})
			priced = append(priced, model.PricedLine{Quantity: l.Quantity, UnitPrice: unit})
			lineIDs = append(lineIDs, l.ID)
		}
		if len(items) == 0 {
			return wrapHTTPError(http.StatusBadRequest, "cart empty", ErrEmptyCart)
		}

		// 注文作成
		order := model.Order{
			UserID:    userID,
			Pickup:    pickup,
			Payment:   payment,
			Total:     model.ComputeTotal(priced),
			Status:    model.OrderStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}

		orderID, err := r.Orders().Create(ctx, order)
		if errors.Is(err, repo.ErrDuplicate) && key != "" {
			return errIdempotencyRace
		}
		if err != nil {
			u.log.Error().Err(err).Int64("user_id", userID).Msg("order insert failed")
			return wrapHTTPError(http.StatusInternalServerError, "order creation failed", ErrOrderCreationFailed)
		}

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			u.log.Error().Err(err).Int64("user_id", userID).Msg("order items insert failed")
			return wrapHTTPError(http.StatusInternalServerError, "order creation failed", ErrOrderCreationFailed)
		}

		order.ID = orderID
		created = order
		orderedLineIDs = lineIDs
		out = toOrderOutput(order, items)
		return nil
	})

	//競合で負けたtxは使えないので取り直す
	if errors.Is(err, errIdempotencyRace) {
		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			existing, found, err := u.findByKey(ctx, r, userID, key)
			if err != nil {
				return err
			}
			if !found {
				return NewHTTPError(http.StatusConflict, "idempotency conflict")
			}
			out = existing
			return nil
		})
		replayed = true
	}
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return CheckoutOutput{}, err
		}
		return CheckoutOutput{}, wrapHTTPError(http.StatusInternalServerError, "order creation failed", ErrOrderCreationFailed)
	}

	res := CheckoutOutput{Order: out}
	if replayed {
		return res, nil
	}

	//注文に入った行だけカートから消す（注文は確定済みなので失敗しても返す）
	//商品が消えた行と、コミット後に追加された行は残る
	if err := u.cartItems.DeleteByIDs(ctx, userID, orderedLineIDs); err != nil {
		u.log.Warn().Err(err).Int64("user_id", userID).Int64("order_id", created.ID).Msg("cart not cleared after checkout")
		res.Warnings = append(res.Warnings, WarningCartNotCleared)
	}

	if err := u.events.OrderCreated(ctx, created); err != nil {
		u.log.Warn().Err(err).Int64("order_id", created.ID).Msg("order event not published")
	}

	return res, nil
}

func (u *OrderUsecase) findByKey(ctx context.Context, r repo.TxRepos, userID int64, key string) (OrderOutput, bool, error) {
	existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
	if err != nil {
		return OrderOutput{}, false, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !found {
		return OrderOutput{}, false, nil
	}

	items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
	if err != nil {
		return OrderOutput{}, false, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return toOrderOutput(existing, items), true, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//ページングでまずは固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
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

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 前回見たステータスと比べて通知バッジを出すか
func (u *OrderUsecase) CheckUpdates(ctx context.Context, userID int64, previous map[int64]model.OrderStatus) (OrderUpdatesOutput, error) {
	if userID <= 0 {
		return OrderUpdatesOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var orders []model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		orders, _, err = r.Orders().ListByUserID(ctx, userID, 1, 100)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return OrderUpdatesOutput{}, err
	}

	statuses := make(map[int64]model.OrderStatus, len(orders))
	for _, o := range orders {
		statuses[o.ID] = o.Status
	}

	return OrderUpdatesOutput{
		Statuses:        statuses,
		HasUnseenUpdate: model.HasUnseenUpdate(previous, orders),
	}, nil
}

// 一覧の注文に明細を付ける
func withItems(ctx context.Context, r repo.TxRepos, orders []model.Order) ([]OrderOutput, error) {
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	byOrder, err := r.OrderItems().ListByOrderIDs(ctx, ids)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o, byOrder[o.ID]))
	}
	return outs, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.Name,
			Size:      it.Size,
			Flavor:    it.Flavor,
			Price:     it.Price,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
		})
	}

	return OrderOutput{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    string(o.Status),
		Pickup:    string(o.Pickup),
		Payment:   string(o.Payment),
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
		Items:     outItems,
	}
}
