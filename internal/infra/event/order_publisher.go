package event

import (
	"context"

	"coffeeshop/internal/domain/model"
)

// 注文作成（送信はバックグラウンド）
func (p *OrderKafkaPublisher) OrderCreated(ctx context.Context, o model.Order) error {
	p.dispatch(ctx, OrderEvent{
		Type:    TypeOrderCreated,
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  string(o.Status),
		Total:   o.Total,
	})
	return nil
}

// ステータス変更（送信はバックグラウンド）
func (p *OrderKafkaPublisher) StatusChanged(ctx context.Context, o model.Order, prev model.OrderStatus) error {
	p.dispatch(ctx, OrderEvent{
		Type:       TypeOrderStatusChanged,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(o.Status),
		PrevStatus: string(prev),
		Total:      o.Total,
	})
	return nil
}

// KAFKA_BROKERS未設定のとき
type NopOrderPublisher struct{}

func (NopOrderPublisher) OrderCreated(ctx context.Context, o model.Order) error { return nil }

func (NopOrderPublisher) StatusChanged(ctx context.Context, o model.Order, prev model.OrderStatus) error {
	return nil
}
