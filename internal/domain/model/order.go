package model

import "time"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "Pending"
	OrderStatusProcessing     OrderStatus = "Processing"
	OrderStatusReadyForPickup OrderStatus = "Ready for Pickup"
	OrderStatusCompleted      OrderStatus = "Completed"
	OrderStatusCanceled       OrderStatus = "Canceled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusReadyForPickup, OrderStatusCompleted, OrderStatusCanceled:
		return true
	}
	return false
}

type Pickup string

const (
	PickupTakeOut Pickup = "Take-Out"
	PickupDineIn  Pickup = "Dine-In"
)

func (p Pickup) Valid() bool {
	return p == PickupTakeOut || p == PickupDineIn
}

type Payment string

const (
	PaymentCash  Payment = "Cash"
	PaymentGCash Payment = "G-cash"
)

func (p Payment) Valid() bool {
	return p == PaymentCash || p == PaymentGCash
}

type Order struct {
	ID      int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID  int64       `gorm:"not null;index;uniqueIndex:ux_orders_idempotency,priority:1" json:"user_id"`
	Pickup  Pickup      `gorm:"type:varchar(20);not null" json:"pickup"`
	Payment Payment     `gorm:"type:varchar(20);not null" json:"payment"`
	Total   int64       `gorm:"not null" json:"total"`
	Status  OrderStatus `gorm:"type:varchar(30);not null;index" json:"status"`

	// 二重送信防止（任意）
	IdempotencyKey *string `gorm:"type:varchar(255);uniqueIndex:ux_orders_idempotency,priority:2" json:"-"`

	// 在庫を引き当て済みか（1注文1回だけ）
	StockReconciledAt *time.Time `json:"stock_reconciled_at,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 前回見たステータスから変わった注文があるか（通知バッジ用）
func HasUnseenUpdate(previous map[int64]OrderStatus, current []Order) bool {
	for _, o := range current {
		prev, ok := previous[o.ID]
		if !ok {
			continue
		}
		if prev != o.Status {
			return true
		}
	}
	return false
}
