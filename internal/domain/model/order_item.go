package model

import "time"

// 注文明細。注文時点の名前・単価を保存する（商品が後で変わっても注文は変わらない）
type OrderItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64     `gorm:"not null;index" json:"order_id"`
	ProductID int64     `gorm:"not null;index" json:"product_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Size      Size      `gorm:"type:varchar(2);not null" json:"size"`
	Flavor    string    `gorm:"type:varchar(50);not null" json:"flavor"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	Price     int64     `gorm:"not null" json:"price"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (it OrderItem) LineTotal() int64 {
	return it.Price * it.Quantity
}
