package model

import (
	"strings"
	"time"
)

// フレーバー未選択
const FlavorNone = "None"

// カートの明細（1行 = 商品・サイズ・フレーバーの組み合わせ）
// 価格は持たない。表示時に商品の現在価格から計算する。
type CartItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:ux_cart_items_line,priority:1" json:"user_id"`
	ProductID int64     `gorm:"not null;uniqueIndex:ux_cart_items_line,priority:2;index" json:"product_id"`
	Size      Size      `gorm:"type:varchar(2);not null;uniqueIndex:ux_cart_items_line,priority:3" json:"size"`
	Flavor    string    `gorm:"type:varchar(50);not null;default:'None';uniqueIndex:ux_cart_items_line,priority:4" json:"flavor"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 空は"None"にそろえる（マージキーがぶれないように）
func NormalizeFlavor(flavor string) string {
	f := strings.TrimSpace(flavor)
	if f == "" || strings.EqualFold(f, FlavorNone) {
		return FlavorNone
	}
	return f
}

// 価格付きの明細
type PricedLine struct {
	Quantity  int64
	UnitPrice int64
}

// 合計（割引なし）
func ComputeTotal(lines []PricedLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Quantity * l.UnitPrice
	}
	return total
}
