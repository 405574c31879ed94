package model

type StockStatus string

const (
	StockStatusInStock    StockStatus = "In Stock"
	StockStatusRunOutSoon StockStatus = "Run Out Soon"
	StockStatusOutOfStock StockStatus = "Out of Stock"
)

// この数以下なら「残りわずか」
const runOutSoonThreshold int64 = 1

// 在庫数から表示用ステータスを決める
func DeriveStockStatus(stocks int64) StockStatus {
	switch {
	case stocks <= 0:
		return StockStatusOutOfStock
	case stocks <= runOutSoonThreshold:
		return StockStatusRunOutSoon
	default:
		return StockStatusInStock
	}
}

// 在庫を減らした結果（0で止める）
func DecrementStock(stocks int64, qty int64) int64 {
	next := stocks - qty
	if next < 0 {
		return 0
	}
	return next
}
