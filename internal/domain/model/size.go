package model

type Size string

const (
	SizeS Size = "S"
	SizeM Size = "M"
	SizeL Size = "L"
)

// サイズごとの加算額
var sizeDeltas = map[Size]int64{
	SizeS: 0,
	SizeM: 20,
	SizeL: 40,
}

func (s Size) Valid() bool {
	_, ok := sizeDeltas[s]
	return ok
}

// 未知のサイズは0
func (s Size) Delta() int64 {
	return sizeDeltas[s]
}

// 表示・注文時の単価
func EffectiveUnitPrice(basePrice int64, size Size) int64 {
	return basePrice + size.Delta()
}
