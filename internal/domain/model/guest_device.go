package model

import "time"

// 端末ごとのゲストアカウント（Redisが無い環境用）
type GuestDevice struct {
	DeviceID  string    `gorm:"type:varchar(128);primaryKey"`
	UserID    int64     `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}
