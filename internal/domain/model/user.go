package model

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// ロールとして受け付ける値か
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	}
	return false
}

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'user'"`
	FirstName    string `gorm:"type:varchar(100)"`
	LastName     string `gorm:"type:varchar(100)"`
	TokenVersion int    `gorm:"not null;default:0"`
	IsActive     bool   `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// 権限チェックはここに集約する（画面ごとにロール文字列を比べない）

// お気に入りは通常ユーザーだけ
func CanFavorite(r Role) bool {
	return r == RoleUser
}

// 管理画面はADMINだけ
func CanAccessAdmin(r Role) bool {
	return r == RoleAdmin
}

// カート・注文はゲストも可
func CanOrder(r Role) bool {
	return r == RoleUser || r == RoleGuest || r == RoleAdmin
}
