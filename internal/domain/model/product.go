package model

import (
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Price       int64          `gorm:"not null" json:"price"`
	Stocks      int64          `gorm:"not null;default:0" json:"stocks"`
	StockStatus StockStatus    `gorm:"type:varchar(20);not null" json:"stock_status"`
	Category    string         `gorm:"type:varchar(100);index" json:"category"`
	ImageURL    string         `gorm:"type:text" json:"image_url"`
	Description string         `gorm:"type:text" json:"description"`
	Detail      string         `gorm:"type:text" json:"detail"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
