package repository

import (
	"context"

	"coffeeshop/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Redisが無い環境でのGuestDeviceStore
type GuestDeviceGormStore struct {
	db *gorm.DB
}

func NewGuestDeviceGormStore(db *gorm.DB) *GuestDeviceGormStore {
	return &GuestDeviceGormStore{db: db}
}

func (s *GuestDeviceGormStore) Get(ctx context.Context, deviceID string) (int64, bool, error) {
	var d model.GuestDevice
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&d).Error
	if isNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return d.UserID, true, nil
}

// INSERT ... ON CONFLICT DO NOTHING で先勝ち。負けたら勝者を読み直す
func (s *GuestDeviceGormStore) SetIfAbsent(ctx context.Context, deviceID string, userID int64) (int64, bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.GuestDevice{DeviceID: deviceID, UserID: userID})
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected > 0 {
		return userID, true, nil
	}

	winner, found, err := s.Get(ctx, deviceID)
	if err != nil {
		return 0, false, err
	}
	if !found {
		// 直後に消された場合
		return 0, false, gorm.ErrRecordNotFound
	}
	return winner, false, nil
}
