package repository

import "context"

// 端末キー → ゲストアカウントIDの対応表。
// SetIfAbsentはcompare-and-set。負けた場合は勝った側のIDを返す。
type GuestDeviceStore interface {
	Get(ctx context.Context, deviceID string) (userID int64, found bool, err error)
	SetIfAbsent(ctx context.Context, deviceID string, userID int64) (winner int64, stored bool, err error)
}
