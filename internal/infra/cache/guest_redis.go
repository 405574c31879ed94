package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const guestKeyPrefix = "guest:device:"

// 端末キー → ゲストアカウントID をRedisに持つ
// SETNXで先勝ちにする（同じ端末から同時にゲスト作成が来ても1つに収束）
type GuestDeviceRedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// ttl=0 なら無期限
func NewGuestDeviceRedisStore(client redis.Cmdable, ttl time.Duration) *GuestDeviceRedisStore {
	return &GuestDeviceRedisStore{client: client, ttl: ttl}
}

func (s *GuestDeviceRedisStore) Get(ctx context.Context, deviceID string) (int64, bool, error) {
	v, err := s.client.Get(ctx, guestKeyPrefix+deviceID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *GuestDeviceRedisStore) SetIfAbsent(ctx context.Context, deviceID string, userID int64) (int64, bool, error) {
	key := guestKeyPrefix + deviceID

	ok, err := s.client.SetNX(ctx, key, strconv.FormatInt(userID, 10), s.ttl).Result()
	if err != nil {
		return 0, false, err
	}
	if ok {
		return userID, true, nil
	}

	// 負けたので勝った側を読む
	winner, found, err := s.Get(ctx, deviceID)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, errors.New("guest device key vanished")
	}
	return winner, false, nil
}

// REDIS_ADDRからクライアントを作り、疎通確認する
func NewClient(ctx context.Context, addr string, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
