package usecase_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"coffeeshop/internal/domain/model"
	repo "coffeeshop/internal/repository"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Repository mocks
// =====================

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) IncrementTokenVersion(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *UserRepoMock) Delete(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type GuestStoreMock struct{ mock.Mock }

func (m *GuestStoreMock) Get(ctx context.Context, deviceID string) (int64, bool, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *GuestStoreMock) SetIfAbsent(ctx context.Context, deviceID string, userID int64) (int64, bool, error) {
	args := m.Called(ctx, deviceID, userID)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

type IdentityProviderMock struct{ mock.Mock }

func (m *IdentityProviderMock) SignUp(ctx context.Context, in repo.SignUpInput) (*model.User, error) {
	args := m.Called(ctx, in)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *IdentityProviderMock) SignIn(ctx context.Context, email string, password string) (repo.Session, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(repo.Session)
	return s, args.Error(1)
}

func (m *IdentityProviderMock) SignInGuest(ctx context.Context, userID int64) (repo.Session, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(repo.Session)
	return s, args.Error(1)
}

func (m *IdentityProviderMock) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	args := m.Called(ctx, token)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *IdentityProviderMock) SignOut(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type AuthValidatorMock struct{ mock.Mock }

func (m *AuthValidatorMock) ValidateRegister(ctx context.Context, email string, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *AuthValidatorMock) ValidateLogin(ctx context.Context, email string, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *AuthValidatorMock) ValidateForceLogout(ctx context.Context, targetUserID int64) error {
	args := m.Called(ctx, targetUserID)
	return args.Error(0)
}

// 注文済み行の削除だけ差し替える（他はメモリDBへ）
type clearFailCart struct {
	repo.CartItemRepository
	err error
}

func (c *clearFailCart) DeleteByIDs(ctx context.Context, userID int64, cartItemIDs []int64) error {
	return c.err
}

// 削除の直前に別の行を足す
type addBeforeClearCart struct {
	repo.CartItemRepository
	line model.CartItem
}

func (c *addBeforeClearCart) DeleteByIDs(ctx context.Context, userID int64, cartItemIDs []int64) error {
	if err := c.CartItemRepository.UpsertLine(ctx, c.line); err != nil {
		return err
	}
	return c.CartItemRepository.DeleteByIDs(ctx, userID, cartItemIDs)
}

// ブローカーが応答しない状態（releaseが閉じられるまで返らない）
type stuckWriter struct {
	release chan struct{}
	writes  atomic.Int32
}

func (w *stuckWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	select {
	case <-w.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	w.writes.Add(1)
	return nil
}

func (w *stuckWriter) Close() error { return nil }

type FavoriteRepoMock struct{ mock.Mock }

func (m *FavoriteRepoMock) Add(ctx context.Context, userID int64, productID int64) error {
	args := m.Called(ctx, userID, productID)
	return args.Error(0)
}

func (m *FavoriteRepoMock) Remove(ctx context.Context, userID int64, productID int64) error {
	args := m.Called(ctx, userID, productID)
	return args.Error(0)
}

func (m *FavoriteRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Favorite, error) {
	args := m.Called(ctx, userID)
	favs, _ := args.Get(0).([]model.Favorite)
	return favs, args.Error(1)
}

// =====================
// Event publisher
// =====================

type recordedEvent struct {
	Kind   string
	Order  model.Order
	Prev   model.OrderStatus
	Failed bool
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (r *eventRecorder) OrderCreated(ctx context.Context, o model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Kind: "created", Order: o, Failed: r.err != nil})
	return r.err
}

func (r *eventRecorder) StatusChanged(ctx context.Context, o model.Order, prev model.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Kind: "status_changed", Order: o, Prev: prev, Failed: r.err != nil})
	return r.err
}

func (r *eventRecorder) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

// =====================
// Helpers
// =====================

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// HTTPErrorの実装詳細に依存しない
func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}
