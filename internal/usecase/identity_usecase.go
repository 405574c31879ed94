package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"coffeeshop/internal/domain/model"
	repo "coffeeshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, email string, password string) error
	ValidateLogin(ctx context.Context, email string, password string) error
	ValidateForceLogout(ctx context.Context, targetUserID int64) error
}

// リクエストごとに「誰か」を決める。
// セッションが無ければ端末キーからゲストを引き当てる（無ければ作る）。
type IdentityUsecase struct {
	provider    repo.IdentityProvider
	users       repo.UserRepository
	guests      repo.GuestDeviceStore
	validator   AuthValidator
	guestDomain string
	log         zerolog.Logger

	// 同じ端末からの同時リクエストを1回の作成にまとめる
	group singleflight.Group
}

func NewIdentityUsecase(
	provider repo.IdentityProvider,
	users repo.UserRepository,
	guests repo.GuestDeviceStore,
	validator AuthValidator,
	guestDomain string,
	log zerolog.Logger,
) *IdentityUsecase {
	return &IdentityUsecase{
		provider:    provider,
		users:       users,
		guests:      guests,
		validator:   validator,
		guestDomain: guestDomain,
		log:         log,
	}
}

type ResolveInput struct {
	SessionToken string
	DeviceID     string
}

type Identity struct {
	UserID    int64      `json:"user_id"`
	Role      model.Role `json:"role"`
	Token     string     `json:"access_token"`
	ExpiresIn int        `json:"expires_in,omitempty"`
	IsGuest   bool       `json:"is_guest"`
}

func (u *IdentityUsecase) Resolve(ctx context.Context, in ResolveInput) (Identity, error) {
	// セッションが生きていればそのアカウント
	if tok := strings.TrimSpace(in.SessionToken); tok != "" {
		user, err := u.provider.CurrentUser(ctx, tok)
		switch {
		case err == nil:
			return Identity{
				UserID:  user.ID,
				Role:    user.Role,
				Token:   tok,
				IsGuest: user.Role == model.RoleGuest,
			}, nil
		case errors.Is(err, repo.ErrInvalidToken), errors.Is(err, repo.ErrUserInactive):
			// 期限切れ等はゲスト解決に回す
		default:
			u.log.Error().Err(err).Msg("identity provider unavailable")
			return Identity{}, wrapHTTPError(http.StatusServiceUnavailable, "auth unavailable", ErrAuthUnavailable)
		}
	}

	deviceID := strings.TrimSpace(in.DeviceID)
	if deviceID == "" || len(deviceID) > 255 {
		return Identity{}, NewHTTPError(http.StatusBadRequest, "invalid device_id")
	}

	// 共有の処理は最初の呼び出し元のキャンセルに引きずられない
	ch := u.group.DoChan(deviceID, func() (interface{}, error) {
		return u.resolveGuest(context.WithoutCancel(ctx), deviceID)
	})
	select {
	case <-ctx.Done():
		return Identity{}, wrapHTTPError(http.StatusServiceUnavailable, "auth unavailable", ErrAuthUnavailable)
	case res := <-ch:
		if res.Err != nil {
			return Identity{}, res.Err
		}
		return res.Val.(Identity), nil
	}
}

func (u *IdentityUsecase) resolveGuest(ctx context.Context, deviceID string) (Identity, error) {
	unavailable := wrapHTTPError(http.StatusServiceUnavailable, "auth unavailable", ErrAuthUnavailable)

	userID, found, err := u.guests.Get(ctx, deviceID)
	if err != nil {
		u.log.Error().Err(err).Str("device_id", deviceID).Msg("guest store read failed")
		return Identity{}, unavailable
	}

	if !found {
		userID, err = u.provisionGuest(ctx, deviceID)
		if err != nil {
			return Identity{}, unavailable
		}
	}

	sess, err := u.provider.SignInGuest(ctx, userID)
	if err != nil {
		u.log.Error().Err(err).Int64("user_id", userID).Str("device_id", deviceID).Msg("guest sign-in failed")
		return Identity{}, unavailable
	}

	return Identity{
		UserID:    sess.User.ID,
		Role:      sess.User.Role,
		Token:     sess.AccessToken,
		ExpiresIn: sess.ExpiresIn,
		IsGuest:   true,
	}, nil
}

// ゲストを作って端末キーに登録する。別プロセスが先に登録していたらそちらを使う
func (u *IdentityUsecase) provisionGuest(ctx context.Context, deviceID string) (int64, error) {
	guestID := uuid.NewString()

	user, err := u.provider.SignUp(ctx, repo.SignUpInput{
		Email:    "guest_" + guestID + "@" + u.guestDomain,
		Password: uuid.NewString(),
		Role:     model.RoleGuest,
	})
	if err != nil {
		u.log.Error().Err(err).Str("device_id", deviceID).Msg("guest sign-up failed")
		return 0, err
	}

	winner, stored, err := u.guests.SetIfAbsent(ctx, deviceID, user.ID)
	if err != nil {
		u.log.Error().Err(err).Str("device_id", deviceID).Msg("guest store write failed")
		u.removeOrphan(ctx, user.ID, deviceID)
		return 0, err
	}
	if !stored {
		u.removeOrphan(ctx, user.ID, deviceID)
		return winner, nil
	}
	return user.ID, nil
}

func (u *IdentityUsecase) removeOrphan(ctx context.Context, userID int64, deviceID string) {
	if err := u.users.Delete(ctx, userID); err != nil {
		u.log.Error().Err(err).Int64("user_id", userID).Str("device_id", deviceID).Msg("orphan guest account left behind")
		return
	}
	u.log.Warn().Int64("user_id", userID).Str("device_id", deviceID).Msg("orphan guest account removed")
}
