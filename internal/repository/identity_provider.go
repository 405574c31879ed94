package repository

import (
	"context"
	"errors"

	"coffeeshop/internal/domain/model"
)

var (
	// メールかパスワードが違う
	ErrInvalidCredentials = errors.New("invalid credentials")
	// 署名不正・期限切れ・失効済み
	ErrInvalidToken = errors.New("invalid token")
	// 停止中のアカウント
	ErrUserInactive = errors.New("user inactive")
)

type SignUpInput struct {
	Email     string
	Password  string
	Role      model.Role
	FirstName string
	LastName  string
}

// 発行したセッション（アクセストークン）
type Session struct {
	AccessToken  string
	ExpiresIn    int
	TokenVersion int
	User         model.User
}

// アカウント管理とセッション発行の約束
type IdentityProvider interface {
	// emailが重複ならErrDuplicate
	SignUp(ctx context.Context, in SignUpInput) (*model.User, error)
	SignIn(ctx context.Context, email string, password string) (Session, error)
	// ゲストはパスワードを持たないのでIDでサインインする（ゲスト以外はErrInvalidCredentials）
	SignInGuest(ctx context.Context, userID int64) (Session, error)
	CurrentUser(ctx context.Context, token string) (*model.User, error)
	// 発行済みトークンを全部無効にする
	SignOut(ctx context.Context, userID int64) error
}
