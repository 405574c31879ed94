package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"coffeeshop/internal/domain/model"
	"coffeeshop/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// usersテーブル + bcrypt + JWT(HS256) でのIdentityProvider
type Provider struct {
	users  repository.UserRepository
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewProvider(users repository.UserRepository, secret string, ttl time.Duration) *Provider {
	return &Provider{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

func (p *Provider) SignUp(ctx context.Context, in repository.SignUpInput) (*model.User, error) {
	if !in.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", in.Role)
	}

	//パスワードは必ずハッシュ化して保存
	pwHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(pwHash),
		Role:         in.Role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		TokenVersion: 0,
		IsActive:     true,
	}
	if err := p.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (p *Provider) SignIn(ctx context.Context, email string, password string) (repository.Session, error) {
	user, err := p.users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Session{}, repository.ErrInvalidCredentials
	}
	if err != nil {
		return repository.Session{}, err
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return repository.Session{}, repository.ErrUserInactive
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return repository.Session{}, repository.ErrInvalidCredentials
	}

	return p.startSession(ctx, user)
}

func (p *Provider) SignInGuest(ctx context.Context, userID int64) (repository.Session, error) {
	user, err := p.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Session{}, repository.ErrInvalidCredentials
	}
	if err != nil {
		return repository.Session{}, err
	}
	if user.Role != model.RoleGuest {
		return repository.Session{}, repository.ErrInvalidCredentials
	}
	if !user.IsActive {
		return repository.Session{}, repository.ErrUserInactive
	}

	return p.startSession(ctx, user)
}

func (p *Provider) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	claims, err := ParseToken(p.secret, token)
	if err != nil {
		return nil, repository.ErrInvalidToken
	}

	user, err := p.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, repository.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	//強制ログアウト・ログアウト済み
	if user.TokenVersion != claims.TokenVersion {
		return nil, repository.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, repository.ErrUserInactive
	}
	return user, nil
}

func (p *Provider) SignOut(ctx context.Context, userID int64) error {
	return p.users.IncrementTokenVersion(ctx, userID)
}

func (p *Provider) startSession(ctx context.Context, user *model.User) (repository.Session, error) {
	//last_login更新（失敗してもログインは通す）
	now := p.now()
	user.LastLoginAt = &now
	_ = p.users.Update(ctx, user)

	token, err := IssueToken(p.secret, user, now, p.ttl)
	if err != nil {
		return repository.Session{}, err
	}

	return repository.Session{
		AccessToken:  token,
		ExpiresIn:    int(p.ttl.Seconds()),
		TokenVersion: user.TokenVersion,
		User:         *user,
	}, nil
}

// トークンから取り出した値
type Claims struct {
	UserID       int64
	Role         model.Role
	TokenVersion int
}

// jwt発行
func IssueToken(secret []byte, user *model.User, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(user.ID, 10),
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// 署名・期限を検証してclaimsを取り出す
func ParseToken(secret []byte, raw string) (Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}

	userID, err := claimInt64(mc["sub"])
	if err != nil || userID <= 0 {
		return Claims{}, errors.New("invalid sub")
	}
	role, _ := mc["role"].(string)
	if !model.Role(role).Valid() {
		return Claims{}, errors.New("invalid role")
	}
	tv, err := claimInt64(mc["tv"])
	if err != nil || tv < 0 {
		return Claims{}, errors.New("invalid tv")
	}

	return Claims{UserID: userID, Role: model.Role(role), TokenVersion: int(tv)}, nil
}

func claimInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid number")
	}
}
