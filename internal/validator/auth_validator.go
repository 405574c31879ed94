package validator

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"coffeeshop/internal/repository"
	"coffeeshop/internal/usecase"
)

// 簡易メール形式
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// パスワード最低文字数
const minPasswordLen = 8

type authValidator struct {
	users repository.UserRepository
}

// Usecaseは interface を依存注入
func NewAuthValidator(users repository.UserRepository) usecase.AuthValidator {
	return &authValidator{users: users}
}

// サインアップの入力を検証
func (v *authValidator) ValidateRegister(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)

	// 必須チェック
	if email == "" || password == "" {
		return usecase.NewHTTPError(http.StatusBadRequest, "email and password required")
	}
	if !emailRe.MatchString(email) {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid email")
	}
	if len(password) < minPasswordLen {
		return usecase.NewHTTPError(http.StatusBadRequest, "password too short")
	}

	// email重複チェック（最終的にはDBの一意制約で弾く）
	_, err := v.users.FindByEmail(ctx, email)
	if err == nil {
		return usecase.NewHTTPError(http.StatusConflict, "email already used")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return usecase.NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return nil
}

// ログインの入力を検証
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)

	if email == "" || password == "" {
		return usecase.NewHTTPError(http.StatusBadRequest, "email and password required")
	}
	if !emailRe.MatchString(email) {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid email")
	}
	return nil
}

// 強制ログアウトの入力を検証
func (v *authValidator) ValidateForceLogout(ctx context.Context, targetUserID int64) error {
	if targetUserID <= 0 {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return nil
}
