package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"coffeeshop/internal/domain/model"
	repo "coffeeshop/internal/repository"
)

type UserDTO struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	TokenVersion int    `json:"token_version"`
	IsActive     bool   `json:"is_active"`
}

type JwtAccessTokenDTO struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

type AuthRegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type AuthRegisterResponse struct {
	User UserDTO `json:"user"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type ForceLogoutResponse struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int   `json:"new_token_version"`
}

func (u *IdentityUsecase) Register(ctx context.Context, req AuthRegisterRequest) (*AuthRegisterResponse, error) {
	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, req.Email, req.Password); err != nil {
		return nil, err
	}

	user, err := u.provider.SignUp(ctx, repo.SignUpInput{
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		Role:      model.RoleUser,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, NewHTTPError(http.StatusConflict, "email already used")
	}
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return &AuthRegisterResponse{User: toUserDTO(user)}, nil
}

func (u *IdentityUsecase) Login(ctx context.Context, req AuthLoginRequest) (*AuthLoginResponse, error) {
	if err := u.validator.ValidateLogin(ctx, req.Email, req.Password); err != nil {
		return nil, err
	}

	sess, err := u.provider.SignIn(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, repo.ErrInvalidCredentials):
		return nil, NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, repo.ErrUserInactive):
		//停止ユーザーはログイン不可
		return nil, NewHTTPError(http.StatusForbidden, "user inactive")
	case err != nil:
		u.log.Error().Err(err).Msg("sign-in failed")
		return nil, wrapHTTPError(http.StatusServiceUnavailable, "auth unavailable", ErrAuthUnavailable)
	}

	return &AuthLoginResponse{
		User: toUserDTO(&sess.User),
		Token: JwtAccessTokenDTO{
			AccessToken:  sess.AccessToken,
			ExpiresIn:    sess.ExpiresIn,
			TokenVersion: sess.TokenVersion,
		},
	}, nil
}

// token_versionを上げて発行済みトークンを全部無効にする
func (u *IdentityUsecase) Logout(ctx context.Context, userID int64) (*SuccessResponse, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := u.provider.SignOut(ctx, userID); err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return &SuccessResponse{Message: "logout success"}, nil
}

func (u *IdentityUsecase) Me(ctx context.Context, userID int64) (*UserDTO, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !user.IsActive {
		return nil, NewHTTPError(http.StatusForbidden, "user inactive")
	}

	dto := toUserDTO(user)
	return &dto, nil
}

func (u *IdentityUsecase) ForceLogout(ctx context.Context, targetUserID int64) (*ForceLogoutResponse, error) {
	if err := u.validator.ValidateForceLogout(ctx, targetUserID); err != nil {
		return nil, err
	}

	if err := u.users.IncrementTokenVersion(ctx, targetUserID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewHTTPError(http.StatusNotFound, "not found")
		}
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//更新後を取得してnew_token_versionを返す
	user, err := u.users.FindByID(ctx, targetUserID)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return &ForceLogoutResponse{
		UserID:          user.ID,
		NewTokenVersion: user.TokenVersion,
	}, nil
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		Role:         string(u.Role),
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		TokenVersion: u.TokenVersion,
		IsActive:     u.IsActive,
	}
}
