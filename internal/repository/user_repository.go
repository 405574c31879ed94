package repository

import (
	"coffeeshop/internal/domain/model"
	"context"
)

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成（emailが重複ならErrDuplicate）
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。無ければErrNotFound
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	//メールからユーザーを一件取得する。無ければErrNotFound
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// 最後のログインなど
	Update(ctx context.Context, user *model.User) error
	//トークンのバージョンを＋１
	IncrementTokenVersion(ctx context.Context, userID int64) error
	// 使われなかったゲストアカウントの後片付け
	Delete(ctx context.Context, userID int64) error
}
