package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// 一意制約違反
	ErrDuplicate = errors.New("duplicate")
	// 本体は成功したがcommitできなかった（在庫を触っていれば部分反映の可能性）
	ErrCommitFailed = errors.New("commit failed")
)
