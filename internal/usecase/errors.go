package usecase

import (
	"errors"
	"fmt"
)

var (
	//503 認証基盤に届かない
	ErrAuthUnavailable = errors.New("auth unavailable")
	//400 カートが空
	ErrEmptyCart = errors.New("empty cart")
	//400 未知のステータス
	ErrInvalidStatus = errors.New("invalid status")
	//500 注文の保存に失敗（カートはそのまま）
	ErrOrderCreationFailed = errors.New("order creation failed")
	//500 在庫を減らした後にcommitの結果が分からない
	ErrPartialReconciliation = errors.New("partial reconciliation")
)

type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// errors.Isで判定できるように原因を持たせる
func wrapHTTPError(status int, message string, err error) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Err:     err,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
