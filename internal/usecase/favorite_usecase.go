package usecase

import (
	"context"
	"errors"
	"net/http"

	"coffeeshop/internal/domain/model"
	repo "coffeeshop/internal/repository"
)

// お気に入り（通常ユーザーのみ）
type FavoriteUsecase struct {
	favorites repo.FavoriteRepository
	products  repo.ProductRepository
}

func NewFavoriteUsecase(favorites repo.FavoriteRepository, products repo.ProductRepository) *FavoriteUsecase {
	return &FavoriteUsecase{favorites: favorites, products: products}
}

type FavoriteListOutput struct {
	Items []model.Product `json:"items"`
}

func (u *FavoriteUsecase) checkRole(userID int64, role model.Role) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !model.CanFavorite(role) {
		return NewHTTPError(http.StatusForbidden, "favorites require an account")
	}
	return nil
}

func (u *FavoriteUsecase) Add(ctx context.Context, userID int64, role model.Role, productID int64) error {
	if err := u.checkRole(userID, role); err != nil {
		return err
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	_, err := u.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := u.favorites.Add(ctx, userID, productID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func (u *FavoriteUsecase) Remove(ctx context.Context, userID int64, role model.Role, productID int64) error {
	if err := u.checkRole(userID, role); err != nil {
		return err
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	err := u.favorites.Remove(ctx, userID, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

// 削除済みの商品は出さない
func (u *FavoriteUsecase) List(ctx context.Context, userID int64, role model.Role) (FavoriteListOutput, error) {
	if err := u.checkRole(userID, role); err != nil {
		return FavoriteListOutput{}, err
	}

	favs, err := u.favorites.ListByUserID(ctx, userID)
	if err != nil {
		return FavoriteListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	out := FavoriteListOutput{Items: make([]model.Product, 0, len(favs))}
	for _, f := range favs {
		p, err := u.products.FindByID(ctx, f.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return FavoriteListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out.Items = append(out.Items, p)
	}
	return out, nil
}
