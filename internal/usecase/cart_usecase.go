package usecase

import (
	"context"
	"errors"
	"net/http"

	"coffeeshop/internal/domain/model"
	repo "coffeeshop/internal/repository"
)

// 1行あたりの上限
const maxLineQuantity = 99

// CartUsecase は /cart の業務ロジックです。
// カートはユーザーごとの明細行の集まりで、価格は表示のたびに商品の現在価格から出す。
type CartUsecase struct {
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(cartItemRepo repo.CartItemRepository, productRepo repo.ProductRepository) *CartUsecase {
	return &CartUsecase{
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

type CartLineResponse struct {
	ID          int64             `json:"id"`
	ProductID   int64             `json:"product_id"`
	Name        string            `json:"name"`
	ImageURL    string            `json:"image_url"`
	Size        model.Size        `json:"size"`
	Flavor      string            `json:"flavor"`
	Quantity    int64             `json:"quantity"`
	UnitPrice   int64             `json:"unit_price"`
	LineTotal   int64             `json:"line_total"`
	StockStatus model.StockStatus `json:"stock_status"`
}

type CartResponse struct {
	Items []CartLineResponse `json:"items"`
	Total int64              `json:"total"`

	// 商品が削除された行（合計に含めない）
	UnavailableLineIDs []int64 `json:"unavailable_line_ids"`
}

type AddLineInput struct {
	ProductID int64
	Size      string
	Flavor    string
	Quantity  int64
}

func (u *CartUsecase) ListLines(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return u.buildCartResponse(ctx, userID)
}

// 同じ商品・サイズ・フレーバーなら数量を足す
func (u *CartUsecase) AddOrMergeLine(ctx context.Context, userID int64, in AddLineInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	size := model.Size(in.Size)
	if !size.Valid() {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid size")
	}
	if in.Quantity < 1 || in.Quantity > maxLineQuantity {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}
	flavor := model.NormalizeFlavor(in.Flavor)
	if len(flavor) > 50 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid flavor")
	}

	// 商品チェック
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if p.Stocks <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "out of stock")
	}

	if err := u.cartItemRepo.UpsertLine(ctx, model.CartItem{
		UserID:    userID,
		ProductID: in.ProductID,
		Size:      size,
		Flavor:    flavor,
		Quantity:  in.Quantity,
	}); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, userID)
}

// +1/-1 ボタン。1未満になったら行ごと消す。行が無ければ何もしない
func (u *CartUsecase) AdjustQuantity(ctx context.Context, userID int64, lineID int64, delta int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if lineID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if delta == 0 || delta > maxLineQuantity || delta < -maxLineQuantity {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid delta")
	}

	if _, _, _, err := u.cartItemRepo.AdjustQuantity(ctx, userID, lineID, delta); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, userID)
}

func (u *CartUsecase) RemoveLine(ctx context.Context, userID int64, lineID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if lineID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	err := u.cartItemRepo.DeleteByID(ctx, userID, lineID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, userID)
}

// 明細に現在価格を付けて返す（id順）
func (u *CartUsecase) buildCartResponse(ctx context.Context, userID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	out := CartResponse{
		Items:              make([]CartLineResponse, 0, len(items)),
		UnavailableLineIDs: []int64{},
	}

	products := map[int64]model.Product{}
	priced := make([]model.PricedLine, 0, len(items))

	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			p, err = u.productRepo.FindByID(ctx, it.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				out.UnavailableLineIDs = append(out.UnavailableLineIDs, it.ID)
				continue
			}
			if err != nil {
				return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			products[it.ProductID] = p
		}

		unit := model.EffectiveUnitPrice(p.Price, it.Size)
		priced = append(priced, model.PricedLine{Quantity: it.Quantity, UnitPrice: unit})

		out.Items = append(out.Items, CartLineResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			Name:        p.Name,
			ImageURL:    p.ImageURL,
			Size:        it.Size,
			Flavor:      it.Flavor,
			Quantity:    it.Quantity,
			UnitPrice:   unit,
			LineTotal:   unit * it.Quantity,
			StockStatus: p.StockStatus,
		})
	}

	out.Total = model.ComputeTotal(priced)
	return out, nil
}
