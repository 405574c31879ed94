package handler_test

import (
	"context"
	"strings"
	"sync"

	"coffeeshop/internal/domain/model"
	repo "coffeeshop/internal/repository"
)

// =====================
// users
// =====================

type memUsers struct {
	mu   sync.Mutex
	next int64
	byID map[int64]model.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[int64]model.User{}}
}

func (m *memUsers) Create(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, user.Email) {
			return repo.ErrDuplicate
		}
	}
	m.next++
	user.ID = m.next
	m.byID[user.ID] = *user
	return nil
}

func (m *memUsers) FindByID(ctx context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memUsers) Update(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[user.ID]; !ok {
		return repo.ErrNotFound
	}
	m.byID[user.ID] = *user
	return nil
}

func (m *memUsers) IncrementTokenVersion(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.TokenVersion++
	m.byID[id] = u
	return nil
}

func (m *memUsers) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

// =====================
// guest devices
// =====================

type memGuests struct {
	mu sync.Mutex
	m  map[string]int64
}

func (g *memGuests) Get(ctx context.Context, deviceID string) (int64, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.m[deviceID]
	return id, ok, nil
}

func (g *memGuests) SetIfAbsent(ctx context.Context, deviceID string, userID int64) (int64, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.m[deviceID]; ok {
		return id, false, nil
	}
	g.m[deviceID] = userID
	return userID, true, nil
}

// =====================
// products（FindByIDとListだけ使う）
// =====================

type memProducts struct {
	repo.ProductRepository
	items map[int64]model.Product
}

func (m *memProducts) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	out := []model.Product{}
	for _, p := range m.items {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (m *memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := m.items[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

// =====================
// cart
// =====================

type memCart struct {
	repo.CartItemRepository
	mu    sync.Mutex
	lines []model.CartItem
}

func (m *memCart) ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CartItem{}
	for _, l := range m.lines {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memCart) UpsertLine(ctx context.Context, line model.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.lines {
		if l.UserID == line.UserID && l.ProductID == line.ProductID && l.Size == line.Size && l.Flavor == line.Flavor {
			m.lines[i].Quantity += line.Quantity
			return nil
		}
	}
	line.ID = int64(len(m.lines) + 1)
	m.lines = append(m.lines, line)
	return nil
}

// =====================
// favorites
// =====================

type memFavorites struct {
	mu   sync.Mutex
	favs []model.Favorite
}

func (m *memFavorites) Add(ctx context.Context, userID int64, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favs = append(m.favs, model.Favorite{UserID: userID, ProductID: productID})
	return nil
}

func (m *memFavorites) Remove(ctx context.Context, userID int64, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, f := range m.favs {
		if f.UserID == userID && f.ProductID == productID {
			m.favs = append(m.favs[:i], m.favs[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m *memFavorites) ListByUserID(ctx context.Context, userID int64) ([]model.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Favorite{}
	for _, f := range m.favs {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}
