package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"coffeeshop/internal/domain/model"
	repo "coffeeshop/internal/repository"
)

// テスト用のメモリDB。
// WithinTxは状態のコピーに対して実行し、成功した時だけ差し替える（失敗ならロールバック）。
type memState struct {
	nextID      int64
	products    map[int64]model.Product
	deleted     map[int64]bool
	cart        map[int64]model.CartItem
	orders      map[int64]model.Order
	orderItems  map[int64]model.OrderItem
	adjustments []model.InventoryAdjustment
	audits      []model.AuditLog
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:      s.nextID,
		products:    make(map[int64]model.Product, len(s.products)),
		deleted:     make(map[int64]bool, len(s.deleted)),
		cart:        make(map[int64]model.CartItem, len(s.cart)),
		orders:      make(map[int64]model.Order, len(s.orders)),
		orderItems:  make(map[int64]model.OrderItem, len(s.orderItems)),
		adjustments: append([]model.InventoryAdjustment(nil), s.adjustments...),
		audits:      append([]model.AuditLog(nil), s.audits...),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.deleted {
		c.deleted[k] = v
	}
	for k, v := range s.cart {
		c.cart[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = v
	}
	return c
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

type memDB struct {
	mu sync.Mutex
	st *memState

	// commit時に返すエラー（commit失敗の再現）
	commitErr error
	// 注文の保存を失敗させる
	failOrderCreate bool
}

func newMemDB() *memDB {
	return &memDB{st: (&memState{}).clone()}
}

func (db *memDB) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	work := db.st.clone()
	if err := fn(&memRepos{db: db, st: work}); err != nil {
		return err
	}
	if db.commitErr != nil {
		return fmt.Errorf("%w: %v", repo.ErrCommitFailed, db.commitErr)
	}
	db.st = work
	return nil
}

// tx外で使うrepos（1操作ごとにロック）
func (db *memDB) direct() *memRepos {
	return &memRepos{db: db, locking: true}
}

func (db *memDB) addProduct(p model.Product) model.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	p.ID = db.st.id()
	if p.StockStatus == "" {
		p.StockStatus = model.DeriveStockStatus(p.Stocks)
	}
	db.st.products[p.ID] = p
	return p
}

func (db *memDB) product(id int64) model.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.products[id]
}

func (db *memDB) setPrice(id int64, price int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := db.st.products[id]
	p.Price = price
	db.st.products[id] = p
}

func (db *memDB) deleteProduct(id int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.st.deleted[id] = true
}

func (db *memDB) cartLines(userID int64) []model.CartItem {
	out, _ := db.direct().CartItems().ListByUserID(context.Background(), userID)
	return out
}

func (db *memDB) order(id int64) model.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.orders[id]
}

func (db *memDB) adjustments() []model.InventoryAdjustment {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]model.InventoryAdjustment(nil), db.st.adjustments...)
}

func (db *memDB) audits() []model.AuditLog {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]model.AuditLog(nil), db.st.audits...)
}

type memRepos struct {
	db      *memDB
	st      *memState
	locking bool
}

func (r *memRepos) lock() func() {
	if !r.locking {
		return func() {}
	}
	r.db.mu.Lock()
	r.st = r.db.st
	return r.db.mu.Unlock
}

func (r *memRepos) Orders() repo.OrderRepository         { return &memOrders{r} }
func (r *memRepos) OrderItems() repo.OrderItemRepository { return &memOrderItems{r} }
func (r *memRepos) CartItems() repo.CartItemRepository   { return &memCart{r} }
func (r *memRepos) Inventory() repo.InventoryRepository  { return &memInventory{r} }
func (r *memRepos) Products() repo.ProductRepository     { return &memProducts{r} }
func (r *memRepos) AuditLogs() repo.AuditLogRepository   { return &memAudit{r} }

// products

type memProducts struct{ *memRepos }

func (m *memProducts) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	defer m.lock()()
	out := []model.Product{}
	for id, p := range m.st.products {
		if m.st.deleted[id] {
			continue
		}
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	defer m.lock()()
	p, ok := m.st.products[id]
	if !ok || m.st.deleted[id] {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m *memProducts) FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error) {
	return m.FindByID(ctx, id)
}

func (m *memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	defer m.lock()()
	p.ID = m.st.id()
	m.st.products[p.ID] = p
	return p, nil
}

func (m *memProducts) Update(ctx context.Context, p model.Product) error {
	defer m.lock()()
	cur, ok := m.st.products[p.ID]
	if !ok || m.st.deleted[p.ID] {
		return repo.ErrNotFound
	}
	p.Stocks = cur.Stocks
	p.StockStatus = cur.StockStatus
	p.CreatedAt = cur.CreatedAt
	m.st.products[p.ID] = p
	return nil
}

func (m *memProducts) SoftDelete(ctx context.Context, id int64) error {
	defer m.lock()()
	if _, ok := m.st.products[id]; !ok || m.st.deleted[id] {
		return repo.ErrNotFound
	}
	m.st.deleted[id] = true
	return nil
}

// inventory

type memInventory struct{ *memRepos }

func (m *memInventory) SetStock(ctx context.Context, productID int64, stocks int64, status model.StockStatus) error {
	defer m.lock()()
	p, ok := m.st.products[productID]
	if !ok || m.st.deleted[productID] {
		return repo.ErrNotFound
	}
	p.Stocks = stocks
	p.StockStatus = status
	m.st.products[productID] = p
	return nil
}

func (m *memInventory) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	defer m.lock()()
	adj.ID = m.st.id()
	m.st.adjustments = append(m.st.adjustments, adj)
	return nil
}

// cart

type memCart struct{ *memRepos }

func (m *memCart) ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error) {
	defer m.lock()()
	out := []model.CartItem{}
	for _, it := range m.st.cart {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memCart) UpsertLine(ctx context.Context, line model.CartItem) error {
	defer m.lock()()
	for id, it := range m.st.cart {
		if it.UserID == line.UserID && it.ProductID == line.ProductID && it.Size == line.Size && it.Flavor == line.Flavor {
			it.Quantity += line.Quantity
			m.st.cart[id] = it
			return nil
		}
	}
	line.ID = m.st.id()
	m.st.cart[line.ID] = line
	return nil
}

func (m *memCart) AdjustQuantity(ctx context.Context, userID int64, cartItemID int64, delta int64) (int64, bool, bool, error) {
	defer m.lock()()
	it, ok := m.st.cart[cartItemID]
	if !ok || it.UserID != userID {
		return 0, false, false, nil
	}
	if it.Quantity+delta < 1 {
		delete(m.st.cart, cartItemID)
		return 0, true, true, nil
	}
	it.Quantity += delta
	m.st.cart[cartItemID] = it
	return it.Quantity, false, true, nil
}

func (m *memCart) DeleteByID(ctx context.Context, userID int64, cartItemID int64) error {
	defer m.lock()()
	it, ok := m.st.cart[cartItemID]
	if !ok || it.UserID != userID {
		return repo.ErrNotFound
	}
	delete(m.st.cart, cartItemID)
	return nil
}

func (m *memCart) DeleteByIDs(ctx context.Context, userID int64, cartItemIDs []int64) error {
	defer m.lock()()
	for _, id := range cartItemIDs {
		if it, ok := m.st.cart[id]; ok && it.UserID == userID {
			delete(m.st.cart, id)
		}
	}
	return nil
}

// orders

type memOrders struct{ *memRepos }

func (m *memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	defer m.lock()()
	o, ok := m.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m *memOrders) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return m.FindByID(ctx, orderID)
}

func (m *memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	defer m.lock()()
	out := []model.Order{}
	for _, o := range m.st.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	defer m.lock()()
	if m.db.failOrderCreate {
		return 0, errors.New("insert failed")
	}
	if order.IdempotencyKey != nil {
		for _, o := range m.st.orders {
			if o.UserID == order.UserID && o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
				return 0, repo.ErrDuplicate
			}
		}
	}
	order.ID = m.st.id()
	m.st.orders[order.ID] = order
	return order.ID, nil
}

func (m *memOrders) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	defer m.lock()()
	o, ok := m.st.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	m.st.orders[orderID] = o
	return nil
}

func (m *memOrders) MarkStockReconciled(ctx context.Context, orderID int64, at time.Time) error {
	defer m.lock()()
	o, ok := m.st.orders[orderID]
	if !ok || o.StockReconciledAt != nil {
		return repo.ErrNotFound
	}
	o.StockReconciledAt = &at
	m.st.orders[orderID] = o
	return nil
}

func (m *memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	defer m.lock()()
	for _, o := range m.st.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (m *memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	defer m.lock()()
	out := []model.Order{}
	for _, o := range m.st.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

// order items

type memOrderItems struct{ *memRepos }

func (m *memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	defer m.lock()()
	for _, it := range items {
		it.ID = m.st.id()
		it.OrderID = orderID
		m.st.orderItems[it.ID] = it
	}
	return nil
}

func (m *memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	defer m.lock()()
	out := []model.OrderItem{}
	for _, it := range m.st.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memOrderItems) ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	out := make(map[int64][]model.OrderItem, len(orderIDs))
	for _, id := range orderIDs {
		items, err := m.ListByOrderID(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			out[id] = items
		}
	}
	return out, nil
}

// audit logs

type memAudit struct{ *memRepos }

func (m *memAudit) Create(ctx context.Context, log model.AuditLog) error {
	defer m.lock()()
	log.ID = m.st.id()
	m.st.audits = append(m.st.audits, log)
	return nil
}

func (m *memAudit) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	defer m.lock()()
	return append([]model.AuditLog{}, m.st.audits...), nil
}
