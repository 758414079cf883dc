package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/medistore/internal/account"
	"github.com/MikeMC777/medistore/internal/cart"
	"github.com/MikeMC777/medistore/internal/events"
	"github.com/MikeMC777/medistore/internal/order"
	"github.com/MikeMC777/medistore/internal/product"
	"github.com/MikeMC777/medistore/internal/promo"
)

type memState struct {
	products    map[string]product.Product
	carts       map[string]map[string]int
	cartOrder   map[string][]string
	promos      map[string]promo.Code
	redemptions map[string]bool
	orders      map[string]order.Order
}

func (s memState) clone() memState {
	c := memState{
		products:    make(map[string]product.Product, len(s.products)),
		carts:       make(map[string]map[string]int, len(s.carts)),
		cartOrder:   make(map[string][]string, len(s.cartOrder)),
		promos:      make(map[string]promo.Code, len(s.promos)),
		redemptions: make(map[string]bool, len(s.redemptions)),
		orders:      make(map[string]order.Order, len(s.orders)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		m := make(map[string]int, len(v))
		for pk, q := range v {
			m[pk] = q
		}
		c.carts[k] = m
	}
	for k, v := range s.cartOrder {
		c.cartOrder[k] = append([]string(nil), v...)
	}
	for k, v := range s.promos {
		c.promos[k] = v
	}
	for k, v := range s.redemptions {
		c.redemptions[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

// memDB is an in-memory store whose transactions work on a copy and swap it
// in on commit, so a failed transaction leaves nothing behind.
type memDB struct {
	mu       sync.Mutex
	state    memState
	accounts map[string]account.Account

	failInsertAfter int
	failGetOrder    error
}

func newMemDB() *memDB {
	return &memDB{
		state: memState{
			products:    map[string]product.Product{},
			carts:       map[string]map[string]int{},
			cartOrder:   map[string][]string{},
			promos:      map[string]promo.Code{},
			redemptions: map[string]bool{},
			orders:      map[string]order.Order{},
		},
		accounts:        map[string]account.Account{},
		failInsertAfter: -1,
	}
}

func (db *memDB) addProduct(id, name, price string, stock int) {
	db.state.products[id] = product.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func (db *memDB) addToCart(accountID, productID string, qty int) {
	if db.state.carts[accountID] == nil {
		db.state.carts[accountID] = map[string]int{}
	}
	if _, ok := db.state.carts[accountID][productID]; !ok {
		db.state.cartOrder[accountID] = append(db.state.cartOrder[accountID], productID)
	}
	db.state.carts[accountID][productID] += qty
}

func (db *memDB) addPromo(c promo.Code) { db.state.promos[c.Code] = c }

func (db *memDB) product(id string) product.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.products[id]
}

func (db *memDB) orderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.state.orders)
}

func (db *memDB) cartSize(accountID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.state.carts[accountID])
}

func (db *memDB) promo(code string) promo.Code {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.promos[code]
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	tx := &memTx{db: db, st: db.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	db.state = tx.st
	return nil
}

func cartLines(st memState, accountID string) []cart.Line {
	var out []cart.Line
	for _, pid := range st.cartOrder[accountID] {
		qty, ok := st.carts[accountID][pid]
		if !ok {
			continue
		}
		p := st.products[pid]
		out = append(out, cart.Line{ProductID: pid, Name: p.Name, UnitPrice: p.Price, Quantity: qty, Stock: p.Stock})
	}
	return out
}

// Read side, outside transactions.

func (db *memDB) Lines(_ context.Context, accountID string) ([]cart.Line, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return cartLines(db.state, accountID), nil
}

func (db *memDB) GetByCode(_ context.Context, code string) (*promo.Code, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.state.promos[code]
	if !ok {
		return nil, promo.ErrNotFound
	}
	return &c, nil
}

func (db *memDB) HasRedeemed(_ context.Context, promoID, accountID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.redemptions[promoID+"/"+accountID], nil
}

type memCatalog struct{ db *memDB }

func (c memCatalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	p, ok := c.db.state.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

type memAccounts struct{ db *memDB }

func (a memAccounts) GetByID(_ context.Context, id string) (*account.Account, error) {
	acc, ok := a.db.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &acc, nil
}

type memOrders struct{ db *memDB }

func (o memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	if o.db.failGetOrder != nil {
		return nil, o.db.failGetOrder
	}
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	v, ok := o.db.state.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &v, nil
}

type memTx struct {
	db      *memDB
	st      memState
	inserts int
}

func (t *memTx) CartLines(_ context.Context, accountID string) ([]cart.Line, error) {
	return cartLines(t.st, accountID), nil
}

func (t *memTx) ClearCart(_ context.Context, accountID string) error {
	delete(t.st.carts, accountID)
	delete(t.st.cartOrder, accountID)
	return nil
}

func (t *memTx) LockProducts(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) MoveStock(_ context.Context, productID string, qty int) error {
	p, ok := t.st.products[productID]
	if !ok {
		return product.ErrNotFound
	}
	if p.Stock-qty < 0 || p.Sold+qty < 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, productID)
	}
	p.Stock -= qty
	p.Sold += qty
	t.st.products[productID] = p
	return nil
}

func (t *memTx) LockPromo(_ context.Context, code string) (*promo.Code, error) {
	c, ok := t.st.promos[code]
	if !ok {
		return nil, promo.ErrNotFound
	}
	return &c, nil
}

func (t *memTx) HasRedeemed(_ context.Context, promoID, accountID string) (bool, error) {
	return t.st.redemptions[promoID+"/"+accountID], nil
}

func (t *memTx) RecordRedemption(_ context.Context, promoID, accountID string) error {
	key := promoID + "/" + accountID
	if t.st.redemptions[key] {
		return promo.ErrRedemptionExist
	}
	t.st.redemptions[key] = true
	for code, c := range t.st.promos {
		if c.ID == promoID {
			c.UsedCount++
			t.st.promos[code] = c
		}
	}
	return nil
}

var errInjected = errors.New("connection reset by peer")

func (t *memTx) InsertOrder(_ context.Context, o *order.Order) error {
	if t.db.failInsertAfter >= 0 && t.inserts >= t.db.failInsertAfter {
		return errInjected
	}
	t.inserts++
	t.st.orders[o.ID] = *o
	return nil
}

func (t *memTx) LockOrder(_ context.Context, id string) (*order.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (t *memTx) SetOrderStatus(_ context.Context, id string, status order.Status) error {
	o, ok := t.st.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	t.st.orders[id] = o
	return nil
}

func (t *memTx) DeleteOrder(_ context.Context, id string) (bool, error) {
	if _, ok := t.st.orders[id]; !ok {
		return false, nil
	}
	delete(t.st.orders, id)
	return true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, string(e.Type))
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
