package checkout

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MikeMC777/medistore/internal/account"
	"github.com/MikeMC777/medistore/internal/cart"
	"github.com/MikeMC777/medistore/internal/database"
	"github.com/MikeMC777/medistore/internal/order"
	"github.com/MikeMC777/medistore/internal/product"
	"github.com/MikeMC777/medistore/internal/promo"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("MEDISTORE_INTEGRATION") == "" {
		t.Skip("set MEDISTORE_INTEGRATION=1 to run against a Postgres container")
	}
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("medistore"),
		postgres.WithUsername("medistore"),
		postgres.WithPassword("medistore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(dsn))

	pool, err := database.NewPool(ctx, dsn, 10)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

type seeded struct {
	accountID string
	napaID    string
	secloID   string
	promoCode string
}

func seed(t *testing.T, pool *pgxpool.Pool) seeded {
	t.Helper()
	ctx := context.Background()
	s := seeded{accountID: uuid.NewString(), promoCode: "WELCOME20"}

	_, err := pool.Exec(ctx,
		`INSERT INTO accounts (id, name, email, phone, address, city) VALUES ($1, 'Karim', $2, '+8801811000000', 'Road 7, Gulshan', 'Dhaka')`,
		s.accountID, s.accountID+"@example.com")
	require.NoError(t, err)

	products := product.NewPGRepo(pool)
	napa := &product.Product{Name: "Napa Extra", Price: dec("100.00"), Stock: 10}
	seclo := &product.Product{Name: "Seclo 20", Price: dec("50.00"), Stock: 5}
	require.NoError(t, products.Create(ctx, napa))
	require.NoError(t, products.Create(ctx, seclo))
	s.napaID, s.secloID = napa.ID, seclo.ID

	_, err = pool.Exec(ctx,
		`INSERT INTO promo_codes (id, code, discount_type, discount_value, valid_from, valid_until, max_uses)
		 VALUES ($1, $2, 'fixed', 20, CURRENT_DATE - 1, CURRENT_DATE + 1, 100)`,
		uuid.NewString(), s.promoCode)
	require.NoError(t, err)
	return s
}

func insertAccount(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO accounts (id, name, email, phone, address, city) VALUES ($1, 'Buyer', $2, '+8801811000001', 'Road 9, Banani', 'Dhaka')`,
		id, id+"@example.com")
	require.NoError(t, err)
	return id
}

func newPGService(pool *pgxpool.Pool) *Service {
	return NewService(Deps{
		Catalog:  product.NewPGRepo(pool),
		Carts:    cart.NewPGStore(pool),
		Promos:   promo.NewPGRepo(pool),
		Accounts: account.NewPGRepo(pool),
		Orders:   order.NewPGRepo(pool),
		Tx:       NewPGStore(pool),
	}, Options{LocalArea: "dhaka"})
}

func TestPGStore_PlaceOrderCommitsEverything(t *testing.T) {
	pool := setupPostgres(t)
	s := seed(t, pool)
	svc := newPGService(pool)
	ctx := context.Background()

	carts := cart.NewPGStore(pool)
	require.NoError(t, carts.SetQuantity(ctx, s.accountID, s.napaID, 2))
	require.NoError(t, carts.SetQuantity(ctx, s.accountID, s.secloID, 1))

	rec, err := svc.PlaceOrder(ctx, Request{AccountID: s.accountID, PromoCode: s.promoCode})
	require.NoError(t, err)
	// 250 + 70 + 12.50 - 20
	assert.True(t, rec.Pricing.Total.Equal(dec("312.50")), "total %s", rec.Pricing.Total)

	orders, err := order.NewPGRepo(pool).GetByIDs(ctx, rec.OrderIDs)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.True(t, order.NewConfirmation(orders).TotalAmount.Equal(dec("312.50")))

	napa, err := product.NewPGRepo(pool).GetByID(ctx, s.napaID)
	require.NoError(t, err)
	assert.Equal(t, 8, napa.Stock)
	assert.Equal(t, 2, napa.Sold)

	lines, err := carts.Lines(ctx, s.accountID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = svc.PlaceOrder(ctx, Request{AccountID: s.accountID, ProductID: s.napaID, Quantity: 1, PromoCode: s.promoCode})
	assert.ErrorIs(t, err, ErrPromoAlreadyUsed)
}

func TestPGStore_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	pool := setupPostgres(t)
	s := seed(t, pool)
	svc := newPGService(pool)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		placed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), Request{AccountID: s.accountID, ProductID: s.secloID, Quantity: 1})
			if err == nil {
				mu.Lock()
				placed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p, err := product.NewPGRepo(pool).GetByID(context.Background(), s.secloID)
	require.NoError(t, err)
	assert.Equal(t, 5, placed)
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, 5, p.Sold)
}

func TestPGStore_CancelRestocks(t *testing.T) {
	pool := setupPostgres(t)
	s := seed(t, pool)
	svc := newPGService(pool)
	ctx := context.Background()

	rec, err := svc.PlaceOrder(ctx, Request{AccountID: s.accountID, ProductID: s.napaID, Quantity: 4})
	require.NoError(t, err)

	o, err := svc.UpdateStatus(ctx, rec.OrderIDs[0], "Cancelled", "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status)

	p, err := product.NewPGRepo(pool).GetByID(ctx, s.napaID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
	assert.Equal(t, 0, p.Sold)
}

func TestPGStore_ConcurrentPromoNeverOverRedeemed(t *testing.T) {
	pool := setupPostgres(t)
	s := seed(t, pool)
	svc := newPGService(pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO promo_codes (id, code, discount_type, discount_value, valid_from, valid_until, max_uses)
		VALUES ($1, 'LASTONE', 'percentage', 10, CURRENT_DATE - 1, CURRENT_DATE + 1, 1)`, uuid.NewString())
	require.NoError(t, err)

	const buyers = 6
	accounts := make([]string, buyers)
	for i := range accounts {
		accounts[i] = insertAccount(t, pool)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		placed  int
		reasons []string
	)
	for _, id := range accounts {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, Request{AccountID: id, ProductID: s.napaID, Quantity: 1, PromoCode: "lastone"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				placed++
				return
			}
			assert.ErrorIs(t, err, ErrInvalidPromo)
			reasons = append(reasons, promo.ReasonOf(err))
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, placed)
	require.Len(t, reasons, buyers-1)
	for _, r := range reasons {
		assert.Equal(t, promo.ReasonExhausted, r)
	}

	c, err := promo.NewPGRepo(pool).GetByCode(ctx, "LASTONE")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsedCount)

	var redemptions int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM promo_redemptions WHERE promo_id = $1`, c.ID).Scan(&redemptions))
	assert.Equal(t, 1, redemptions)

	p, err := product.NewPGRepo(pool).GetByID(ctx, s.napaID)
	require.NoError(t, err)
	assert.Equal(t, 9, p.Stock)
}

func TestCartStore_UnknownAccountOrProduct(t *testing.T) {
	pool := setupPostgres(t)
	s := seed(t, pool)
	carts := cart.NewPGStore(pool)
	ctx := context.Background()

	err := carts.SetQuantity(ctx, uuid.NewString(), s.napaID, 1)
	assert.ErrorIs(t, err, account.ErrNotFound)

	err = carts.SetQuantity(ctx, s.accountID, uuid.NewString(), 1)
	assert.ErrorIs(t, err, product.ErrNotFound)
}
