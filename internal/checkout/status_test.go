package checkout

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/medistore/internal/events"
	"github.com/MikeMC777/medistore/internal/order"
)

func placeOne(t *testing.T, f *fixture, productID string, qty int) string {
	t.Helper()
	rec, err := f.svc.PlaceOrder(context.Background(), Request{AccountID: acct, ProductID: productID, Quantity: qty})
	require.NoError(t, err)
	require.Len(t, rec.OrderIDs, 1)
	return rec.OrderIDs[0]
}

func TestUpdateStatus_CancelPendingRestocks(t *testing.T) {
	f := newFixture(t)
	id := placeOne(t, f, napa, 3)
	require.Equal(t, 7, f.db.product(napa).Stock)

	o, err := f.svc.UpdateStatus(context.Background(), id, "cancelled", "rid-9")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status)
	assert.Equal(t, 10, f.db.product(napa).Stock)
	assert.Equal(t, 0, f.db.product(napa).Sold)
	assert.Equal(t, []string{string(events.TypeOrderPlaced), string(events.TypeOrderStatusChanged)}, f.pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.statusChanges.WithLabelValues("Cancelled")))
}

func TestUpdateStatus_CancelAfterShippingKeepsStock(t *testing.T) {
	f := newFixture(t)
	id := placeOne(t, f, napa, 2)

	_, err := f.svc.UpdateStatus(context.Background(), id, "Shipped", "")
	require.NoError(t, err)
	o, err := f.svc.UpdateStatus(context.Background(), id, "Cancelled", "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status)
	assert.Equal(t, 8, f.db.product(napa).Stock)
}

func TestUpdateStatus_ShippedCannotMoveBack(t *testing.T) {
	f := newFixture(t)
	id := placeOne(t, f, napa, 2)

	_, err := f.svc.UpdateStatus(context.Background(), id, "Shipped", "")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(context.Background(), id, "Processing", "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	o, err := f.svc.UpdateStatus(context.Background(), id, "Cancelled", "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status)
	assert.Equal(t, 8, f.db.product(napa).Stock, "shipped goods are not restocked")
	assert.Equal(t, 2, f.db.product(napa).Sold)
}

func TestUpdateStatus_TerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t)
	id := placeOne(t, f, napa, 1)

	_, err := f.svc.UpdateStatus(context.Background(), id, "Delivered", "")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), id, "Cancelled", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 9, f.db.product(napa).Stock)

	o, err := f.svc.UpdateStatus(context.Background(), id, "delivered", "")
	require.NoError(t, err, "repeating the current status is a no-op")
	assert.Equal(t, order.StatusDelivered, o.Status)
}

func TestUpdateStatus_Errors(t *testing.T) {
	f := newFixture(t)
	id := placeOne(t, f, napa, 1)

	_, err := f.svc.UpdateStatus(context.Background(), id, "Lost", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.UpdateStatus(context.Background(), "missing", "Shipped", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t)
	id := placeOne(t, f, seclo, 2)

	require.NoError(t, f.svc.DeleteOrder(context.Background(), id, "rid-3"))
	assert.Equal(t, 0, f.db.orderCount())
	assert.Equal(t, 3, f.db.product(seclo).Stock, "deleting does not restock")
	assert.Contains(t, f.pub.types(), string(events.TypeOrderDeleted))

	err := f.svc.DeleteOrder(context.Background(), id, "rid-4")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestReorder(t *testing.T) {
	f := newFixture(t)
	id := placeOne(t, f, seclo, 2)

	q, err := f.svc.Reorder(context.Background(), id, Request{AccountID: acct, DeliveryOption: "express"})
	require.NoError(t, err)
	assert.Equal(t, SourceBuyNow, q.Source)
	require.Len(t, q.Pricing.Lines, 1)
	assert.Equal(t, seclo, q.Pricing.Lines[0].ProductID)
	assert.Equal(t, 2, q.Pricing.Lines[0].Quantity)

	_, err = f.svc.Reorder(context.Background(), id, Request{AccountID: "someone-else"})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.svc.Reorder(context.Background(), "missing", Request{AccountID: acct})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	f.db.failGetOrder = errBoom
	_, err = f.svc.Reorder(context.Background(), id, Request{AccountID: acct})
	assert.ErrorIs(t, err, ErrPersistence)
}
