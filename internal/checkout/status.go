package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MikeMC777/medistore/internal/events"
	"github.com/MikeMC777/medistore/internal/order"
)

type statusChange struct {
	OrderID string       `json:"order_id"`
	From    order.Status `json:"from"`
	To      order.Status `json:"to"`
}

// UpdateStatus moves an order to status. Delivered and Cancelled are final
// and a shipped order cannot move back.
// Cancelling an order that has not shipped returns its quantity to stock.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status, rid string) (*order.Order, error) {
	ctx, span := tracer.Start(ctx, "checkout.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.status", status))

	o, from, err := s.updateStatus(ctx, orderID, status)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	if from == o.Status {
		return o, nil
	}

	log.Printf("[checkout] rid=%s order=%s status %s -> %s", rid, o.ID, from, o.Status)
	s.deps.Metrics.observeStatus(string(o.Status))
	s.publish(ctx, events.TypeOrderStatusChanged, o.ID, o.AccountID, rid,
		statusChange{OrderID: o.ID, From: from, To: o.Status})
	return o, nil
}

func (s *Service) updateStatus(ctx context.Context, orderID, status string) (*order.Order, order.Status, error) {
	next, ok := order.ParseStatus(status)
	if !ok {
		return nil, "", invalid("unknown status %q", status)
	}

	var (
		out  *order.Order
		from order.Status
	)
	err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, order.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		if err != nil {
			return err
		}
		from = o.Status
		if next == o.Status {
			out = o
			return nil
		}
		if !o.Status.CanMoveTo(next) {
			return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, o.ID, o.Status, next)
		}

		if next == order.StatusCancelled && o.Status.Restockable() {
			if err := tx.MoveStock(ctx, o.ProductID, -o.Quantity); err != nil {
				return err
			}
		}
		if err := tx.SetOrderStatus(ctx, o.ID, next); err != nil {
			return err
		}
		o.Status = next
		out = o
		return nil
	})
	if err != nil {
		return nil, "", classify(err)
	}
	return out, from, nil
}

// DeleteOrder removes an order row. Stock is not returned; cancel first when
// the units should go back on the shelf.
func (s *Service) DeleteOrder(ctx context.Context, orderID, rid string) error {
	ctx, span := tracer.Start(ctx, "checkout.DeleteOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var deleted *order.Order
	err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, order.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		if err != nil {
			return err
		}
		ok, err := tx.DeleteOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		deleted = o
		return nil
	})
	err = classify(err)
	endSpan(span, err)
	if err != nil {
		return err
	}

	log.Printf("[checkout] rid=%s order=%s deleted", rid, deleted.ID)
	s.publish(ctx, events.TypeOrderDeleted, deleted.ID, deleted.AccountID, rid, deleted)
	return nil
}

// Reorder quotes a buy-now checkout for the product and quantity of one of
// the account's past orders. Orders of other accounts read as not found.
func (s *Service) Reorder(ctx context.Context, orderID string, base Request) (*Quote, error) {
	base.AccountID = canonicalID(base.AccountID)
	o, err := s.deps.Orders.GetByID(ctx, orderID)
	if errors.Is(err, order.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, classify(err)
	}
	if o.AccountID != base.AccountID {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	base.Source = SourceBuyNow
	base.ProductID = o.ProductID
	base.Quantity = o.Quantity
	return s.Quote(ctx, base)
}
