// Package checkout prices orders and commits them together with their stock,
// promotion and cart side effects in one transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MikeMC777/medistore/internal/account"
	"github.com/MikeMC777/medistore/internal/events"
	"github.com/MikeMC777/medistore/internal/order"
	"github.com/MikeMC777/medistore/internal/pricing"
	"github.com/MikeMC777/medistore/internal/product"
	"github.com/MikeMC777/medistore/internal/promo"
)

var tracer = otel.Tracer("github.com/MikeMC777/medistore/internal/checkout")

// Deps are the collaborators of the service. Tokens, Events and Metrics
// may be nil.
type Deps struct {
	Catalog  Catalog
	Carts    CartReader
	Promos   PromoReader
	Accounts AccountReader
	Orders   OrderReader
	Tx       TxRunner
	Tokens   TokenStore
	Events   events.Publisher
	Metrics  *Metrics
}

type Options struct {
	TaxRate   decimal.Decimal
	LocalArea string
	// Now defaults to time.Now; promo validity is judged on its date.
	Now func() time.Time
}

type Service struct {
	deps Deps
	opts Options
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TaxRate.IsZero() {
		opts.TaxRate = pricing.CheckoutTaxRate
	}
	return &Service{deps: deps, opts: opts}
}

// selection is one requested product and quantity before pricing.
type selection struct {
	productID string
	quantity  int
}

// Quote prices a prospective checkout with current catalog prices. Stock is
// checked but nothing is reserved.
func (s *Service) Quote(ctx context.Context, req Request) (*Quote, error) {
	ctx, span := tracer.Start(ctx, "checkout.Quote")
	defer span.End()

	q, err := s.quote(ctx, req)
	endSpan(span, err)
	return q, err
}

func (s *Service) quote(ctx context.Context, req Request) (*Quote, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("checkout.source", string(req.Source)))

	lines, err := s.currentLines(ctx, req)
	if err != nil {
		return nil, err
	}
	contact, err := s.contact(ctx, req)
	if err != nil {
		return nil, err
	}

	address := contact.FullAddress()
	zone := pricing.ClassifyZone(address, s.opts.LocalArea)
	in := pricing.Input{
		Lines:    lines,
		Zone:     zone,
		Delivery: pricing.ParseDeliveryOption(req.DeliveryOption),
		TaxRate:  s.opts.TaxRate,
	}
	out := &Quote{
		Source:          req.Source,
		Address:         address,
		DeliveryOptions: pricing.Options(zone),
	}

	if code := promo.Normalize(req.PromoCode); code != "" {
		out.PromoCode = code
		terms, err := s.previewPromo(ctx, code, req.AccountID)
		switch {
		case err == nil:
			in.Promo = &terms
		case errors.Is(err, ErrInvalidPromo), errors.Is(err, ErrPromoAlreadyUsed):
			out.PromoError = err.Error()
			out.PromoReason = promo.ReasonOf(err)
		default:
			return nil, err
		}
	}

	out.Pricing = pricing.Compute(in)
	return out, nil
}

// currentLines resolves the request into priced lines outside any
// transaction and checks each against current stock.
func (s *Service) currentLines(ctx context.Context, req Request) ([]pricing.Line, error) {
	switch req.Source {
	case SourceBuyNow:
		p, err := s.deps.Catalog.GetByID(ctx, req.ProductID)
		if errors.Is(err, product.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, req.ProductID)
		}
		if err != nil {
			return nil, classify(err)
		}
		if req.Quantity > p.Stock {
			return nil, stockError(p.Name, req.Quantity, p.Stock)
		}
		return []pricing.Line{{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Quantity: req.Quantity}}, nil
	default:
		rows, err := s.deps.Carts.Lines(ctx, req.AccountID)
		if err != nil {
			return nil, classify(err)
		}
		if len(rows) == 0 {
			return nil, ErrEmptyOrder
		}
		out := make([]pricing.Line, 0, len(rows))
		for _, r := range rows {
			if r.Quantity > r.Stock {
				return nil, stockError(r.Name, r.Quantity, r.Stock)
			}
			out = append(out, r.Pricing())
		}
		return out, nil
	}
}

func (s *Service) contact(ctx context.Context, req Request) (Contact, error) {
	a, err := s.deps.Accounts.GetByID(ctx, req.AccountID)
	if errors.Is(err, account.ErrNotFound) {
		return Contact{}, invalid("unknown account %s", req.AccountID)
	}
	if err != nil {
		return Contact{}, classify(err)
	}
	return req.Contact.withDefaults(a), nil
}

func (s *Service) previewPromo(ctx context.Context, code, accountID string) (pricing.Promo, error) {
	c, err := s.deps.Promos.GetByCode(ctx, code)
	if err != nil && !errors.Is(err, promo.ErrNotFound) {
		return pricing.Promo{}, classify(err)
	}
	redeemed := false
	if c != nil {
		if redeemed, err = s.deps.Promos.HasRedeemed(ctx, c.ID, accountID); err != nil {
			return pricing.Promo{}, classify(err)
		}
	}
	if err := checkPromo(c, code, s.opts.Now(), redeemed); err != nil {
		return pricing.Promo{}, err
	}
	return c.Terms(), nil
}

// PlaceOrder commits the checkout: one order row per line, stock moved to
// sold, the promotion redeemed and, for cart checkouts, the cart cleared.
// Either all of it lands or none of it does.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, "checkout.PlaceOrder")
	defer span.End()

	start := time.Now()
	r, err := s.placeOrder(ctx, req)
	s.deps.Metrics.observePlaced(r, err, time.Since(start))
	endSpan(span, err)
	return r, err
}

func (s *Service) placeOrder(ctx context.Context, req Request) (rec *Receipt, err error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" && s.deps.Tokens != nil {
		state, prev, terr := s.deps.Tokens.Reserve(ctx, req.AccountID, req.IdempotencyKey)
		if terr != nil {
			return nil, classify(terr)
		}
		switch state {
		case TokenCompleted:
			prev.Replayed = true
			log.Printf("[checkout] rid=%s account=%s key=%s replayed checkout=%s",
				req.RequestID, req.AccountID, req.IdempotencyKey, prev.CheckoutID)
			return prev, nil
		case TokenInFlight:
			return nil, ErrDuplicateSubmission
		}
		defer func() {
			bg := context.WithoutCancel(ctx)
			if err != nil {
				if rerr := s.deps.Tokens.Release(bg, req.AccountID, req.IdempotencyKey); rerr != nil {
					log.Printf("[checkout] rid=%s release key=%s: %v", req.RequestID, req.IdempotencyKey, rerr)
				}
				return
			}
			if cerr := s.deps.Tokens.Complete(bg, req.AccountID, req.IdempotencyKey, rec); cerr != nil {
				log.Printf("[checkout] rid=%s complete key=%s: %v", req.RequestID, req.IdempotencyKey, cerr)
			}
		}()
	}

	contact, err := s.contact(ctx, req)
	if err != nil {
		return nil, err
	}
	if contact.FullName() == "" {
		return nil, invalid("contact name is required")
	}
	if contact.Phone == "" {
		return nil, invalid("contact phone is required")
	}
	if contact.FullAddress() == "" {
		return nil, invalid("delivery address is required")
	}

	rec, err = s.commit(ctx, req, contact)
	if err != nil {
		if transient(err) {
			log.Printf("[checkout] rid=%s account=%s transient conflict: %v", req.RequestID, req.AccountID, err)
		}
		return nil, classify(err)
	}

	log.Printf("[checkout] rid=%s account=%s checkout=%s orders=%d total=%s",
		req.RequestID, req.AccountID, rec.CheckoutID, len(rec.OrderIDs), rec.Pricing.Total.StringFixed(2))
	s.publish(ctx, events.TypeOrderPlaced, rec.CheckoutID, req.AccountID, req.RequestID, rec)
	return rec, nil
}

func (s *Service) commit(ctx context.Context, req Request, contact Contact) (*Receipt, error) {
	var rec *Receipt
	err := s.deps.Tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		sel, err := s.lockedSelection(ctx, tx, req)
		if err != nil {
			return err
		}

		// Check every precondition before the first write.
		lines, err := lockLines(ctx, tx, sel)
		if err != nil {
			return err
		}

		var code *promo.Code
		in := pricing.Input{
			Lines:    lines,
			Zone:     pricing.ClassifyZone(contact.FullAddress(), s.opts.LocalArea),
			Delivery: pricing.ParseDeliveryOption(req.DeliveryOption),
			TaxRate:  s.opts.TaxRate,
		}
		if name := promo.Normalize(req.PromoCode); name != "" {
			if code, err = lockPromo(ctx, tx, name, req.AccountID, s.opts.Now()); err != nil {
				return err
			}
			terms := code.Terms()
			in.Promo = &terms
		}
		q := pricing.Compute(in)

		checkoutID := uuid.NewString()
		ids := make([]string, 0, len(q.Lines))
		for _, l := range q.Lines {
			o := &order.Order{
				ID:                 uuid.NewString(),
				CheckoutID:         checkoutID,
				AccountID:          req.AccountID,
				ProductID:          l.ProductID,
				ProductName:        l.Name,
				Quantity:           l.Quantity,
				UnitPrice:          l.UnitPrice,
				Total:              l.Committed,
				CustomerName:       contact.FullName(),
				Email:              contact.Email,
				Phone:              contact.Phone,
				Address:            contact.FullAddress(),
				PaymentMethod:      req.PaymentMethod,
				DeliveryOption:     string(q.Delivery),
				PromoCode:          promo.Normalize(req.PromoCode),
				SpecialInstruction: req.SpecialInstruction,
				Status:             order.StatusPending,
			}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			if err := tx.MoveStock(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
			ids = append(ids, o.ID)
		}

		if code != nil {
			err := tx.RecordRedemption(ctx, code.ID, req.AccountID)
			if errors.Is(err, promo.ErrRedemptionExist) {
				return fmt.Errorf("%w: %s", ErrPromoAlreadyUsed, code.Code)
			}
			if err != nil {
				return err
			}
		}
		if req.Source == SourceCart {
			if err := tx.ClearCart(ctx, req.AccountID); err != nil {
				return err
			}
		}

		rec = &Receipt{CheckoutID: checkoutID, OrderIDs: ids, Pricing: q}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// lockedSelection reads what is being bought from inside the transaction
// so the cart that gets cleared is the cart that was priced.
func (s *Service) lockedSelection(ctx context.Context, tx Tx, req Request) ([]selection, error) {
	if req.Source == SourceBuyNow {
		return []selection{{productID: req.ProductID, quantity: req.Quantity}}, nil
	}
	rows, err := tx.CartLines(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyOrder
	}
	sel := make([]selection, 0, len(rows))
	for _, r := range rows {
		sel = append(sel, selection{productID: r.ProductID, quantity: r.Quantity})
	}
	return sel, nil
}

// lockLines locks the selected products and prices the lines from the
// locked rows. Requested quantities for the same product are summed before
// the stock check.
func lockLines(ctx context.Context, tx Tx, sel []selection) ([]pricing.Line, error) {
	want := make(map[string]int, len(sel))
	ids := make([]string, 0, len(sel))
	for _, s := range sel {
		if s.quantity < 1 {
			return nil, invalid("quantity must be at least 1")
		}
		if _, seen := want[s.productID]; !seen {
			ids = append(ids, s.productID)
		}
		want[s.productID] += s.quantity
	}
	sort.Strings(ids)

	locked, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]product.Product, len(locked))
	for _, p := range locked {
		byID[p.ID] = p
	}

	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		if want[id] > p.Stock {
			return nil, stockError(p.Name, want[id], p.Stock)
		}
	}

	lines := make([]pricing.Line, 0, len(sel))
	for _, s := range sel {
		p := byID[s.productID]
		lines = append(lines, pricing.Line{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Quantity: s.quantity})
	}
	return lines, nil
}

func lockPromo(ctx context.Context, tx Tx, code, accountID string, now time.Time) (*promo.Code, error) {
	c, err := tx.LockPromo(ctx, code)
	if err != nil && !errors.Is(err, promo.ErrNotFound) {
		return nil, err
	}
	redeemed := false
	if c != nil {
		if redeemed, err = tx.HasRedeemed(ctx, c.ID, accountID); err != nil {
			return nil, err
		}
	}
	if err := checkPromo(c, code, now, redeemed); err != nil {
		return nil, err
	}
	return c, nil
}

func checkPromo(c *promo.Code, code string, now time.Time, redeemed bool) error {
	err := promo.Validate(c, now, redeemed)
	if err == nil {
		return nil
	}
	if c == nil {
		return fmt.Errorf("%w: %s", promoError(err), code)
	}
	return promoError(err)
}

func stockError(name string, want, have int) error {
	return fmt.Errorf("%w: %s requested %d, %d available", ErrInsufficientStock, name, want, have)
}

// publish is best effort; the order is already committed.
func (s *Service) publish(ctx context.Context, t events.EventType, key, accountID, rid string, payload any) {
	e, err := events.New(t, key, accountID, rid, payload)
	if err == nil {
		err = s.deps.Events.Publish(ctx, e)
	}
	if err != nil {
		log.Printf("[checkout] rid=%s publish %s key=%s: %v", rid, t, key, err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
	}
}
