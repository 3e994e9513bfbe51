package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PricingPolicy holds the deterministic shipping/tax formula applied to
// every order. The thresholds are configuration; the formula itself and the
// fact that it runs server-side only are invariants.
type PricingPolicy struct {
	FlatShippingFee       float64 // Charged when items total is below the threshold
	FreeShippingThreshold float64
	TaxRate               float64 // Fraction of the items total
}

// EventPublisher publishes order lifecycle events. Publishing is
// best-effort and never blocks or fails the order write path.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo     repositories.OrderRepository
	productRepo   repositories.ProductRepository
	publisher     EventPublisher
	pricing       PricingPolicy
	lookupTimeout time.Duration
	maxLookups    int
}

// NewOrderService creates a new OrderService. publisher may be nil, in
// which case no events are emitted.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, publisher EventPublisher, pricing PricingPolicy) *OrderService {
	return &OrderService{
		orderRepo:     orderRepo,
		productRepo:   productRepo,
		publisher:     publisher,
		pricing:       pricing,
		lookupTimeout: 5 * time.Second,
		maxLookups:    10,
	}
}

// CreateOrder validates a checkout request against live catalog data and
// persists the resulting order atomically. Every line item is re-fetched
// from the product repository; the client-suggested prices in the request
// are never used. The operation is all-or-nothing: any stock conflict or
// missing product fails the whole request and no record is written.
//
// Stock is not decremented here. It is re-validated now and decremented at
// payment confirmation, so abandoned checkouts never hold stock hostage.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req models.CreateOrderRequest) (*models.Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}
	if len(req.OrderItems) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	if !req.ShippingAddress.Complete() {
		return nil, fmt.Errorf("%w: shipping address is incomplete", ErrValidation)
	}
	if req.PaymentMethod == "" {
		return nil, fmt.Errorf("%w: payment method is required", ErrValidation)
	}
	for _, item := range req.OrderItems {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for product %s must be at least 1", ErrValidation, item.ProductID)
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	// Re-fetch authoritative price and stock for every line in parallel.
	orderItems := make([]models.OrderItem, len(req.OrderItems))
	g, lookupCtx := errgroup.WithContext(lookupCtx)
	g.SetLimit(s.maxLookups)
	for idx := range req.OrderItems {
		g.Go(func() error {
			item := req.OrderItems[idx]
			product, err := s.productRepo.GetByID(lookupCtx, item.ProductID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return &ProductNotFoundError{ProductID: item.ProductID}
				}
				return s.storeErr(err)
			}
			if product.Stock < item.Quantity {
				return &StockConflictError{
					ProductID: product.ID,
					Name:      product.Name,
					Requested: item.Quantity,
					Available: product.Stock,
				}
			}
			orderItems[idx] = models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				Price:     product.Price,
				Quantity:  item.Quantity,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var itemsPrice float64
	for _, item := range orderItems {
		itemsPrice += item.Price * float64(item.Quantity)
	}
	itemsPrice = roundCents(itemsPrice)

	shippingPrice := s.pricing.FlatShippingFee
	if itemsPrice >= s.pricing.FreeShippingThreshold {
		shippingPrice = 0
	}
	taxPrice := roundCents(s.pricing.TaxRate * itemsPrice)

	order := &models.Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		OrderItems:      orderItems,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      itemsPrice,
		ShippingPrice:   shippingPrice,
		TaxPrice:        taxPrice,
		TotalPrice:      roundCents(itemsPrice + shippingPrice + taxPrice),
		IsPaid:          false,
		IsDelivered:     false,
		CreatedAt:       time.Now(),
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, s.storeErr(err)
	}

	s.publishEvent("order.created", map[string]interface{}{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.TotalPrice,
	})

	return order, nil
}

// ConfirmPayment applies the unpaid->paid transition exactly once. A replay
// with the same order id returns the current order wrapped in
// ErrAlreadyPaid so callers can treat it as a benign idempotent success.
// Stock for the order's items is decremented here, the sole point where the
// pipeline touches inventory.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID string, result models.PaymentResult) (*models.Order, error) {
	updated, err := s.orderRepo.MarkPaid(ctx, orderID, result, time.Now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, s.storeErr(err)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, s.storeErr(err)
	}

	if !updated {
		// The transition already happened, either in a concurrent call or
		// an earlier confirmation. No side effects are re-applied.
		return order, ErrAlreadyPaid
	}

	for _, item := range order.OrderItems {
		ok, decErr := s.productRepo.DecrementStock(ctx, item.ProductID, item.Quantity)
		if decErr != nil {
			log.Printf("Warning: failed to decrement stock for product %s on order %s: %v", item.ProductID, orderID, decErr)
			continue
		}
		if !ok {
			// The order is already paid; an oversell between validation and
			// payment is logged, not propagated.
			log.Printf("Warning: stock for product %s went below the %d units sold on order %s", item.ProductID, item.Quantity, orderID)
		}
	}

	s.publishEvent("order.paid", map[string]interface{}{
		"order_id":   order.ID,
		"user_id":    order.UserID,
		"payment_id": result.ID,
		"total":      order.TotalPrice,
	})

	return order, nil
}

// MarkDelivered records delivery of a paid order. Calling it on an unpaid
// order fails with ErrNotPaid; calling it again on a delivered order is a
// benign no-op.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID string) (*models.Order, error) {
	updated, err := s.orderRepo.MarkDelivered(ctx, orderID, time.Now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, s.storeErr(err)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	if !updated && !order.IsPaid {
		return nil, ErrNotPaid
	}
	return order, nil
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, s.storeErr(err)
	}
	return order, nil
}

// GetUserOrders retrieves a user's order history, newest first.
func (s *OrderService) GetUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.orderRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	return orders, nil
}

// GetAllOrders retrieves all orders. Admin use only.
func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orderRepo.GetAll(ctx)
	if err != nil {
		return nil, s.storeErr(err)
	}
	return orders, nil
}

// storeErr folds timeouts into the retryable taxonomy so callers can tell
// "try again" apart from a permanent failure.
func (s *OrderService) storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStoreTimeout, err)
	}
	return err
}

func (s *OrderService) publishEvent(routingKey string, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", routingKey, err)
		return
	}
	if err := s.publisher.Publish("order", routingKey, body); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", routingKey, err)
	}
}

// roundCents rounds a monetary amount to two decimal places.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
