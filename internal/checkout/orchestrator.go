package checkout

import (
	"context"
	"fmt"

	"storefront/internal/cart"
	"storefront/internal/models"
)

// OrderPlacer submits a finished checkout to the order service. The HTTP
// client in pkg/client implements it against the real API.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
}

// Orchestrator drives the checkout machine against the cart store and the
// order service. It owns the only path that turns a cart into an
// order-creation request.
type Orchestrator struct {
	machine *Machine
	store   *cart.Store
	placer  OrderPlacer
}

// NewOrchestrator creates an orchestrator starting at the cart step.
func NewOrchestrator(store *cart.Store, placer OrderPlacer) *Orchestrator {
	return &Orchestrator{
		machine: NewMachine(),
		store:   store,
		placer:  placer,
	}
}

// State returns the current checkout step.
func (o *Orchestrator) State() State { return o.machine.State() }

// OrderID returns the id of the successfully placed order, if any.
func (o *Orchestrator) OrderID() string { return o.machine.OrderID() }

// LastError returns the most recent order rejection.
func (o *Orchestrator) LastError() error { return o.machine.LastError() }

// Begin moves from the cart into the shipping step. Fails on an empty cart.
func (o *Orchestrator) Begin() error {
	if len(o.store.Items()) == 0 {
		return fmt.Errorf("cart is empty")
	}
	return o.machine.Apply(ContinueToShipping{})
}

// SubmitShipping records the address and persists it with the cart so a
// reload resumes checkout where it left off.
func (o *Orchestrator) SubmitShipping(addr models.ShippingAddress) error {
	if err := o.machine.Apply(SubmitShipping{Address: addr}); err != nil {
		return err
	}
	o.store.SetShippingAddress(addr)
	return nil
}

// SubmitPayment records the payment method and persists it with the cart.
func (o *Orchestrator) SubmitPayment(method string) error {
	if err := o.machine.Apply(SubmitPayment{Method: method}); err != nil {
		return err
	}
	o.store.SetPaymentMethod(method)
	return nil
}

// Back navigates one step backwards, keeping all entered data.
func (o *Orchestrator) Back() error {
	return o.machine.Apply(Back{})
}

// PlaceOrder submits the order. A second call while a submission is in
// flight is a no-op. On acceptance the cart is cleared; on rejection the
// entered data survives and Back returns the user to review.
func (o *Orchestrator) PlaceOrder(ctx context.Context) error {
	if o.machine.State() == StateSubmitting {
		return nil
	}
	if err := o.machine.Apply(PlaceOrder{}); err != nil {
		return err
	}

	snapshot := o.store.Cart()
	req := models.CreateOrderRequest{
		ShippingAddress: o.machine.ShippingAddress(),
		PaymentMethod:   o.machine.PaymentMethod(),
	}
	for _, item := range snapshot.Items {
		req.OrderItems = append(req.OrderItems, models.OrderItemRequest{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
		req.ItemsPrice += item.Price * float64(item.Quantity)
	}
	// Advisory only; the server recomputes every monetary field.
	req.TotalPrice = req.ItemsPrice

	order, err := o.placer.PlaceOrder(ctx, req)
	if err != nil {
		if applyErr := o.machine.Apply(OrderRejected{Err: err}); applyErr != nil {
			return applyErr
		}
		return err
	}

	if err := o.machine.Apply(OrderAccepted{OrderID: order.ID}); err != nil {
		return err
	}
	o.store.Clear()
	return nil
}
