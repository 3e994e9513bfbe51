package checkout

import (
	"errors"
	"fmt"

	"storefront/internal/models"
)

// State is a step in the linear checkout flow.
type State string

const (
	StateCart       State = "cart"
	StateShipping   State = "shipping"
	StatePayment    State = "payment"
	StateReview     State = "review"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

// ErrIllegalTransition is returned when an event does not apply to the
// current state.
var ErrIllegalTransition = errors.New("illegal checkout transition")

// Event is a tagged variant driving the checkout state machine. The set is
// closed: every transition the flow supports has exactly one event type.
type Event interface {
	isEvent()
}

// ContinueToShipping moves from the cart into the shipping step.
type ContinueToShipping struct{}

// SubmitShipping records the shipping address and advances to payment.
type SubmitShipping struct {
	Address models.ShippingAddress
}

// SubmitPayment records the payment method and advances to review.
type SubmitPayment struct {
	Method string
}

// PlaceOrder triggers submission from the review step. While already
// submitting it is a no-op, which is the client-side idempotency guard
// against double-clicks and network retries.
type PlaceOrder struct{}

// OrderAccepted is delivered when the server confirms the order.
type OrderAccepted struct {
	OrderID string
}

// OrderRejected is delivered when the server refuses the order. The flow
// returns to review with the entered data intact.
type OrderRejected struct {
	Err error
}

// Back navigates one step backwards without clearing entered data.
type Back struct{}

func (ContinueToShipping) isEvent() {}
func (SubmitShipping) isEvent()     {}
func (SubmitPayment) isEvent()      {}
func (PlaceOrder) isEvent()         {}
func (OrderAccepted) isEvent()      {}
func (OrderRejected) isEvent()      {}
func (Back) isEvent()               {}

// Machine is the pure checkout state machine. It tracks the current step
// and the data entered so far; it performs no I/O. Forward transitions are
// gated on the previous step's required fields, backward navigation never
// clears data.
type Machine struct {
	state   State
	address models.ShippingAddress
	method  string
	orderID string
	lastErr error
}

// NewMachine creates a machine at the cart step.
func NewMachine() *Machine {
	return &Machine{state: StateCart}
}

// State returns the current step.
func (m *Machine) State() State { return m.state }

// ShippingAddress returns the address entered so far.
func (m *Machine) ShippingAddress() models.ShippingAddress { return m.address }

// PaymentMethod returns the payment method selected so far.
func (m *Machine) PaymentMethod() string { return m.method }

// OrderID returns the id assigned by the server after a successful
// submission.
func (m *Machine) OrderID() string { return m.orderID }

// LastError returns the rejection that moved the machine to Failed.
func (m *Machine) LastError() error { return m.lastErr }

// Apply dispatches one event. Unknown combinations of state and event fail
// with ErrIllegalTransition and leave the machine unchanged.
func (m *Machine) Apply(ev Event) error {
	switch ev := ev.(type) {
	case ContinueToShipping:
		if m.state != StateCart {
			return m.illegal(ev)
		}
		m.state = StateShipping

	case SubmitShipping:
		if m.state != StateShipping {
			return m.illegal(ev)
		}
		if !ev.Address.Complete() {
			return fmt.Errorf("shipping address is incomplete")
		}
		m.address = ev.Address
		m.state = StatePayment

	case SubmitPayment:
		if m.state != StatePayment {
			return m.illegal(ev)
		}
		if ev.Method == "" {
			return fmt.Errorf("payment method is required")
		}
		m.method = ev.Method
		m.state = StateReview

	case PlaceOrder:
		if m.state == StateSubmitting {
			// Duplicate submit while in flight; swallow it.
			return nil
		}
		if m.state != StateReview {
			return m.illegal(ev)
		}
		m.state = StateSubmitting

	case OrderAccepted:
		if m.state != StateSubmitting {
			return m.illegal(ev)
		}
		m.orderID = ev.OrderID
		m.lastErr = nil
		m.state = StateSuccess

	case OrderRejected:
		if m.state != StateSubmitting {
			return m.illegal(ev)
		}
		m.lastErr = ev.Err
		m.state = StateFailed

	case Back:
		switch m.state {
		case StateShipping:
			m.state = StateCart
		case StatePayment:
			m.state = StateShipping
		case StateReview:
			m.state = StatePayment
		case StateFailed:
			// Rejections send the user back to review the conflict.
			m.state = StateReview
		default:
			return m.illegal(ev)
		}

	default:
		return fmt.Errorf("%w: unknown event %T", ErrIllegalTransition, ev)
	}
	return nil
}

func (m *Machine) illegal(ev Event) error {
	return fmt.Errorf("%w: %T in state %s", ErrIllegalTransition, ev, m.state)
}
