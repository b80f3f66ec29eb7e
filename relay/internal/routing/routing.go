// Package routing maps upstream event types to Conversions API events and
// builds their custom_data.
package routing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/telhawk-systems/capi-relay/relay/internal/payload"
)

// Inbound event types sent by the upstream platform.
const (
	UserCreated    = "USER_CREATED"
	UserLogin      = "USER_LOGIN"
	DepositCreated = "DEPOSIT_CREATED"
	DepositPaid    = "DEPOSIT_PAID"
)

// Conversions API standard event names.
const (
	CompleteRegistration = "CompleteRegistration"
	Lead                 = "Lead"
	AddToCart            = "AddToCart"
	InitiateCheckout     = "InitiateCheckout"
	Purchase             = "Purchase"
)

// DefaultCurrency is used when neither the payload nor configuration names one.
const DefaultCurrency = "BRL"

// ErrInvalidAmount is returned when a deposit amount is present but not numeric.
var ErrInvalidAmount = errors.New("invalid deposit amount")

// CustomData is the event-specific custom_data object. Value is always
// serialized, including zero.
type CustomData struct {
	Currency    string   `json:"currency"`
	Value       float64  `json:"value"`
	ContentType string   `json:"content_type,omitempty"`
	ContentIDs  []string `json:"content_ids,omitempty"`
	ContentName string   `json:"content_name,omitempty"`
	NumItems    int      `json:"num_items,omitempty"`
}

// Conversion is one Conversions API event to emit.
type Conversion struct {
	EventName  string
	EventID    string
	CustomData *CustomData
}

// Router dispatches on the inbound event type. It holds no per-request
// state and is safe for concurrent use.
type Router struct {
	currency string
	newID    func() string
}

// NewRouter returns a Router. defaultCurrency applies to events whose
// payload has no currency; empty means DefaultCurrency.
func NewRouter(defaultCurrency string) *Router {
	if defaultCurrency == "" {
		defaultCurrency = DefaultCurrency
	}
	return &Router{
		currency: defaultCurrency,
		newID:    uuid.NewString,
	}
}

// NewEventID returns a fresh deduplication id.
func (r *Router) NewEventID() string {
	return r.newID()
}

// routeFunc builds the conversions of one inbound event type.
type routeFunc func(r *Router, p payload.Payload, requestID string) ([]Conversion, error)

// routes is the single table of mapped event types.
var routes = map[string]routeFunc{
	UserCreated:    (*Router).userCreated,
	UserLogin:      (*Router).userLogin,
	DepositCreated: (*Router).depositCreated,
	DepositPaid:    (*Router).depositPaid,
}

// Mapped reports whether eventType produces any conversion.
func Mapped(eventType string) bool {
	_, ok := routes[eventType]
	return ok
}

// Route returns the conversions for eventType in send order. requestID is
// the request-scoped deduplication id. ok is false for unmapped types.
func (r *Router) Route(eventType string, p payload.Payload, requestID string) ([]Conversion, bool, error) {
	route, ok := routes[eventType]
	if !ok {
		return nil, false, nil
	}
	conversions, err := route(r, p, requestID)
	if err != nil {
		return nil, true, err
	}
	return conversions, true, nil
}

func (r *Router) userCreated(_ payload.Payload, requestID string) ([]Conversion, error) {
	return []Conversion{{
		EventName:  CompleteRegistration,
		EventID:    requestID,
		CustomData: r.account("Registration"),
	}}, nil
}

func (r *Router) userLogin(_ payload.Payload, requestID string) ([]Conversion, error) {
	return []Conversion{{
		EventName:  Lead,
		EventID:    requestID,
		CustomData: r.account("Login"),
	}}, nil
}

func (r *Router) depositCreated(p payload.Payload, requestID string) ([]Conversion, error) {
	cart, err := r.deposit(p)
	if err != nil {
		return nil, err
	}
	cart.ContentName = "Deposit Created"

	checkout, err := r.deposit(p)
	if err != nil {
		return nil, err
	}
	checkout.NumItems = 1

	// AddToCart gets its own id so the two events never deduplicate each other.
	return []Conversion{
		{EventName: AddToCart, EventID: r.newID(), CustomData: cart},
		{EventName: InitiateCheckout, EventID: requestID, CustomData: checkout},
	}, nil
}

func (r *Router) depositPaid(p payload.Payload, requestID string) ([]Conversion, error) {
	purchase, err := r.deposit(p)
	if err != nil {
		return nil, err
	}
	purchase.ContentName = "Deposit Paid"
	return []Conversion{{EventName: Purchase, EventID: requestID, CustomData: purchase}}, nil
}

// account builds the zero-value custom_data of account lifecycle events.
// These always use the configured currency.
func (r *Router) account(contentName string) *CustomData {
	return &CustomData{
		Currency:    r.currency,
		Value:       0,
		ContentName: contentName,
	}
}

func (r *Router) deposit(p payload.Payload) (*CustomData, error) {
	amount, _, err := p.Float("amount")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	currency, ok := p.String("currency")
	if !ok {
		currency = r.currency
	}

	cd := &CustomData{
		Currency:    currency,
		Value:       amount,
		ContentType: "product",
	}
	if id, ok := p.String("deposit_id"); ok {
		cd.ContentIDs = []string{id}
	}
	return cd, nil
}
