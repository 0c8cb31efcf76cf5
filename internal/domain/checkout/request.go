package checkout

import (
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/order"
)

// Method is the payment method chosen at checkout.
type Method string

const (
	MethodCash        Method = "cash"
	MethodMobileMoney Method = "mobile_money"
	MethodCard        Method = "card"
)

// Valid reports whether m is a known payment method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodMobileMoney, MethodCard:
		return true
	default:
		return false
	}
}

// Customer holds contact details entered at checkout.
type Customer struct {
	Name  string `name:"name" validate:"required"`
	Email string `name:"email" validate:"required,email"`
	Phone string `name:"phone"`
}

// Address is the delivery address entered at checkout.
type Address struct {
	Street     string `name:"street" validate:"required"`
	City       string `name:"city" validate:"required"`
	State      string `name:"state"`
	PostalCode string `name:"postalCode"`
	Country    string `name:"country" validate:"required"`
}

// Request is the checkout input.
type Request struct {
	Method   Method
	Customer Customer
	Address  Address
	Notes    string
}

// Outcome is the continuation returned to the client after checkout.
type Outcome string

const (
	OutcomePayOnDelivery       Outcome = "pay_on_delivery"
	OutcomePendingConfirmation Outcome = "pending_confirmation"
	OutcomeCardRedirect        Outcome = "card_redirect"
)

// Result is the single outcome of a successful checkout.
type Result struct {
	Outcome           Outcome
	Method            Method
	OrderID           string
	OrderNumber       string
	PaymentID         string
	CheckoutRequestID string
	Amount            decimal.Decimal
	Message           string
}

var mobileMoneyPhone = regexp.MustCompile(`^2547\d{8}$`)

// NormalizePhone rewrites common local spellings of a Kenyan mobile number
// into the 2547XXXXXXXX form expected by the provider.
func NormalizePhone(phone string) string {
	p := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, phone)

	switch {
	case strings.HasPrefix(p, "+"):
		p = p[1:]
	case strings.HasPrefix(p, "07") && len(p) == 10:
		p = "254" + p[1:]
	case strings.HasPrefix(p, "7") && len(p) == 9:
		p = "254" + p
	}
	return p
}

type requestValidator struct {
	v       *validator.Validate
	regions []string
}

func newRequestValidator(regions []string) *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("name")
	})

	normalized := make([]string, 0, len(regions))
	for _, r := range regions {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(r)))
	}
	return &requestValidator{v: v, regions: normalized}
}

// Validate runs the local checks in order: method, phone, address, region.
// It returns the request with the phone normalised.
func (rv *requestValidator) Validate(req Request) (Request, error) {
	req = trimRequest(req)
	if !req.Method.Valid() {
		return req, &InvalidMethodError{Method: string(req.Method)}
	}

	if req.Method == MethodMobileMoney {
		phone := NormalizePhone(req.Customer.Phone)
		if !mobileMoneyPhone.MatchString(phone) {
			return req, &InvalidPhoneError{Phone: req.Customer.Phone}
		}
		req.Customer.Phone = phone
	}

	var fields []string
	for _, s := range []any{req.Address, req.Customer} {
		err := rv.v.Struct(s)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return req, errors.Wrap(err, "validate checkout request")
		}
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
	}
	if len(fields) > 0 {
		return req, &InvalidAddressError{Fields: fields}
	}

	if req.Method == MethodMobileMoney && !rv.supportsRegion(req.Address.Country) {
		return req, &UnsupportedPaymentRegionError{Country: req.Address.Country}
	}
	return req, nil
}

func trimRequest(req Request) Request {
	for _, f := range []*string{
		&req.Customer.Name, &req.Customer.Email, &req.Customer.Phone,
		&req.Address.Street, &req.Address.City, &req.Address.State,
		&req.Address.PostalCode, &req.Address.Country, &req.Notes,
	} {
		*f = strings.TrimSpace(*f)
	}
	return req
}

func (rv *requestValidator) supportsRegion(country string) bool {
	return slices.Contains(rv.regions, strings.ToLower(strings.TrimSpace(country)))
}

func (m Method) wire() order.PaymentMethod {
	switch m {
	case MethodMobileMoney:
		return order.PaymentMobileMoney
	case MethodCard:
		return order.PaymentCard
	default:
		return order.PaymentCash
	}
}
