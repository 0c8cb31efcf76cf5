package httpapi

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/checkout"
	"github.com/xenking/kart-storefront/internal/domain/payment"
	"github.com/xenking/kart-storefront/internal/jsonx"
)

const maxBodyBytes = 64 << 10

// decodeError marks a malformed request body.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode request: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

// readObject reads the body of r and calls f for each top-level field.
func readObject(w http.ResponseWriter, r *http.Request, f func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &decodeError{err: err}
	}
	if len(body) == 0 {
		return &decodeError{err: errors.New("empty body")}
	}
	err = jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		return f(d, string(key))
	})
	if err != nil {
		return &decodeError{err: err}
	}
	return nil
}

type addItemRequest struct {
	ProductID string
	Quantity  int
}

func decodeAddItem(w http.ResponseWriter, r *http.Request) (addItemRequest, error) {
	req := addItemRequest{Quantity: 1}
	err := readObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "productId":
			req.ProductID, err = jsonx.DecodeID(d)
		case "quantity":
			req.Quantity, err = jsonx.DecodeInt(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func decodeQuantity(w http.ResponseWriter, r *http.Request) (int, error) {
	quantity, seen := 0, false
	err := readObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key != "quantity" {
			return d.Skip()
		}
		seen = true
		quantity, err = jsonx.DecodeInt(d)
		return err
	})
	if err == nil && !seen {
		err = &decodeError{err: errors.New("quantity is required")}
	}
	return quantity, err
}

func decodeCheckout(w http.ResponseWriter, r *http.Request) (checkout.Request, error) {
	var req checkout.Request
	err := readObject(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "paymentMethod":
			s, err := jsonx.DecodeOptStr(d)
			req.Method = checkout.Method(s)
			return err
		case "customer":
			return decodeFields(d, map[string]*string{
				"name":  &req.Customer.Name,
				"email": &req.Customer.Email,
				"phone": &req.Customer.Phone,
			})
		case "address":
			return decodeFields(d, map[string]*string{
				"street":     &req.Address.Street,
				"city":       &req.Address.City,
				"state":      &req.Address.State,
				"postalCode": &req.Address.PostalCode,
				"country":    &req.Address.Country,
			})
		case "notes":
			s, err := jsonx.DecodeOptStr(d)
			req.Notes = s
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

// decodeFields reads an object of optional string fields into dst.
func decodeFields(d *jx.Decoder, dst map[string]*string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		p, ok := dst[string(key)]
		if !ok {
			return d.Skip()
		}
		s, err := jsonx.DecodeOptStr(d)
		*p = s
		return err
	})
}

func encodeCart(e *jx.Encoder, session string, store *cart.Store) {
	totals := store.Totals()
	e.Obj(func(e *jx.Encoder) {
		e.Field("sessionId", func(e *jx.Encoder) { e.Str(session) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range store.Items() {
					encodeLineItem(e, it)
				}
			})
		})
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(totals.ItemCount) })
		e.Field("subtotal", func(e *jx.Encoder) { jsonx.Decimal(e, totals.Subtotal) })
		e.Field("shippingCost", func(e *jx.Encoder) { jsonx.Decimal(e, totals.ShippingCost) })
		e.Field("total", func(e *jx.Encoder) { jsonx.Decimal(e, totals.Total) })
	})
}

func encodeLineItem(e *jx.Encoder, it cart.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { jsonx.Decimal(e, it.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("lineTotal", func(e *jx.Encoder) { jsonx.Decimal(e, it.LineTotal()) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(it.Stock) })
		e.Field("vendor", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(it.Vendor.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(it.Vendor.Name) })
			})
		})
	})
}

func encodeItemStatus(e *jx.Encoder, productID string, quantity int) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(productID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(quantity) })
		e.Field("inCart", func(e *jx.Encoder) { e.Bool(quantity > 0) })
	})
}

func encodeResult(e *jx.Encoder, res *checkout.Result) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("outcome", func(e *jx.Encoder) { e.Str(string(res.Outcome)) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(string(res.Method)) })
		e.Field("orderId", func(e *jx.Encoder) { e.Str(res.OrderID) })
		e.Field("orderNumber", func(e *jx.Encoder) { e.Str(res.OrderNumber) })
		if res.PaymentID != "" {
			e.Field("paymentId", func(e *jx.Encoder) { e.Str(res.PaymentID) })
		}
		if res.CheckoutRequestID != "" {
			e.Field("checkoutRequestId", func(e *jx.Encoder) { e.Str(res.CheckoutRequestID) })
		}
		e.Field("amount", func(e *jx.Encoder) { jsonx.Decimal(e, res.Amount) })
		e.Field("message", func(e *jx.Encoder) { e.Str(res.Message) })
	})
}

func encodeConfirmation(e *jx.Encoder, paymentID string, a *payment.Attempt) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("paymentId", func(e *jx.Encoder) { e.Str(paymentID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(payment.StatusSuccessful)) })
		if a != nil && a.Receipt != "" {
			e.Field("receipt", func(e *jx.Encoder) { e.Str(a.Receipt) })
		}
		e.Field("message", func(e *jx.Encoder) { e.Str("Payment received. Your order is confirmed.") })
	})
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
