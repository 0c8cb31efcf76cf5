package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/jsonx"
)

// CreateOrder submits draft to POST /orders/.
func (c *Client) CreateOrder(ctx context.Context, draft order.Draft) (*order.Order, error) {
	body, err := c.do(ctx, "create order", http.MethodPost, "/orders/", encodeDraft(draft))
	if err != nil {
		return nil, err
	}

	var o order.Order
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = jsonx.DecodeID(d)
		case "order_number":
			o.Number, err = jsonx.DecodeOptStr(d)
		case "status":
			o.Status, err = jsonx.DecodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	if o.ID == "" {
		return nil, errors.New("decode order: missing id")
	}
	return &o, nil
}

func encodeDraft(draft order.Draft) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range draft.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product", func(e *jx.Encoder) { writeID(e, it.ProductID) })
						e.Field("product_name", func(e *jx.Encoder) { e.Str(it.ProductName) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("price", func(e *jx.Encoder) { money(e, it.UnitPrice) })
						e.Field("total", func(e *jx.Encoder) { money(e, it.Total) })
						e.Field("vendor", func(e *jx.Encoder) { writeID(e, it.Vendor.ID) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, draft.Subtotal) })
		e.Field("shipping_cost", func(e *jx.Encoder) { money(e, draft.ShippingCost) })
		e.Field("total_amount", func(e *jx.Encoder) { money(e, draft.Total) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(paymentMethodWire(draft.PaymentMethod)) })
		e.Field("customer_name", func(e *jx.Encoder) { e.Str(draft.Customer.Name) })
		e.Field("customer_email", func(e *jx.Encoder) { e.Str(draft.Customer.Email) })
		e.Field("customer_phone", func(e *jx.Encoder) { e.Str(draft.Customer.Phone) })
		e.Field("shipping_address", func(e *jx.Encoder) { e.Str(encodeAddress(draft.Address)) })
		e.Field("notes", func(e *jx.Encoder) { e.Str(draft.Notes) })
	})
	return e.Bytes()
}

// encodeAddress renders the address as the JSON string the backend stores
// verbatim.
func encodeAddress(a order.Address) string {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("street", func(e *jx.Encoder) { e.Str(a.Street) })
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
		e.Field("state", func(e *jx.Encoder) { e.Str(a.State) })
		e.Field("postal_code", func(e *jx.Encoder) { e.Str(a.PostalCode) })
		e.Field("country", func(e *jx.Encoder) { e.Str(a.Country) })
	})
	return e.String()
}

func paymentMethodWire(m order.PaymentMethod) string {
	if m == order.PaymentMobileMoney {
		return "mpesa"
	}
	return string(m)
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}

// writeID writes numeric identifiers as JSON numbers, since the backend uses
// integer primary keys, and anything else as a string.
func writeID(e *jx.Encoder, id string) {
	if id == "" {
		e.Null()
		return
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			e.Str(id)
			return
		}
	}
	e.Raw([]byte(id))
}
