package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/payment"
	"github.com/xenking/kart-storefront/internal/jsonx"
)

// InitiatePayment requests an STK push for orderID to phone.
func (c *Client) InitiatePayment(ctx context.Context, orderID, phone string) (*payment.Initiation, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("order_id", func(e *jx.Encoder) { writeID(e, orderID) })
		e.Field("phone_number", func(e *jx.Encoder) { e.Str(phone) })
	})

	body, err := c.do(ctx, "initiate payment", http.MethodPost, "/payments/initiate-payment/", e.Bytes())
	if err != nil {
		return nil, err
	}

	var (
		ack     payment.Initiation
		success bool
		errMsg  string
	)
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "success":
			success, err = d.Bool()
		case "payment_id":
			ack.PaymentID, err = jsonx.DecodeID(d)
		case "checkout_request_id":
			ack.CheckoutRequestID, err = jsonx.DecodeOptStr(d)
		case "message":
			ack.Message, err = jsonx.DecodeOptStr(d)
		case "error":
			errMsg, err = jsonx.DecodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode payment initiation")
	}

	if !success || ack.PaymentID == "" {
		if errMsg == "" {
			errMsg = ack.Message
		}
		return nil, &payment.RejectedError{Message: errMsg}
	}
	return &ack, nil
}

// PaymentStatus returns the current state of a payment attempt.
func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (*payment.Attempt, error) {
	body, err := c.do(ctx, "payment status", http.MethodGet, "/payments/status/"+url.PathEscape(paymentID)+"/", nil)
	if err != nil {
		return nil, err
	}

	a := payment.Attempt{ID: paymentID}
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			var id string
			id, err = jsonx.DecodeID(d)
			if id != "" {
				a.ID = id
			}
		case "status":
			var s string
			s, err = jsonx.DecodeOptStr(d)
			a.Status = payment.Status(s)
		case "result_description":
			a.ResultDescription, err = jsonx.DecodeOptStr(d)
		case "mpesa_receipt_number":
			a.Receipt, err = jsonx.DecodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode payment status")
	}
	return &a, nil
}
