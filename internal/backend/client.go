// Package backend is the REST client for the marketplace backend: orders,
// mobile money payments and the product catalog.
package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/payment"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/remote"
)

var (
	_ order.Creator         = (*Client)(nil)
	_ payment.Initiator     = (*Client)(nil)
	_ payment.StatusChecker = (*Client)(nil)
	_ product.Catalog       = (*Client)(nil)
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// Config configures the backend client.
type Config struct {
	// BaseURL is the API root, e.g. https://api.example.com/api.
	BaseURL string
	Timeout time.Duration
}

// Client talks to the backend over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTracerProvider instruments outgoing requests with the given provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cl *Client) {
		cl.http.Transport = otelhttp.NewTransport(cl.http.Transport, otelhttp.WithTracerProvider(tp))
	}
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport,
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type tokenKey struct{}

// WithToken returns a context carrying the shopper's bearer token, forwarded
// on every backend call made with it.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token stored by WithToken.
func TokenFrom(ctx context.Context) string {
	v, _ := ctx.Value(tokenKey{}).(string)
	return v
}

// Ping checks that the backend answers HTTP at all. Any status is accepted.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", http.NoBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &remote.NetworkError{Op: "ping", Err: err}
	}
	_ = resp.Body.Close()
	return nil
}

// do sends body (if any) to path and returns the response body of a 2xx
// reply. Transport failures yield *remote.NetworkError, other statuses
// *remote.ResponseError.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: create request", op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, op)
		}
		return nil, &remote.NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, op)
		}
		return nil, &remote.NetworkError{Op: op, Err: errors.Wrap(err, "read body")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &remote.ResponseError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(data),
		}
	}
	return data, nil
}

// errorMessage extracts a human readable message from an error body. It
// prefers detail, then non_field_errors, message, error, and finally the
// first field error.
func errorMessage(body []byte) string {
	var (
		detail, message, errMsg string
		nonField                []string
		firstField              string
	)
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return ""
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "detail":
			s, err := stringish(d)
			detail = s
			return err
		case "message":
			s, err := stringish(d)
			message = s
			return err
		case "error":
			s, err := stringish(d)
			errMsg = s
			return err
		case "non_field_errors":
			list, err := stringList(d)
			nonField = list
			return err
		default:
			s, err := stringish(d)
			if err != nil {
				return err
			}
			if firstField == "" && s != "" {
				firstField = key + ": " + s
			}
			return nil
		}
	})
	if err != nil {
		return ""
	}

	switch {
	case detail != "":
		return detail
	case len(nonField) > 0:
		return strings.Join(nonField, ", ")
	case message != "":
		return message
	case errMsg != "":
		return errMsg
	default:
		return firstField
	}
}

// stringish reads a string, or the first string of an array; other values
// are skipped and yield "".
func stringish(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Array:
		list, err := stringList(d)
		if err != nil || len(list) == 0 {
			return "", err
		}
		return list[0], nil
	default:
		return "", d.Skip()
	}
}

func stringList(d *jx.Decoder) ([]string, error) {
	if d.Next() != jx.Array {
		s, err := stringish(d)
		if s == "" {
			return nil, err
		}
		return []string{s}, err
	}
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.String {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
