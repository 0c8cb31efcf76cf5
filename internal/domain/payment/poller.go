package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

const (
	DefaultInterval    = 3 * time.Second
	DefaultMaxAttempts = 20
)

// Poller repeatedly queries a payment until it settles, fails, or runs out of
// attempts.
type Poller struct {
	checker     StatusChecker
	interval    time.Duration
	maxAttempts int
	deadline    time.Duration
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the pause between status checks.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithMaxAttempts bounds the number of status checks.
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) { p.maxAttempts = n }
}

// WithDeadline bounds the total wall-clock time of a poll. Zero disables it.
func WithDeadline(d time.Duration) PollerOption {
	return func(p *Poller) { p.deadline = d }
}

// NewPoller creates a Poller with a 3s interval and 20 attempts unless
// overridden.
func NewPoller(checker StatusChecker, opts ...PollerOption) *Poller {
	p := &Poller{
		checker:     checker,
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 1
	}
	return p
}

// Poll checks the payment immediately and then every interval. It returns the
// attempt once successful, *FailedError on failed or cancelled, and
// *TimeoutError when attempts or the deadline run out. Errors from the status
// query end polling. Cancelling ctx aborts both the wait and the query.
func (p *Poller) Poll(ctx context.Context, paymentID string) (*Attempt, error) {
	pollCtx := ctx
	if p.deadline > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, p.deadline)
		defer cancel()
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; ; attempt++ {
		a, err := p.checker.PaymentStatus(pollCtx, paymentID)
		if err != nil {
			if ctx.Err() == nil && pollCtx.Err() != nil {
				return nil, &TimeoutError{PaymentID: paymentID, Attempts: attempt}
			}
			return nil, errors.Wrapf(err, "query payment %s", paymentID)
		}

		switch a.Status {
		case StatusSuccessful:
			return a, nil
		case StatusFailed, StatusCancelled:
			return nil, &FailedError{PaymentID: paymentID, Status: a.Status, Reason: a.ResultDescription}
		}

		if attempt >= p.maxAttempts {
			return nil, &TimeoutError{PaymentID: paymentID, Attempts: attempt}
		}

		if timer == nil {
			timer = time.NewTimer(p.interval)
		} else {
			timer.Reset(p.interval)
		}
		select {
		case <-timer.C:
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TimeoutError{PaymentID: paymentID, Attempts: attempt}
		}
	}
}

// Handle is a poll running in the background.
type Handle struct {
	done    chan struct{}
	cancel  context.CancelFunc
	attempt *Attempt
	err     error
}

// Start runs Poll in a goroutine. Cancelling ctx or calling Handle.Cancel
// stops it.
func (p *Poller) Start(ctx context.Context, paymentID string) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(h.done)
		defer cancel()
		h.attempt, h.err = p.Poll(ctx, paymentID)
	}()
	return h
}

// Done is closed once the poll has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel stops the poll. Wait then returns context.Canceled unless the poll
// had already finished.
func (h *Handle) Cancel() { h.cancel() }

// Wait blocks until the poll finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (*Attempt, error) {
	select {
	case <-h.done:
		return h.attempt, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
