// Package health serves liveness and readiness probes.
//
// Every registered probe runs periodically in its own goroutine. A probe turns
// unhealthy after FailureThreshold consecutive failures and healthy again
// after SuccessThreshold consecutive successes.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CheckFunc returns nil when the checked dependency is usable.
type CheckFunc func(ctx context.Context) error

// Pinger is implemented by storage adapters and backend clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// Check describes a probe.
type Check struct {
	Name    string
	Timeout time.Duration
	Func    CheckFunc
	// FailureThreshold defaults to 3.
	FailureThreshold int
	// SuccessThreshold defaults to 1.
	SuccessThreshold int
}

type probe struct {
	Check

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Owned by the probe goroutine.
	fails int
	oks   int
}

func newProbe(c Check) *probe {
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	p := &probe{Check: c}
	p.healthy.Store(true)
	return p
}

// run executes the check once and reports whether the health state flipped.
func (p *probe) run(ctx context.Context) (changed bool) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	err := p.Func(ctx)
	p.lastErr.Store(&err)

	was := p.healthy.Load()
	if err != nil {
		p.oks = 0
		p.fails++
		if p.fails >= p.FailureThreshold {
			p.healthy.Store(false)
		}
	} else {
		p.fails = 0
		p.oks++
		if p.oks >= p.SuccessThreshold {
			p.healthy.Store(true)
		}
	}
	return was != p.healthy.Load()
}

func (p *probe) failure() string {
	if e := p.lastErr.Load(); e != nil && *e != nil {
		return (*e).Error()
	}
	return "check is unhealthy"
}

// Registry holds the probes of a process. Probes must be registered before
// Run is called.
type Registry struct {
	lg        *zap.Logger
	ready     atomic.Bool
	liveness  []*probe
	readiness []*probe
}

// New creates a Registry that is not ready until SetReady(true).
func New(lg *zap.Logger) *Registry {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Registry{lg: lg}
}

// AddLiveness registers a probe that decides whether the process should be
// restarted.
func (r *Registry) AddLiveness(c Check) {
	r.liveness = append(r.liveness, newProbe(c))
}

// AddReadiness registers a probe that decides whether the process should
// receive traffic, typically a storage or backend ping.
func (r *Registry) AddReadiness(c Check) {
	r.readiness = append(r.readiness, newProbe(c))
}

// Run checks every probe immediately and then every interval until ctx is
// done. Health transitions are logged.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range append(append([]*probe{}, r.liveness...), r.readiness...) {
		g.Go(func() error {
			r.loop(ctx, p, interval)
			return nil
		})
	}
	return g.Wait()
}

func (r *Registry) loop(ctx context.Context, p *probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if p.run(ctx) {
			if p.healthy.Load() {
				r.lg.Info("Probe recovered", zap.String("probe", p.Name))
			} else {
				r.lg.Warn("Probe failing", zap.String("probe", p.Name), zap.String("error", p.failure()))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SetReady marks the process ready once startup completes, and not ready
// when shutdown begins.
func (r *Registry) SetReady(ready bool) {
	r.ready.Store(ready)
}

// IsReady reports whether the process is marked ready and every readiness
// probe is healthy.
func (r *Registry) IsReady() bool {
	return r.ready.Load() && len(failures(r.readiness)) == 0
}

// LiveHandler serves /livez.
func (r *Registry) LiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, failures(r.liveness))
	})
}

// ReadyHandler serves /readyz.
func (r *Registry) ReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		failed := failures(r.readiness)
		if !r.ready.Load() {
			failed["_readiness"] = "service is not ready"
		}
		writeStatus(w, failed)
	})
}

func failures(probes []*probe) map[string]string {
	failed := make(map[string]string)
	for _, p := range probes {
		if !p.healthy.Load() {
			failed[p.Name] = p.failure()
		}
	}
	return failed
}

// writeStatus writes {"status":"ok"} or {"status":"unhealthy","checks":{...}}.
func writeStatus(w http.ResponseWriter, failed map[string]string) {
	status, code := "ok", http.StatusOK
	if len(failed) > 0 {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		if len(names) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failed[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
