package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"atelier/pkg/logger"
	"atelier/pkg/models"
	"atelier/pkg/reconcile"
)

// DefaultRefreshInterval is the poll cadence used when none is configured.
const DefaultRefreshInterval = 5 * time.Second

// Options configures a Poller.
type Options struct {
	// BaseURL of the server, e.g. "http://127.0.0.1:8080".
	BaseURL   string
	ProjectID string
	// APIKey is sent as X-API-Key when set.
	APIKey string
	// RefreshInterval defaults to DefaultRefreshInterval.
	RefreshInterval time.Duration
	// RequestTimeout bounds one poll request; defaults to 10s.
	RequestTimeout time.Duration
	// OnResult is invoked after every successful poll with the
	// reconciliation result and the fetched list.
	OnResult func(reconcile.Result, []models.Message)
}

// Poller periodically fetches a project's full message list and reconciles
// it. Each tick is a full-state snapshot keyed by stable message IDs, so a
// failed or skipped tick self-heals on the next one; transport errors are
// absorbed rather than surfaced.
type Poller struct {
	opts Options
	rec  *reconcile.Reconciler
	hc   *fasthttp.Client
}

// New builds a poller with a fresh reconciler (no fragment selected).
func New(opts Options) *Poller {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &Poller{
		opts: opts,
		rec:  reconcile.New(),
		hc:   &fasthttp.Client{Name: "atelier-poller"},
	}
}

// Run polls on the configured cadence until ctx is canceled. It fires one
// immediate poll before the first tick so a fresh view is never blank for a
// full interval.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.RefreshInterval)
	defer ticker.Stop()

	p.tick()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Poller) tick() {
	res, msgs, err := p.Poll()
	if err != nil {
		// transient transport error: next tick recovers
		logger.Log.Warn("poll_failed",
			zap.String("project", p.opts.ProjectID), zap.Error(err))
		return
	}
	if p.opts.OnResult != nil {
		p.opts.OnResult(res, msgs)
	}
}

// Poll fetches the ordered message list once and applies the reconciler.
func (p *Poller) Poll() (reconcile.Result, []models.Message, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.opts.BaseURL + "/v1/projects/" + p.opts.ProjectID + "/messages")
	req.Header.SetMethod(fasthttp.MethodGet)
	if p.opts.APIKey != "" {
		req.Header.Set("X-API-Key", p.opts.APIKey)
	}

	if err := p.hc.DoTimeout(req, resp, p.opts.RequestTimeout); err != nil {
		return reconcile.Result{}, nil, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return reconcile.Result{}, nil, fmt.Errorf("poll returned status %d", resp.StatusCode())
	}

	var body struct {
		Project  string           `json:"project"`
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return reconcile.Result{}, nil, fmt.Errorf("decode message list: %w", err)
	}
	return p.rec.Apply(body.Messages), body.Messages, nil
}

// Reconciler exposes the poller's selection state for callers that render
// per-message active flags.
func (p *Poller) Reconciler() *reconcile.Reconciler {
	return p.rec
}
