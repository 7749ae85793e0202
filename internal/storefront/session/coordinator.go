package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/telemetry"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRefreshWait        = 10 * time.Second
	DefaultRefreshCallTimeout = 15 * time.Second
	DefaultRefreshGrace       = 30 * time.Second
)

// Refresher exchanges a refresh token for a rotated token pair.
type Refresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*authsdk.TokenResponse, error)
}

type CoordinatorOptions struct {
	// Wait bounds how long one caller waits on an in-flight refresh before
	// re-joining it. A caller re-joins at most once.
	Wait time.Duration

	// CallTimeout bounds the provider call itself. The call is detached
	// from the callers, so abandoning the wait never cancels it.
	CallTimeout time.Duration

	// Grace is how long a completed rotation is handed to late callers that
	// still present the old refresh token.
	Grace time.Duration

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Coordinator makes sure that at most one provider refresh per refresh token
// is in flight in this process. Callers presenting the same token share the
// result.
type Coordinator struct {
	refresher Refresher
	opts      CoordinatorOptions

	group singleflight.Group

	mu     sync.Mutex
	recent map[string]graceEntry
}

type graceEntry struct {
	tokens *authsdk.TokenResponse
	until  time.Time
}

func NewCoordinator(refresher Refresher, opts CoordinatorOptions) *Coordinator {
	if opts.Wait <= 0 {
		opts.Wait = DefaultRefreshWait
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultRefreshCallTimeout
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultRefreshGrace
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		refresher: refresher,
		opts:      opts,
		recent:    make(map[string]graceEntry),
	}
}

// Refresh rotates refreshToken, joining any refresh already running for the
// same token. Failures are *RefreshError values.
func (c *Coordinator) Refresh(ctx context.Context, refreshToken string) (*authsdk.TokenResponse, error) {
	key := cryptox.FingerprintToken(refreshToken)

	for attempt := range 2 {
		if tokens, ok := c.lookup(key); ok {
			c.opts.Metrics.RefreshShared()
			return tokens, nil
		}

		leader := false
		ch := c.group.DoChan(key, func() (any, error) {
			leader = true
			return c.call(ctx, key, refreshToken)
		})

		timer := time.NewTimer(c.opts.Wait)
		select {
		case res := <-ch:
			timer.Stop()
			if res.Shared && !leader {
				c.opts.Metrics.RefreshShared()
			}
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Val.(*authsdk.TokenResponse), nil

		case <-ctx.Done():
			timer.Stop()
			return nil, &RefreshError{Class: authsdk.FailureTransient, Err: ctx.Err()}

		case <-timer.C:
			c.opts.Logger.WarnContext(ctx, "refresh wait exceeded",
				"attempt", attempt+1,
				"wait", c.opts.Wait,
			)
		}
	}

	c.opts.Metrics.Refresh("timeout")
	return nil, &RefreshError{Class: authsdk.FailureTransient, Err: ErrRefreshTimeout}
}

func (c *Coordinator) call(ctx context.Context, key, refreshToken string) (any, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.CallTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "session.Refresh",
		attribute.String("refresh.token_fp", key[:12]),
	)

	tokens, err := c.refresher.RefreshSession(ctx, refreshToken)
	if err != nil {
		class := authsdk.ClassifyRefreshError(err)
		span.SetAttributes(attribute.String("refresh.failure", class.String()))
		telemetry.EndSpan(span, err)

		c.opts.Metrics.Refresh(class.String())
		c.opts.Logger.WarnContext(ctx, "token refresh failed", "class", class.String(), "error", err)
		return nil, &RefreshError{Class: class, Err: err}
	}
	telemetry.EndSpan(span, nil)

	c.remember(key, tokens)
	c.opts.Metrics.Refresh("success")
	return tokens, nil
}

func (c *Coordinator) lookup(key string) (*authsdk.TokenResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.recent[key]
	if !ok || c.opts.Now().After(e.until) {
		return nil, false
	}
	return e.tokens, true
}

func (c *Coordinator) remember(key string, tokens *authsdk.TokenResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	for k, e := range c.recent {
		if now.After(e.until) {
			delete(c.recent, k)
		}
	}
	c.recent[key] = graceEntry{tokens: tokens, until: now.Add(c.opts.Grace)}
}
