package authstate

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is how often PollTrigger looks at a marker-only state.
const DefaultPollInterval = 60 * time.Second

// Trigger re-runs the watcher's check when something outside it changes.
// Run blocks until ctx is done.
type Trigger interface {
	Run(ctx context.Context, w *Watcher) error
}

// Run checks once, as a mount would, then runs every trigger until ctx is
// done or one of them fails.
func (w *Watcher) Run(ctx context.Context, triggers ...Trigger) error {
	if _, err := w.Check(ctx); err != nil {
		slogx.FromContext(ctx).Warn("initial auth check failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range triggers {
		g.Go(func() error { return t.Run(gctx, w) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Navigator re-checks on every route change.
type Navigator struct {
	Watcher *Watcher

	// OnNavigate, if set, is told about each route change before the check.
	OnNavigate func(path string)

	mu   sync.Mutex
	path string
}

func (n *Navigator) Navigate(ctx context.Context, path string) (State, error) {
	n.mu.Lock()
	n.path = path
	n.mu.Unlock()

	if n.OnNavigate != nil {
		n.OnNavigate(path)
	}
	return n.Watcher.Check(ctx)
}

// Current is the last path navigated to.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

// PollTrigger re-checks on a timer, but only while the marker is the sole
// reason the state is authenticated.
type PollTrigger struct {
	Interval time.Duration
}

func (t PollTrigger) Run(ctx context.Context, w *Watcher) error {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if st := w.State(); st.IsAuthenticated && st.User == nil {
				_, _ = w.Check(ctx)
			}
		}
	}
}

// StorageTrigger re-checks when another process rewrites the shared jar
// file.
type StorageTrigger struct {
	Jar *FileJar
}

func (t StorageTrigger) Run(ctx context.Context, w *Watcher) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory: the jar is replaced by rename, which drops a
	// watch on the file itself.
	if err := fw.Add(filepath.Dir(t.Jar.Path())); err != nil {
		return err
	}
	name := filepath.Base(t.Jar.Path())
	logger := slogx.FromContext(ctx)

	// Catch writes that landed before the watch was in place.
	if changed, err := t.Jar.Reload(); err == nil && changed {
		_, _ = w.Check(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			changed, err := t.Jar.Reload()
			if err != nil {
				logger.Debug("cookie jar reload failed", "error", err)
				continue
			}
			if changed {
				_, _ = w.Check(ctx)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("cookie jar watch error", "error", err)
		}
	}
}

// PushTrigger re-checks whenever the server pushes an auth event for the
// session's user, and after every reconnect.
type PushTrigger struct {
	// URL is the ws:// or wss:// address of /api/auth/events.
	URL string
	Jar *FileJar

	// RetryInterval is the pause between connection attempts.
	RetryInterval time.Duration
}

func (t PushTrigger) Run(ctx context.Context, w *Watcher) error {
	retry := t.RetryInterval
	if retry <= 0 {
		retry = 5 * time.Second
	}
	dialer := *websocket.DefaultDialer
	dialer.Jar = t.Jar
	logger := slogx.FromContext(ctx)

	for {
		conn, _, err := dialer.DialContext(ctx, t.URL, nil)
		if err == nil {
			_, _ = w.Check(ctx)
			t.listen(ctx, conn, w)
		} else {
			logger.Debug("auth events unavailable", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

func (t PushTrigger) listen(ctx context.Context, conn *websocket.Conn, w *Watcher) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_, _ = w.Check(ctx)
	}
}
