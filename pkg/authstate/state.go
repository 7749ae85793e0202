package authstate

import (
	"context"
	"errors"
	"sync"

	"github.com/aussiebroadwan/storefront/pkg/authsdk"
)

// ErrPartialAuth is returned by a Source when the server reports the marker
// without any credentials behind it.
var ErrPartialAuth = errors.New("authstate: marker present without credentials")

// State is the client's view of the session.
type State struct {
	User            *authsdk.User
	IsAuthenticated bool
	IsLoading       bool

	// PartialAuth is set when the server saw the marker but no tokens. The
	// client should ask for a fresh login.
	PartialAuth bool
}

// Merge combines the two signals with OR. A marker without a server user
// still counts as authenticated, with the user unknown; a stale "logged in"
// is preferred over a false "logged out" flash.
func Merge(user *authsdk.User, marker bool) State {
	return State{
		User:            user,
		IsAuthenticated: user != nil || marker,
	}
}

func (s State) equal(o State) bool {
	if s.IsAuthenticated != o.IsAuthenticated || s.IsLoading != o.IsLoading || s.PartialAuth != o.PartialAuth {
		return false
	}
	if (s.User == nil) != (o.User == nil) {
		return false
	}
	return s.User == nil || s.User.ID == o.User.ID
}

// Source provides the two signals.
type Source interface {
	// Session returns the server's user, nil when there is none, or
	// ErrPartialAuth.
	Session(ctx context.Context) (*authsdk.User, error)

	// Marker reports whether the marker cookie says authenticated.
	Marker() bool
}

// Watcher holds the current State and tells subscribers when it changes.
type Watcher struct {
	src Source

	checkMu sync.Mutex

	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

func NewWatcher(src Source) *Watcher {
	return &Watcher{
		src:   src,
		state: State{IsLoading: true},
		subs:  make(map[int]func(State)),
	}
}

// State returns the current state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Check re-reads both signals and publishes the merged state. A failed
// server call falls back to the marker alone and is returned.
func (w *Watcher) Check(ctx context.Context) (State, error) {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	user, err := w.src.Session(ctx)
	partial := errors.Is(err, ErrPartialAuth)
	if partial {
		err = nil
	}

	next := Merge(user, w.src.Marker())
	next.PartialAuth = partial
	w.set(next)
	return next, err
}

// Reset publishes the logged-out state without asking anyone.
func (w *Watcher) Reset() {
	w.set(State{})
}

// Subscribe registers fn for state changes and returns a func that removes
// it. fn runs on the goroutine that changed the state.
func (w *Watcher) Subscribe(fn func(State)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	w.subs[id] = fn

	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

func (w *Watcher) set(next State) {
	w.mu.Lock()
	if w.state.equal(next) {
		w.mu.Unlock()
		return
	}
	w.state = next
	fns := make([]func(State), 0, len(w.subs))
	for _, fn := range w.subs {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}
