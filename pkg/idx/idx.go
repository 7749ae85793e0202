package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a ULID rendered in its canonical 26 character form. Users, refresh
// tokens, orders and request ids all use it so rows sort by creation time.
type ID string

// Zero is the empty ID, only useful as a placeholder.
const Zero ID = ""

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

var (
	mu      sync.Mutex
	once    sync.Once
	entropy *ulid.MonotonicEntropy
)

func initEntropy() {
	entropy = ulid.Monotonic(rand.Reader, 0)
}

// New returns a new ID for the current UTC time. IDs generated within the
// same millisecond are still strictly increasing.
func New() ID {
	return NewAt(time.Now().UTC())
}

// NewAt returns an ID carrying the provided timestamp. Handy for tests that
// need deterministic ordering.
func NewAt(t time.Time) ID {
	once.Do(initEntropy)

	mu.Lock()
	defer mu.Unlock()

	return ID(ulid.MustNew(ulid.Timestamp(t), entropy).String())
}

// Parse validates s and returns it as an ID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalid
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

// MustParse parses or panics. Only use it for constants in tests.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Time extracts the embedded timestamp, or the zero time for invalid IDs.
func (id ID) Time() time.Time {
	if id.IsZero() {
		return time.Time{}
	}

	u, err := ulid.ParseStrict(id.String())
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}

// Compare orders two IDs lexically, which for ULIDs is creation order.
func Compare(a, b ID) int {
	return strings.Compare(a.String(), b.String())
}
