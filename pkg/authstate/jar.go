package authstate

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// MarkerCookie is the script-readable cookie that says a session exists.
const (
	MarkerCookie = "sb-auth-state"
	MarkerValue  = "authenticated"
)

// FileJar is a cookie jar for a single storefront origin, persisted as JSON
// so several processes can share one login. Writes replace the file by
// rename; readers never see a half-written jar.
type FileJar struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	cookies map[string]storedCookie
	hash    [sha256.Size]byte
}

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

type jarFile struct {
	UpdatedAt time.Time      `json:"updatedAt"`
	Cookies   []storedCookie `json:"cookies"`
}

// OpenFileJar loads the jar at path. A missing file is an empty jar.
func OpenFileJar(path string) (*FileJar, error) {
	j := &FileJar{
		path:    path,
		now:     time.Now,
		cookies: make(map[string]storedCookie),
	}
	if _, err := j.Reload(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *FileJar) Path() string { return j.path }

// SetCookies implements http.CookieJar. Deleting and expired cookies are
// dropped.
func (j *FileJar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, c := range cookies {
		switch {
		case c.MaxAge < 0:
			delete(j.cookies, c.Name)
			continue
		case c.MaxAge > 0:
			c.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			delete(j.cookies, c.Name)
			continue
		}
		j.cookies[c.Name] = storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}

	if err := j.save(); err != nil {
		slog.Default().Warn("cookie jar not saved", "path", j.path, "error", err)
	}
}

// Cookies implements http.CookieJar.
func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	out := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.sorted() {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		if c.Secure && u != nil && u.Scheme != "https" && u.Scheme != "wss" {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// Value returns the live value of the named cookie, or "".
func (j *FileJar) Value(name string) string {
	j.mu.Lock()
	defer j.mu.Unlock()

	c, ok := j.cookies[name]
	if !ok || (!c.Expires.IsZero() && !c.Expires.After(j.now())) {
		return ""
	}
	return c.Value
}

// Marker reports whether the marker cookie is present.
func (j *FileJar) Marker() bool {
	return j.Value(MarkerCookie) == MarkerValue
}

// Clear drops every cookie.
func (j *FileJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	clear(j.cookies)
	return j.save()
}

// Touch rewrites the jar with a new timestamp so that other processes
// watching the file re-check their state even when no cookie changed.
func (j *FileJar) Touch() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.save()
}

// Reload re-reads the file and reports whether it differs from what this
// jar last read or wrote.
func (j *FileJar) Reload() (bool, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		data = nil
	} else if err != nil {
		return false, err
	}

	sum := sha256.Sum256(data)

	j.mu.Lock()
	defer j.mu.Unlock()

	if sum == j.hash {
		return false, nil
	}

	next := make(map[string]storedCookie)
	if len(bytes.TrimSpace(data)) > 0 {
		var f jarFile
		if err := json.Unmarshal(data, &f); err != nil {
			return false, err
		}
		for _, c := range f.Cookies {
			next[c.Name] = c
		}
	}

	j.cookies = next
	j.hash = sum
	return true, nil
}

// save writes the jar. The caller holds mu.
func (j *FileJar) save() error {
	data, err := json.MarshalIndent(jarFile{UpdatedAt: j.now().UTC(), Cookies: j.sorted()}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".jar-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return err
	}

	j.hash = sha256.Sum256(data)
	return nil
}

func (j *FileJar) sorted() []storedCookie {
	out := make([]storedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
