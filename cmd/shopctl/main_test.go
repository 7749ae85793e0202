package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/orders"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

var shopper = authsdk.User{ID: "user-1", Email: "shopper@example.com"}

// fakeShop serves just enough of the storefront for the CLI.
type fakeShop struct {
	mu     sync.Mutex
	placed []domain.Order
	lines  []orders.CartLine
}

func newFakeShop(t *testing.T) (*fakeShop, *httptest.Server) {
	t.Helper()
	shop := &fakeShop{}

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	signedIn := func(r *http.Request) bool {
		c, err := r.Cookie("sb-access-token")
		return err == nil && c.Value == "access-1"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "hunter22" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sb-access-token", Value: "access-1", Path: "/", MaxAge: 3600, HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "sb-auth-state", Value: "authenticated", Path: "/", MaxAge: 3600})
		writeJSON(w, http.StatusOK, map[string]any{"user": shopper})
	})
	mux.HandleFunc("GET /api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		if !signedIn(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": shopper})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		for _, name := range []string{"sb-access-token", "sb-auth-state"} {
			http.SetCookie(w, &http.Cookie{Name: name, Path: "/", MaxAge: -1})
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	})
	mux.HandleFunc("GET /api/products", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"products": []domain.Product{
			{ID: "prod-classic-tee", Name: "Classic Tee", Price: 2500},
		}})
	})
	mux.HandleFunc("GET /api/orders", func(w http.ResponseWriter, r *http.Request) {
		if !signedIn(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		shop.mu.Lock()
		defer shop.mu.Unlock()
		writeJSON(w, http.StatusOK, orders.ListResponse{Orders: shop.placed})
	})
	mux.HandleFunc("POST /api/checkout/complete", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string            `json:"userId"`
			Items  []orders.CartLine `json:"items"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !signedIn(r) || req.UserID != shopper.ID {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Cannot create orders for other users"})
			return
		}

		shop.mu.Lock()
		defer shop.mu.Unlock()
		shop.lines = req.Items
		order := domain.Order{OrderNumber: "0d6a3c52-8f9e-4c5b-9f0a-6a1e2b3c4d5e", Status: "completed", Total: 5000, CreatedAt: time.Now()}
		shop.placed = append(shop.placed, order)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "orderNumber": order.OrderNumber, "path": "api"})
	})
	mux.HandleFunc("GET /cart", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sb-auth-state"); err != nil || c.Value != "authenticated" {
			http.Redirect(w, r, "/auth/login?redirect=/cart", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return shop, srv
}

func run(t *testing.T, baseURL, jar string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--base-url", baseURL, "--jar", jar}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSessionCommands(t *testing.T) {
	shop, srv := newFakeShop(t)
	jar := filepath.Join(t.TempDir(), "jar.json")

	out, err := run(t, srv.URL, jar, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "not signed in")

	out, err = run(t, srv.URL, jar, "open", "/cart")
	require.NoError(t, err)
	require.Contains(t, out, "/cart -> /auth/login?redirect=/cart")

	_, err = run(t, srv.URL, jar, "login", "-e", shopper.Email, "-p", "wrong")
	require.ErrorContains(t, err, "Invalid email or password")

	out, err = run(t, srv.URL, jar, "login", "-e", shopper.Email, "-p", "hunter22")
	require.NoError(t, err)
	require.Contains(t, out, "signed in as shopper@example.com")

	// A second process sharing the jar sees the login.
	out, err = run(t, srv.URL, jar, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "signed in as shopper@example.com")
	require.Contains(t, out, "id: user-1")

	out, err = run(t, srv.URL, jar, "open", "/cart")
	require.NoError(t, err)
	require.Contains(t, out, "/cart 200")

	out, err = run(t, srv.URL, jar, "products")
	require.NoError(t, err)
	require.Contains(t, out, "prod-classic-tee")
	require.Contains(t, out, "$25.00")

	out, err = run(t, srv.URL, jar, "checkout", "--item", "prod-classic-tee=2")
	require.NoError(t, err)
	require.Contains(t, out, "placed via api")
	require.Equal(t, []orders.CartLine{{ProductID: "prod-classic-tee", Quantity: 2}}, shop.lines)

	out, err = run(t, srv.URL, jar, "orders")
	require.NoError(t, err)
	require.Contains(t, out, "$50.00")

	out, err = run(t, srv.URL, jar, "logout")
	require.NoError(t, err)
	require.Contains(t, out, "not signed in")

	_, err = run(t, srv.URL, jar, "orders")
	require.ErrorIs(t, err, errNotSignedIn)

	_, err = run(t, srv.URL, jar, "checkout", "--item", "prod-classic-tee")
	require.ErrorIs(t, err, errNotSignedIn)
}

func TestParseItems(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []orders.CartLine
		wantErr bool
	}{
		{"default quantity", []string{"prod-a"}, []orders.CartLine{{ProductID: "prod-a", Quantity: 1}}, false},
		{"explicit quantity", []string{"prod-a=3", "prod-b=1"}, []orders.CartLine{{ProductID: "prod-a", Quantity: 3}, {ProductID: "prod-b", Quantity: 1}}, false},
		{"zero quantity", []string{"prod-a=0"}, nil, true},
		{"not a number", []string{"prod-a=two"}, nil, true},
		{"missing product", []string{"=2"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseItems(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMoney(t *testing.T) {
	require.Equal(t, "$25.00", money(2500))
	require.Equal(t, "$0.05", money(5))
	require.Equal(t, "-$1.50", money(-150))
}
