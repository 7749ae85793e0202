package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/session"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

const (
	PathService = "service"
	PathAPI     = "api"
	PathDirect  = "direct"
)

// DirectPlacer writes straight to the store with no catalogue check. It is
// the last resort, so a failure to write items is logged and the order is
// still reported as placed.
type DirectPlacer struct {
	Orders store.Orders
	Now    func() time.Time
}

func (p *DirectPlacer) Place(ctx context.Context, cmd PlaceOrder) (domain.Order, error) {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	order, err := ensureOrder(ctx, p.Orders, cmd, now)
	if err != nil {
		return domain.Order{}, err
	}

	if err := ensureItems(ctx, p.Orders, order, cmd.Items); err != nil {
		slogx.FromContext(ctx).ErrorContext(ctx, "order items not saved by direct write",
			"order_id", order.ID,
			"order_number", order.OrderNumber,
			"error", err,
		)
		return order, nil
	}

	return p.Orders.GetOrderByNumber(ctx, order.OrderNumber)
}

// APIPlacer places the order through the storefront's own POST /api/orders,
// forwarding the customer's access token and auth marker as cookies. The
// refresh token is not forwarded: a rotation inside the internal call would
// set cookies on a response the customer never sees.
type APIPlacer struct {
	BaseURL string
	Client  *http.Client
}

func (p *APIPlacer) Place(ctx context.Context, cmd PlaceOrder) (domain.Order, error) {
	body, err := json.Marshal(requestFor(cmd))
	if err != nil {
		return domain.Order{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.BaseURL, "/")+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return domain.Order{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: session.AccessTokenCookie, Value: cmd.AccessToken})
	req.AddCookie(&http.Cookie{Name: session.AuthStateCookie, Value: session.AuthStateAuthenticated})

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders api: read body: %w", err)
	}

	var out CreateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Order{}, fmt.Errorf("orders api: HTTP %d: undecodable body", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return domain.Order{}, fmt.Errorf("orders api: HTTP %d: %s", resp.StatusCode, out.Error)
	}
	if out.OrderNumber != cmd.OrderNumber {
		return domain.Order{}, fmt.Errorf("orders api: order number changed from %s to %s", cmd.OrderNumber, out.OrderNumber)
	}

	order := cmd.order()
	order.ID = out.OrderID
	return order, nil
}
