package orders

import (
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/storefront/session"
	"github.com/aussiebroadwan/storefront/internal/storefront/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// SessionResolver is satisfied by *session.Resolver.
type SessionResolver interface {
	Resolve(w http.ResponseWriter, r *http.Request) (*session.Session, error)
}

// Gate is the only way an order gets created. It binds the order to the
// resolved session before any write.
type Gate struct {
	Sessions SessionResolver
	Command  *PlaceOrderCommand

	// NewOrderNumber defaults to a random UUID.
	NewOrderNumber func() string
}

// Create resolves the session, checks that req is for the session's user and
// runs the placement command. Session errors are returned unchanged so the
// caller can pick the status.
func (g *Gate) Create(w http.ResponseWriter, r *http.Request, req CreateRequest) (placement *Placement, err error) {
	ctx, span := telemetry.StartSpan(r.Context(), "orders.Create")
	defer func() { telemetry.EndSpan(span, err) }()

	sess, err := g.Sessions.Resolve(w, r.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if req.UserID != sess.User.ID {
		return nil, ErrForbidden
	}

	cmd, err := req.command()
	if err != nil {
		return nil, err
	}
	cmd.AccessToken = sess.AccessToken

	if cmd.OrderNumber == "" {
		cmd.OrderNumber = g.newOrderNumber()
	}
	span.SetAttributes(attribute.String("orders.number", cmd.OrderNumber))

	return g.Command.Execute(ctx, cmd)
}

func (g *Gate) newOrderNumber() string {
	if g.NewOrderNumber != nil {
		return g.NewOrderNumber()
	}
	return uuid.NewString()
}
