package http

import (
	"html/template"
	"net/http"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/orders"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
)

type CatalogHandlers struct {
	Orders *orders.Service
}

type productsResponse struct {
	Products []domain.Product `json:"products"`
}

// ListProducts godoc
//
//	@Summary		Product catalogue
//	@Tags			Catalogue
//	@Produce		json
//	@Success		200	{object}	productsResponse
//	@Router			/api/products [get].
func (h *CatalogHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Orders.Products(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("list products failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, productsResponse{Products: products})
}

// page is a shell rendered behind the route guard. The data itself comes
// from the API routes.
type page struct {
	path  string
	title string
	api   string
}

var pages = []page{
	{path: "/products", title: "Products", api: "/api/products"},
	{path: "/cart", title: "Cart"},
	{path: "/cart/checkout", title: "Checkout", api: "/api/checkout/complete"},
	{path: "/account", title: "Account", api: "/api/auth/session"},
	{path: "/orders", title: "Orders", api: "/api/orders"},
	{path: "/auth/login", title: "Log in", api: "/api/auth/login"},
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}} · Storefront</title></head>
<body data-path="{{.Path}}"{{if .API}} data-api="{{.API}}"{{end}}>
<main><h1>{{.Title}}</h1></main>
</body>
</html>
`))

func pageHandler(p page) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.NoCache(w)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err := pageTemplate.Execute(w, struct{ Path, Title, API string }{p.path, p.title, p.api})
		if err != nil {
			slogx.FromContext(r.Context()).Error("render page failed", "path", p.path, "error", err)
		}
	})
}
