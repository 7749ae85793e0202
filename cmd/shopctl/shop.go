package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/orders"
	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in: run shopctl login first")

func productsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the catalogue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			var out struct {
				Products []domain.Product `json:"products"`
			}
			if _, err := c.Do(cmd.Context(), http.MethodGet, "/api/products", nil, &out); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE")
			for _, p := range out.Products {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, money(p.Price))
			}
			return tw.Flush()
		},
	}
}

func ordersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			var out orders.ListResponse
			status, err := c.Do(cmd.Context(), http.MethodGet, "/api/orders", nil, &out)
			if status == http.StatusNoContent || status == http.StatusUnauthorized {
				return errNotSignedIn
			}
			if err != nil {
				return err
			}

			if len(out.Orders) == 0 {
				info(cmd.OutOrStdout(), "no orders yet")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tSTATUS\tITEMS\tTOTAL\tPLACED")
			for _, o := range out.Orders {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", o.OrderNumber, o.Status, len(o.Items), money(o.Total), o.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func checkoutCmd(opts *options) *cobra.Command {
	var (
		items       []string
		orderNumber string
	)

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the given items",
		Long: `Place an order. Items are product IDs with an optional quantity.

Examples:
  shopctl checkout --item prod-classic-tee=2 --item prod-enamel-mug`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines, err := parseItems(items)
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}

			user, err := c.Session(cmd.Context())
			if err != nil {
				return err
			}
			if user == nil {
				return errNotSignedIn
			}

			body := map[string]any{"userId": user.ID, "items": lines}
			if orderNumber != "" {
				body["orderNumber"] = orderNumber
			}
			var out struct {
				orders.CreateResponse
				Path string `json:"path"`
			}
			if _, err := c.Do(cmd.Context(), http.MethodPost, "/api/checkout/complete", body, &out); err != nil {
				return err
			}

			success(cmd.OutOrStdout(), "order %s placed", out.OrderNumber)
			info(cmd.OutOrStdout(), "placed via %s", out.Path)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&items, "item", "i", nil, "Product ID, optionally =quantity (repeatable)")
	cmd.Flags().StringVar(&orderNumber, "order-number", "", "Reuse an order number when retrying")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func parseItems(raw []string) ([]orders.CartLine, error) {
	lines := make([]orders.CartLine, 0, len(raw))
	for _, r := range raw {
		id, qty, found := strings.Cut(r, "=")
		line := orders.CartLine{ProductID: strings.TrimSpace(id), Quantity: 1}
		if found {
			n, err := strconv.Atoi(qty)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid quantity in %q", r)
			}
			line.Quantity = n
		}
		if line.ProductID == "" {
			return nil, fmt.Errorf("missing product in %q", r)
		}
		lines = append(lines, line)
	}
	return lines, nil
}
