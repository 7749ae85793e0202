package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderValidate(t *testing.T) {
	item := OrderItem{ProductID: "p1", Quantity: 2, Price: 500}

	tests := []struct {
		name  string
		order Order
		want  error
	}{
		{"valid", Order{Total: 1000, Items: []OrderItem{item}}, nil},
		{"no items", Order{Total: 1000}, ErrNoItems},
		{"negative total", Order{Total: -1, Items: []OrderItem{item}}, ErrInvalidPrice},
		{"zero quantity", Order{Items: []OrderItem{{ProductID: "p1"}}}, ErrInvalidQuantity},
		{"no product", Order{Items: []OrderItem{{Quantity: 1}}}, ErrMissingProduct},
		{"negative price", Order{Items: []OrderItem{{ProductID: "p1", Quantity: 1, Price: -5}}}, ErrInvalidPrice},
		{"quantity over cap", Order{Items: []OrderItem{{ProductID: "p1", Quantity: MaxItemQuantity + 1, Price: 1}}}, ErrInvalidQuantity},
		{"line overflows", Order{Items: []OrderItem{{ProductID: "p1", Quantity: 2, Price: math.MaxInt64/2 + 1}}}, ErrTotalOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate()
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestItemsTotal(t *testing.T) {
	o := Order{Items: []OrderItem{
		{ProductID: "a", Quantity: 2, Price: 250},
		{ProductID: "b", Quantity: 1, Price: 1999},
	}}
	total, err := o.ItemsTotal()
	require.NoError(t, err)
	require.EqualValues(t, 2499, total)

	t.Run("sum overflows", func(t *testing.T) {
		big := Order{Items: []OrderItem{
			{ProductID: "a", Quantity: 1, Price: math.MaxInt64},
			{ProductID: "b", Quantity: 1, Price: 1},
		}}
		_, err := big.ItemsTotal()
		require.ErrorIs(t, err, ErrTotalOverflow)
	})

	t.Run("max quantity of a max price fits", func(t *testing.T) {
		edge := Order{Items: []OrderItem{{ProductID: "a", Quantity: MaxItemQuantity, Price: math.MaxInt64 / MaxItemQuantity}}}
		_, err := edge.ItemsTotal()
		require.NoError(t, err)
	})
}
