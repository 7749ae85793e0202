package sqlite

import (
	"testing"

	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/internal/storefront/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		st, err := NewStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		require.NoError(t, st.ApplyMigrations())
		require.NoError(t, st.ApplyMigrations())
		return st
	})
}

func TestPlaceholders(t *testing.T) {
	require.Equal(t, "?", placeholders(1))
	require.Equal(t, "?, ?, ?", placeholders(3))
}
