//go:build integration

package cart

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPostgresSlot(t *testing.T) *PostgresSlot {
	t.Helper()

	dsn := os.Getenv("CART_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CART_TEST_DATABASE_URL not set")
	}

	db, err := OpenPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewPostgresSlot(db)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestPostgresSlot_MissingKey(t *testing.T) {
	s := setupPostgresSlot(t)

	_, ok, err := s.Get(context.Background(), "cartProduct:"+uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresSlot_SetOverwrites(t *testing.T) {
	s := setupPostgresSlot(t)
	ctx := context.Background()
	key := KeyFor("d_" + uuid.NewString())

	require.NoError(t, s.Set(ctx, key, `[]`))
	require.NoError(t, s.Set(ctx, key, `[{"id":"a"}]`))

	got, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"a"}]`, got)
}

func TestPostgresSlot_StoreRoundTrip(t *testing.T) {
	slot := setupPostgresSlot(t)
	key := KeyFor("d_" + uuid.NewString())

	st := NewStore(slot, key)
	require.NoError(t, st.Load(context.Background()))
	st.AddToCart(shoe)
	require.NoError(t, st.Increment(shoe.ID).Wait(context.Background()))
	require.NoError(t, st.Close(context.Background()))

	reloaded := NewStore(slot, key)
	defer reloaded.Close(context.Background())
	require.NoError(t, reloaded.Load(context.Background()))

	items := reloaded.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}
