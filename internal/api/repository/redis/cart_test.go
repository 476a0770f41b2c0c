package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trongdv/bookstore/internal/api/domain"
)

func setupTestRedis(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := NewCartRepository(client, 24*time.Hour)
	return repo, mr
}

func sampleCart() *domain.Cart {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Cart{
		UserID: "user-001",
		Items: []domain.CartItem{
			{
				BookID:   1,
				Name:     "Clean Architecture",
				Price:    150000,
				Image:    "clean-architecture.jpg",
				Quantity: 2,
			},
		},
		UpdatedAt: now,
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestCartRepository_Get_Success(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	data, err := json.Marshal(cart)
	require.NoError(t, err)

	// Set data directly in miniredis.
	require.NoError(t, mr.Set("cart:"+cart.UserID, string(data)))

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, cart.UserID, got.UserID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(1), got.Items[0].BookID)
	assert.Equal(t, "Clean Architecture", got.Items[0].Name)
	assert.Equal(t, float64(150000), got.Items[0].Price)
	assert.Equal(t, 2, got.Items[0].Quantity)
}

// A missing key is an empty cart, not an error.
func TestCartRepository_Get_MissingKey(t *testing.T) {
	repo, _ := setupTestRedis(t)

	got, err := repo.Get(context.Background(), "nonexistent-user")
	require.NoError(t, err)
	assert.Equal(t, "nonexistent-user", got.UserID)
	assert.Empty(t, got.Items)
}

func TestCartRepository_Get_InvalidJSON(t *testing.T) {
	repo, mr := setupTestRedis(t)

	// Set corrupted JSON data.
	require.NoError(t, mr.Set("cart:user-bad", "{{not-valid-json"))

	got, err := repo.Get(context.Background(), "user-bad")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal cart")
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

func TestCartRepository_Save_RoundTrip(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	require.NoError(t, repo.Save(context.Background(), cart))

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, cart.Items[0], got.Items[0])
	assert.False(t, got.UpdatedAt.IsZero())

	ttl := mr.TTL("cart:" + cart.UserID)
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestCartRepository_Save_RefreshesTTL(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	require.NoError(t, repo.Save(context.Background(), cart))

	mr.FastForward(12 * time.Hour)
	require.NoError(t, repo.Save(context.Background(), cart))

	ttl := mr.TTL("cart:" + cart.UserID)
	assert.Equal(t, 24*time.Hour, ttl)
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestCartRepository_Delete(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	require.NoError(t, repo.Save(context.Background(), cart))
	require.NoError(t, repo.Delete(context.Background(), cart.UserID))

	assert.False(t, mr.Exists("cart:"+cart.UserID))

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

// Deleting a cart that never existed is not an error.
func TestCartRepository_Delete_Missing(t *testing.T) {
	repo, _ := setupTestRedis(t)

	assert.NoError(t, repo.Delete(context.Background(), "nonexistent-user"))
}
