package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/checkoutcore/internal/domain"
	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seededInventory(t *testing.T, products ...domain.Product) *InventoryStore {
	t.Helper()
	s := NewInventoryStore()
	for i := range products {
		require.NoError(t, s.Upsert(context.Background(), &products[i]))
	}
	return s
}

// ============================================================================
// InventoryStore Tests
// ============================================================================

func TestInventory_ReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	s := seededInventory(t, domain.Product{ID: "p1", UnitPrice: 100, Stock: 5})

	require.NoError(t, s.Reserve(ctx, "p1", 3))
	p, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	err = s.Reserve(ctx, "p1", 3)
	assert.True(t, apperrors.Is(err, apperrors.KindOutOfStock))
	p, _ = s.Get(ctx, "p1")
	assert.Equal(t, 2, p.Stock, "failed reserve must not mutate")

	require.NoError(t, s.Release(ctx, "p1", 3))
	p, _ = s.Get(ctx, "p1")
	assert.Equal(t, 5, p.Stock)
}

func TestInventory_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	s := NewInventoryStore()

	assert.True(t, apperrors.Is(s.Reserve(ctx, "nope", 1), apperrors.KindNotFound))
	assert.True(t, apperrors.Is(s.Release(ctx, "nope", 1), apperrors.KindNotFound))
	_, err := s.Get(ctx, "nope")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestInventory_RejectsNonPositiveQuantity(t *testing.T) {
	s := seededInventory(t, domain.Product{ID: "p1", Stock: 5})
	assert.True(t, apperrors.Is(s.Reserve(context.Background(), "p1", 0), apperrors.KindInvalidArgument))
	assert.True(t, apperrors.Is(s.Release(context.Background(), "p1", -1), apperrors.KindInvalidArgument))
}

func TestInventory_ReserveHonoursCancelledContext(t *testing.T) {
	s := seededInventory(t, domain.Product{ID: "p1", Stock: 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Reserve(ctx, "p1", 1), context.Canceled)
	p, _ := s.Get(context.Background(), "p1")
	assert.Equal(t, 5, p.Stock)
}

func TestInventory_GetReturnsCopy(t *testing.T) {
	s := seededInventory(t, domain.Product{ID: "p1", Stock: 5})
	p, _ := s.Get(context.Background(), "p1")
	p.Stock = 100

	again, _ := s.Get(context.Background(), "p1")
	assert.Equal(t, 5, again.Stock)
}

func TestInventory_NoOversellUnderContention(t *testing.T) {
	const stock = 50
	s := seededInventory(t, domain.Product{ID: "hot", Stock: stock})

	var succeeded atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			if s.Reserve(context.Background(), "hot", qty) == nil {
				succeeded.Add(int64(qty))
			}
		}(i%3 + 1)
	}
	wg.Wait()

	p, _ := s.Get(context.Background(), "hot")
	assert.LessOrEqual(t, succeeded.Load(), int64(stock))
	assert.Equal(t, stock-int(succeeded.Load()), p.Stock)
	assert.GreaterOrEqual(t, p.Stock, 0)
}

func TestInventory_ProductsDoNotBlockEachOther(t *testing.T) {
	s := seededInventory(t,
		domain.Product{ID: "a", Stock: 1},
		domain.Product{ID: "b", Stock: 1},
	)

	// Hold a's slot lock; b must still be reservable.
	sl, _ := s.slot("a")
	sl.mu.Lock()
	defer sl.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Reserve(context.Background(), "b", 1) }()
	assert.NoError(t, <-done)
}

func TestInventory_SetPriceAndList(t *testing.T) {
	ctx := context.Background()
	s := seededInventory(t,
		domain.Product{ID: "c", UnitPrice: 3},
		domain.Product{ID: "a", UnitPrice: 1},
		domain.Product{ID: "b", UnitPrice: 2},
	)

	require.NoError(t, s.SetPrice(ctx, "a", 10))
	assert.True(t, apperrors.Is(s.SetPrice(ctx, "zz", 10), apperrors.KindNotFound))

	page, total, err := s.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, int64(10), page[0].UnitPrice)
	assert.Equal(t, "b", page[1].ID)

	rest, _, _ := s.List(ctx, 2, 2)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ID)

	beyond, _, _ := s.List(ctx, 10, 2)
	assert.Empty(t, beyond)

	negative, total, err := s.List(ctx, -4, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, negative)
}

// ============================================================================
// CartStore Tests
// ============================================================================

func TestCart_AppendKeepsInsertionOrderAndAccumulates(t *testing.T) {
	ctx := context.Background()
	c := NewCartStore()

	require.NoError(t, c.Append(ctx, "s1", "b", 1))
	require.NoError(t, c.Append(ctx, "s1", "a", 2))
	require.NoError(t, c.Append(ctx, "s1", "b", 3))

	snap, err := c.Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []domain.CartEntry{
		{ProductID: "b", Quantity: 4, Reserved: 4},
		{ProductID: "a", Quantity: 2, Reserved: 2},
	}, snap)
}

func TestCart_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	c := NewCartStore()
	require.NoError(t, c.Append(ctx, "s1", "a", 1))

	snap, _ := c.Snapshot(ctx, "s1")
	snap[0].Quantity = 99

	again, _ := c.Snapshot(ctx, "s1")
	assert.Equal(t, 1, again[0].Quantity)
}

func TestCart_EmptyAndClear(t *testing.T) {
	ctx := context.Background()
	c := NewCartStore()

	snap, err := c.Snapshot(ctx, "none")
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Empty(t, snap)

	require.NoError(t, c.Append(ctx, "s1", "a", 1))
	require.NoError(t, c.Append(ctx, "s2", "a", 1))
	require.NoError(t, c.Clear(ctx, "s1"))

	s1, _ := c.Snapshot(ctx, "s1")
	s2, _ := c.Snapshot(ctx, "s2")
	assert.Empty(t, s1)
	assert.Len(t, s2, 1)
}

func TestCart_SetReserved(t *testing.T) {
	ctx := context.Background()
	c := NewCartStore()
	require.NoError(t, c.Append(ctx, "s1", "a", 2))

	require.NoError(t, c.SetReserved(ctx, "s1", "a", 0))
	snap, _ := c.Snapshot(ctx, "s1")
	assert.Equal(t, domain.CartEntry{ProductID: "a", Quantity: 2, Reserved: 0}, snap[0])

	assert.True(t, apperrors.Is(c.SetReserved(ctx, "s1", "zz", 1), apperrors.KindNotFound))
}

// ============================================================================
// OrderLedger / AttemptRepository Tests
// ============================================================================

func TestLedger_AppendAndList(t *testing.T) {
	ctx := context.Background()
	l := NewOrderLedger()

	require.NoError(t, l.Append(ctx, &domain.Order{ID: "o1", SessionID: "s1", Lines: []domain.OrderLine{{ProductID: "a"}}}))
	require.NoError(t, l.Append(ctx, &domain.Order{ID: "o2", SessionID: "s1"}))
	require.NoError(t, l.Append(ctx, &domain.Order{ID: "o3", SessionID: "s2"}))

	err := l.Append(ctx, &domain.Order{ID: "o1", SessionID: "s1"})
	assert.True(t, apperrors.Is(err, apperrors.KindAlreadyExists))

	orders, err := l.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, "o2", orders[1].ID)

	orders[0].Lines[0].ProductID = "mutated"
	again, _ := l.ListBySession(ctx, "s1")
	assert.Equal(t, "a", again[0].Lines[0].ProductID)

	none, err := l.ListBySession(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAttempts_SaveGetList(t *testing.T) {
	ctx := context.Background()
	r := NewAttemptRepository()

	a := domain.NewCheckoutAttempt("a1", "s1", fixedNow)
	require.NoError(t, r.Save(ctx, a))
	require.NoError(t, a.TransitionTo(domain.AttemptPricing, fixedNow))
	require.NoError(t, r.Save(ctx, a))
	require.NoError(t, r.Save(ctx, domain.NewCheckoutAttempt("a2", "s1", fixedNow)))

	got, err := r.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptPricing, got.State)

	list, err := r.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a1", list[0].ID)

	_, err = r.Get(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
