package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func pool(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{Title: string(rune('A' + i)), URL: "https://example.com"}
	}
	return items
}

func TestDailyItemsSamplesWithoutRepeats(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider(pool(10))

	items, err := p.DailyItems(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 5)

	seen := map[string]bool{}
	for _, it := range items {
		require.False(t, seen[it.Title], "item %q sampled twice", it.Title)
		seen[it.Title] = true
	}
}

func TestDailyItemsClampsToPoolSize(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider(pool(3))

	items, err := p.DailyItems(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
}

func TestDailyItemsEmptyPool(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider(nil)

	items, err := p.DailyItems(context.Background(), 5)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestSetItemsSwapsPool(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider(pool(2))
	p.SetItems([]Item{{Title: "Only"}})

	items, err := p.DailyItems(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Only", items[0].Title)
}
