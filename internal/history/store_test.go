package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/aireach/internal/db"
	"github.com/hpungsan/aireach/internal/errors"
	"github.com/hpungsan/aireach/internal/work"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return New(database, opts)
}

// steppingClock advances by one second on every reading.
func steppingClock(start time.Time) Clock {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func TestAppend_StoresExactFields(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()
	before := time.Now()

	rec, err := store.Append(ctx, "Les Misérables", "Victor Hugo", "excerpt X", "analysis Y")
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, "Les Misérables", got.Title)
	require.Equal(t, "Victor Hugo", got.Author)
	require.Equal(t, "excerpt X", got.Excerpt)
	require.Equal(t, "analysis Y", got.AnalysisText)
	require.False(t, got.CreatedAt.Before(before), "createdAt %v precedes call time %v", got.CreatedAt, before)
}

func TestAppend_NewestFirst(t *testing.T) {
	store := newTestStore(t, Options{Clock: steppingClock(time.Unix(1700000000, 0))})
	ctx := context.Background()

	_, err := store.Append(ctx, "A", "B", "e1", "a1")
	require.NoError(t, err)
	_, err = store.Append(ctx, "C", "D", "e2", "a2")
	require.NoError(t, err)

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, work.Identity{Title: "C", Author: "D"}, records[0].Identity())
	require.Equal(t, work.Identity{Title: "A", Author: "B"}, records[1].Identity())
}

func TestAppend_NRecordsDescending(t *testing.T) {
	store := newTestStore(t, Options{Clock: steppingClock(time.Unix(1700000000, 0))})
	ctx := context.Background()
	const n = 10

	for i := 0; i < n; i++ {
		_, err := store.Append(ctx, "title", "author", "excerpt", "analysis")
		require.NoError(t, err)
	}

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, n)
	for i := 1; i < len(records); i++ {
		require.True(t, records[i-1].CreatedAt.After(records[i].CreatedAt),
			"records[%d]=%v not after records[%d]=%v", i-1, records[i-1].CreatedAt, i, records[i].CreatedAt)
	}

	removed, err := store.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, n, removed)

	records, err = store.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestAppend_IdenticalTimestampsKeepInsertionOrder(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	store := newTestStore(t, Options{Clock: func() time.Time { return fixed }})
	ctx := context.Background()

	_, err := store.Append(ctx, "first", "x", "e", "a")
	require.NoError(t, err)
	_, err = store.Append(ctx, "second", "x", "e", "a")
	require.NoError(t, err)

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, "second", records[0].Title)
	require.Equal(t, "first", records[1].Title)
}

func TestAppendManual_Sentinels(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	rec, err := store.AppendManual(ctx, "Dune", "Frank Herbert")
	require.NoError(t, err)
	require.Equal(t, work.ManualExcerpt, rec.Excerpt)
	require.Equal(t, work.ManualAnalysis, rec.AnalysisText)

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Manually added", records[0].Excerpt)
	require.Equal(t, "Not yet analyzed", records[0].AnalysisText)
	require.True(t, records[0].IsManual())
}

func TestAppendManual_RequiresTitleAndAuthor(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	_, err := store.AppendManual(ctx, "  ", "Frank Herbert")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	_, err = store.AppendManual(ctx, "Dune", "")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestListAll_ReturnsSnapshot(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	_, err := store.Append(ctx, "Emma", "Jane Austen", "e", "a")
	require.NoError(t, err)

	first, err := store.ListAll(ctx)
	require.NoError(t, err)
	first[0].Title = "mutated"

	second, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, "Emma", second[0].Title)
}

func TestClear_Empty(t *testing.T) {
	store := newTestStore(t, Options{})

	removed, err := store.Clear(context.Background())
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestClear_StoreUsableAfterwards(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	_, err := store.Append(ctx, "A", "B", "e", "a")
	require.NoError(t, err)
	_, err = store.Clear(ctx)
	require.NoError(t, err)

	_, err = store.Append(ctx, "C", "D", "e", "a")
	require.NoError(t, err)

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "C", records[0].Title)
}

func TestExport_StreamsNewestFirst(t *testing.T) {
	store := newTestStore(t, Options{Clock: steppingClock(time.Unix(1700000000, 0))})
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		_, err := store.Append(ctx, title, "x", "e", "a")
		require.NoError(t, err)
	}

	var titles []string
	n, err := store.Export(ctx, func(r *work.Record) error {
		titles = append(titles, r.Title)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []string{"three", "two", "one"}, titles)
}

func TestOperations_CancelledContext(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Append(ctx, "A", "B", "e", "a")
	require.True(t, errors.Is(err, errors.ErrCancelled), "Append: %v", err)

	_, err = store.ListAll(ctx)
	require.True(t, errors.Is(err, errors.ErrCancelled), "ListAll: %v", err)

	_, err = store.Clear(ctx)
	require.True(t, errors.Is(err, errors.ErrCancelled), "Clear: %v", err)
}

func TestStore_ConcurrentAppends(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()
	const workers = 8

	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Append(ctx, "t", "a", "e", "x")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, workers)

	seen := make(map[string]bool)
	for _, r := range records {
		require.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}

func TestStore_ClosedDatabase(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	store := New(database, Options{})
	database.Close()

	_, err = store.Append(context.Background(), "A", "B", "e", "a")
	require.True(t, errors.Is(err, errors.ErrStoreUnavailable), "got %v", err)
}
