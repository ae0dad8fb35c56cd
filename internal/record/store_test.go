package record_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/cityprosperity/internal/db"
	"github.com/mind-engage/cityprosperity/internal/record"
)

func mustKey(t *testing.T, city, country string) record.Key {
	t.Helper()
	k, err := record.NewKey(city, country)
	require.NoError(t, err)
	return k
}

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, s record.Store) {
	ctx := context.Background()
	nairobi := mustKey(t, "Nairobi", "Kenya")

	_, err := s.Get(ctx, nairobi)
	assert.ErrorIs(t, err, record.ErrNotFound)

	r, err := s.Merge(ctx, nairobi, "u1", map[string]any{
		"co2_emissions":              0.5,
		"co2_emissions_standardized": 93.1,
		"co2_emissions_comment":      "VERY SOLID",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "u1", r.UserID)
	created := r.CreatedAt

	// later write wins per field; untouched fields survive
	r, err = s.Merge(ctx, mustKey(t, "  nairobi ", "KENYA"), "u2", map[string]any{
		"co2_emissions_standardized": 50.0,
		"voter_turnout_standardized": 61.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "u2", r.UserID)
	assert.Equal(t, created, r.CreatedAt)
	assert.Equal(t, "Nairobi", r.City)

	got, err := s.Get(ctx, nairobi)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, 0.5, got.Fields["co2_emissions"])
	assert.Equal(t, 50.0, got.Fields["co2_emissions_standardized"])
	assert.Equal(t, 61.0, got.Fields["voter_turnout_standardized"])
	assert.Equal(t, "VERY SOLID", got.Fields["co2_emissions_comment"])

	lima := mustKey(t, "Lima", "Peru")
	_, err = s.Merge(ctx, lima, "u1", map[string]any{"gini_coefficient_standardized": 40.0})
	require.NoError(t, err)

	mine, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Lima", mine[0].City)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Kenya", all[0].Country)

	many, err := s.GetMany(ctx, []record.Key{lima, nairobi})
	require.NoError(t, err)
	require.Len(t, many, 2)
	assert.Equal(t, "Lima", many[0].City)
	assert.Equal(t, "Nairobi", many[1].City)

	_, err = s.GetMany(ctx, []record.Key{lima, mustKey(t, "Quito", "Ecuador")})
	assert.ErrorIs(t, err, record.ErrNotFound)

	require.NoError(t, s.Delete(ctx, lima))
	assert.ErrorIs(t, s.Delete(ctx, lima), record.ErrNotFound)
	_, err = s.Get(ctx, lima)
	assert.ErrorIs(t, err, record.ErrNotFound)
}

// concurrent merges of disjoint fields must all land
func exerciseDisjointMerges(t *testing.T, s record.Store) {
	ctx := context.Background()
	k := mustKey(t, "Accra", "Ghana")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Merge(ctx, k, "u", map[string]any{fmt.Sprintf("ind_%d_standardized", i): float64(i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	r, err := s.Get(ctx, k)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		assert.Equal(t, float64(i), r.Fields[fmt.Sprintf("ind_%d_standardized", i)])
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, record.NewMemoryStore())
	exerciseDisjointMerges(t, record.NewMemoryStore())
}

func openSQLite(t *testing.T) *record.SQLStore {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverSQLite, "file::memory:?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return record.NewSQLStore(conn, "sqlite")
}

func TestSQLStore(t *testing.T) {
	exerciseStore(t, openSQLite(t))
	exerciseDisjointMerges(t, openSQLite(t))
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := record.ConnectMongo(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	database := client.Database(fmt.Sprintf("cpi_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = database.Drop(context.Background()) })

	s, err := record.NewMongoStore(ctx, database)
	require.NoError(t, err)
	exerciseStore(t, s)
	exerciseDisjointMerges(t, s)
}

func TestKeys(t *testing.T) {
	k, err := record.NewKey("  Rio   de Janeiro ", " Brazil")
	require.NoError(t, err)
	assert.Equal(t, "Rio de Janeiro:Brazil", k.String())

	_, err = record.NewKey("", "Brazil")
	assert.ErrorIs(t, err, record.ErrInvalidKey)

	k, err = record.ParseKey("Rio de Janeiro:Brazil")
	require.NoError(t, err)
	assert.Equal(t, "Rio de Janeiro", k.City)

	_, err = record.ParseKey("Lagos")
	assert.ErrorIs(t, err, record.ErrInvalidKey)
}

type failingStore struct {
	record.Store
	calls int
}

func (f *failingStore) Get(context.Context, record.Key) (record.Record, error) {
	f.calls++
	return record.Record{}, &record.StoreError{Op: "get", Err: errors.New("connection refused")}
}

func TestBreakerOpensAndFailsFast(t *testing.T) {
	inner := &failingStore{Store: record.NewMemoryStore()}
	s := record.WithBreaker(inner, gobreaker.Settings{
		Timeout: time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	})
	k := mustKey(t, "Dakar", "Senegal")

	for i := 0; i < 2; i++ {
		_, err := s.Get(context.Background(), k)
		var se *record.StoreError
		require.ErrorAs(t, err, &se)
	}
	_, err := s.Get(context.Background(), k)
	var se *record.StoreError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, record.ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	s := record.WithBreaker(record.NewMemoryStore(), gobreaker.Settings{
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	k := mustKey(t, "Dakar", "Senegal")
	for i := 0; i < 3; i++ {
		_, err := s.Get(context.Background(), k)
		assert.ErrorIs(t, err, record.ErrNotFound)
		assert.NotErrorIs(t, err, record.ErrCircuitOpen)
	}
	_, err := s.Merge(context.Background(), k, "u", map[string]any{"x": 1.0})
	assert.NoError(t, err)
}
