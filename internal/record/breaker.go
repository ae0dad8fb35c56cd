package record

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type breakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker fails fast while the backend keeps erroring. Not-found results
// count as successes.
func WithBreaker(next Store, st gobreaker.Settings) Store {
	if st.Name == "" {
		st.Name = "record-store"
	}
	if st.IsSuccessful == nil {
		st.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey)
		}
	}
	return &breakerStore{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func guarded[T any](b *breakerStore, op string, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (interface{}, error) { return fn() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, &StoreError{Op: op, Err: errors.Join(ErrCircuitOpen, err)}
	}
	v, _ := out.(T)
	return v, err
}

func (b *breakerStore) Merge(ctx context.Context, key Key, userID string, fields map[string]any) (Record, error) {
	return guarded(b, "merge", func() (Record, error) { return b.next.Merge(ctx, key, userID, fields) })
}

func (b *breakerStore) Get(ctx context.Context, key Key) (Record, error) {
	return guarded(b, "get", func() (Record, error) { return b.next.Get(ctx, key) })
}

func (b *breakerStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	return guarded(b, "list", func() ([]Record, error) { return b.next.ListByUser(ctx, userID) })
}

func (b *breakerStore) ListAll(ctx context.Context) ([]Record, error) {
	return guarded(b, "list", func() ([]Record, error) { return b.next.ListAll(ctx) })
}

func (b *breakerStore) GetMany(ctx context.Context, keys []Key) ([]Record, error) {
	return guarded(b, "get_many", func() ([]Record, error) { return b.next.GetMany(ctx, keys) })
}

func (b *breakerStore) Delete(ctx context.Context, key Key) error {
	_, err := guarded(b, "delete", func() (struct{}, error) { return struct{}{}, b.next.Delete(ctx, key) })
	return err
}
