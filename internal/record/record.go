package record

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Record is one city's accumulated indicator fields.
type Record struct {
	ID        string         `json:"id"`
	City      string         `json:"city"`
	Country   string         `json:"country"`
	UserID    string         `json:"user_id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt int64          `json:"created_at"`
	UpdatedAt int64          `json:"updated_at"`
}

// Key returns the display key "City:Country".
func (r Record) Key() Key { return Key{City: r.City, Country: r.Country} }

// Key identifies a record. Comparison is case-insensitive after whitespace
// is collapsed.
type Key struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

var (
	ErrNotFound   = errors.New("record not found")
	ErrInvalidKey = errors.New("city and country are required")
)

// NewKey normalizes city and country and rejects empty parts.
func NewKey(city, country string) (Key, error) {
	k := Key{City: normalize(city), Country: normalize(country)}
	if k.City == "" || k.Country == "" {
		return Key{}, ErrInvalidKey
	}
	return k, nil
}

// ParseKey reads "City:Country". The country follows the last colon.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return Key{}, fmt.Errorf("%w: %q is not City:Country", ErrInvalidKey, s)
	}
	return NewKey(s[:i], s[i+1:])
}

func (k Key) String() string { return k.City + ":" + k.Country }

// lookup is the case-folded form used as the storage identity.
func (k Key) lookup() string {
	return strings.ToLower(k.City) + ":" + strings.ToLower(k.Country)
}

func normalize(s string) string { return strings.Join(strings.Fields(s), " ") }

// StoreError wraps any backend failure. Callers see it unchanged; nothing retries.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "record store: " + e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Store persists one record per key. Merge is an upsert where the last write
// wins per field; the record's UserID becomes userID.
type Store interface {
	Merge(ctx context.Context, key Key, userID string, fields map[string]any) (Record, error)
	Get(ctx context.Context, key Key) (Record, error)
	ListByUser(ctx context.Context, userID string) ([]Record, error)
	ListAll(ctx context.Context) ([]Record, error)
	// GetMany returns records in the order of keys; any missing key fails with ErrNotFound.
	GetMany(ctx context.Context, keys []Key) ([]Record, error)
	Delete(ctx context.Context, key Key) error
}

func mergeFields(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
