package city

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"

	"github.com/mind-engage/cityprosperity/internal/aggregation"
	"github.com/mind-engage/cityprosperity/internal/indicator"
	"github.com/mind-engage/cityprosperity/internal/record"
	syncx "github.com/mind-engage/cityprosperity/internal/sync"
)

// EventLog records submission history. *syncx.EventRepo satisfies it.
type EventLog interface {
	Append(ctx context.Context, e syncx.Event) error
	ListByKey(ctx context.Context, key string, limit int) ([]syncx.Event, error)
}

var ErrNoHistory = errors.New("submission history not configured")

// Service ties the standardizer and aggregator to a record store.
type Service struct {
	store     record.Store
	events    EventLog
	catalog   *indicator.Catalog
	hierarchy *aggregation.Hierarchy
	log       *log.Logger
}

type Option func(*Service)

func WithEventLog(e EventLog) Option { return func(s *Service) { s.events = e } }

func WithLogger(l *log.Logger) Option { return func(s *Service) { s.log = l } }

// WithTables replaces the embedded catalog and hierarchy.
func WithTables(c *indicator.Catalog, h *aggregation.Hierarchy) Option {
	return func(s *Service) { s.catalog, s.hierarchy = c, h }
}

func NewService(store record.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		catalog:   indicator.Default(),
		hierarchy: aggregation.Default(),
		log:       log.New(os.Stderr, "city: ", log.LstdFlags),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Catalog() *indicator.Catalog { return s.catalog }

func (s *Service) Hierarchy() *aggregation.Hierarchy { return s.hierarchy }

// View is the aggregated reading of one record.
type View struct {
	City      string                `json:"city"`
	Country   string                `json:"country"`
	UpdatedAt int64                 `json:"updated_at"`
	Composite aggregation.Composite `json:"composite"`
}

type submittedData struct {
	Indicator    string             `json:"indicator"`
	UserID       string             `json:"user_id"`
	Inputs       map[string]float64 `json:"inputs"`
	Raw          float64            `json:"raw"`
	Standardized float64            `json:"standardized"`
	Comment      string             `json:"comment"`
}

// SubmitIndicator standardizes inputs and merges {key}, {key}_standardized
// and {key}_comment into the city's record tagged with userID. Validation
// happens before the store is touched; store errors come back unchanged.
func (s *Service) SubmitIndicator(ctx context.Context, city, country, key string, inputs map[string]float64, userID string) (indicator.Result, error) {
	k, err := record.NewKey(city, country)
	if err != nil {
		return indicator.Result{}, err
	}
	res, err := s.catalog.Standardize(key, inputs)
	if err != nil {
		return indicator.Result{}, err
	}
	if _, err := s.store.Merge(ctx, k, userID, res.Fields(key)); err != nil {
		return indicator.Result{}, err
	}
	s.log.Printf("submit %s %s user=%s standardized=%.2f comment=%q", k, key, userID, res.Standardized, res.Comment)

	data, ok := s.encodeEvent(k, submittedData{
		Indicator:    key,
		UserID:       userID,
		Inputs:       inputs,
		Raw:          res.Raw,
		Standardized: res.Standardized,
		Comment:      string(res.Comment),
	})
	if ok {
		s.appendEvent(ctx, syncx.TypeIndicatorSubmitted, k, data)
	}
	return res, nil
}

// encodeEvent marshals an event payload; a failure is logged and the event skipped.
func (s *Service) encodeEvent(k record.Key, v any) (string, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("event %s: encode: %v", k, err)
		return "", false
	}
	return string(b), true
}

// history failures never fail the operation that produced them
func (s *Service) appendEvent(ctx context.Context, typ string, k record.Key, data string) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(ctx, syncx.Event{Type: typ, Key: historyKey(k), DataJSON: data}); err != nil {
		s.log.Printf("event %s %s: %v", typ, k, err)
	}
}

func historyKey(k record.Key) string {
	return record.Key{City: strings.ToLower(k.City), Country: strings.ToLower(k.Country)}.String()
}

// Preview standardizes without persisting.
func (s *Service) Preview(key string, inputs map[string]float64) (indicator.Result, error) {
	return s.catalog.Standardize(key, inputs)
}

// GetAggregatedView recomputes the composite from the current record.
func (s *Service) GetAggregatedView(ctx context.Context, city, country string) (View, error) {
	k, err := record.NewKey(city, country)
	if err != nil {
		return View{}, err
	}
	r, err := s.store.Get(ctx, k)
	if err != nil {
		return View{}, err
	}
	return View{
		City:      r.City,
		Country:   r.Country,
		UpdatedAt: r.UpdatedAt,
		Composite: aggregation.Aggregate(r.Fields, s.hierarchy),
	}, nil
}

func (s *Service) GetCity(ctx context.Context, city, country string) (record.Record, error) {
	k, err := record.NewKey(city, country)
	if err != nil {
		return record.Record{}, err
	}
	return s.store.Get(ctx, k)
}

// ListCities returns the records last written by userID.
func (s *Service) ListCities(ctx context.Context, userID string) ([]record.Record, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) ListAllCities(ctx context.Context) ([]record.Record, error) {
	return s.store.ListAll(ctx)
}

// CompareCities returns the records for keys, unmodified and in request order.
func (s *Service) CompareCities(ctx context.Context, keys []record.Key) ([]record.Record, error) {
	return s.store.GetMany(ctx, keys)
}

func (s *Service) DeleteCity(ctx context.Context, city, country string) error {
	k, err := record.NewKey(city, country)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, k); err != nil {
		return err
	}
	s.log.Printf("delete %s", k)
	s.appendEvent(ctx, syncx.TypeCityDeleted, k, "{}")
	return nil
}

// History lists the newest submission events for a city.
func (s *Service) History(ctx context.Context, city, country string, limit int) ([]syncx.Event, error) {
	k, err := record.NewKey(city, country)
	if err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, ErrNoHistory
	}
	evs, err := s.events.ListByKey(ctx, historyKey(k), limit)
	if err != nil {
		return nil, &record.StoreError{Op: "history", Err: err}
	}
	return evs, nil
}
