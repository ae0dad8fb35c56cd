package city

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/mind-engage/cityprosperity/internal/record"
	"github.com/mind-engage/cityprosperity/internal/storage"
)

const reportPrefix = "reports/"

// ReportKey is the blob key holding a city's latest snapshot. The file name
// ends in a digest of the case-folded key, so two records never share a key
// even when their slugs match ("St. Louis" and "St Louis").
func ReportKey(k record.Key) string {
	sum := sha256.Sum256([]byte(historyKey(k)))
	name := hex.EncodeToString(sum[:8])
	if c := slug(k.City); c != "" {
		name = c + "-" + name
	}
	country := slug(k.Country)
	if country == "" {
		country = "_"
	}
	return reportPrefix + country + "/" + name + ".json"
}

// slug lowercases s and folds every run of non letters and digits to "-".
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ExportReport writes the current aggregated view of a city to bs and
// returns its key. A later export of the same city replaces it.
func (s *Service) ExportReport(ctx context.Context, city, country string, bs storage.BlobStore) (string, error) {
	v, err := s.GetAggregatedView(ctx, city, country)
	if err != nil {
		return "", err
	}
	k, _ := record.NewKey(v.City, v.Country)
	return s.putView(ReportKey(k), v, bs)
}

// ExportAll snapshots every stored city. It stops at the first failure.
func (s *Service) ExportAll(ctx context.Context, bs storage.BlobStore) ([]string, error) {
	recs, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(recs))
	for _, r := range recs {
		k, err := s.ExportReport(ctx, r.City, r.Country, bs)
		if err != nil {
			return keys, err
		}
		keys = append(keys, k)
	}
	s.log.Printf("exported %d reports", len(keys))
	return keys, nil
}

// Reports lists the stored snapshot keys.
func (s *Service) Reports(bs storage.BlobStore) ([]string, error) {
	keys, err := bs.List(reportPrefix)
	if err != nil {
		return nil, &record.StoreError{Op: "reports", Err: err}
	}
	return keys, nil
}

func (s *Service) putView(key string, v View, bs storage.BlobStore) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	out, err := bs.Put(key, bytes.NewReader(b))
	if err != nil {
		return "", &record.StoreError{Op: "export", Err: err}
	}
	return out, nil
}
