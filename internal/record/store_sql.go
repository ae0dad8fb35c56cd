package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

const recordCols = `id,city,country,user_id,fields_json,created_at,updated_at`

// Merge inserts an empty row if needed, then reads, merges and writes the
// field map inside one transaction.
func (s *SQLStore) Merge(ctx context.Context, key Key, userID string, fields map[string]any) (Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, storeErr("merge", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx, `INSERT INTO city_records (id,lookup,city,country,user_id,fields_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,'{}',$6,$6)
		ON CONFLICT (lookup) DO NOTHING`,
		uuid.NewString(), key.lookup(), key.City, key.Country, userID, now)
	if err != nil {
		return Record{}, storeErr("merge", err)
	}

	q := `SELECT ` + recordCols + ` FROM city_records WHERE lookup=$1`
	if s.driver == "postgres" {
		q += ` FOR UPDATE`
	}
	r, err := scanRecord(tx.QueryRowContext(ctx, q, key.lookup()))
	if err != nil {
		return Record{}, storeErr("merge", err)
	}

	r.Fields = mergeFields(r.Fields, fields)
	r.UserID = userID
	r.UpdatedAt = now
	buf, err := json.Marshal(r.Fields)
	if err != nil {
		return Record{}, storeErr("merge", err)
	}
	_, err = tx.ExecContext(ctx, `UPDATE city_records SET user_id=$1, fields_json=$2, updated_at=$3 WHERE lookup=$4`,
		userID, string(buf), now, key.lookup())
	if err != nil {
		return Record{}, storeErr("merge", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, storeErr("merge", err)
	}
	return r, nil
}

func (s *SQLStore) Get(ctx context.Context, key Key) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordCols+` FROM city_records WHERE lookup=$1`, key.lookup())
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Record{}, storeErr("get", err)
	}
	return r, nil
}

func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordCols+` FROM city_records WHERE user_id=$1 ORDER BY country, city`, userID)
	if err != nil {
		return nil, storeErr("list", err)
	}
	return collect(rows)
}

func (s *SQLStore) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordCols+` FROM city_records ORDER BY country, city`)
	if err != nil {
		return nil, storeErr("list", err)
	}
	return collect(rows)
}

func (s *SQLStore) GetMany(ctx context.Context, keys []Key) ([]Record, error) {
	if len(keys) == 0 {
		return []Record{}, nil
	}
	args := make([]any, len(keys))
	ph := make([]string, len(keys))
	for i, k := range keys {
		args[i] = k.lookup()
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT lookup,`+recordCols+` FROM city_records WHERE lookup IN (`+strings.Join(ph, ",")+`)`, args...)
	if err != nil {
		return nil, storeErr("get_many", err)
	}
	defer rows.Close()

	found := map[string]Record{}
	for rows.Next() {
		var lookup string
		r, err := scanRecordWith(rows, &lookup)
		if err != nil {
			return nil, storeErr("get_many", err)
		}
		found[lookup] = r
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("get_many", err)
	}

	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		r, ok := found[k.lookup()]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
		}
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *SQLStore) Delete(ctx context.Context, key Key) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM city_records WHERE lookup=$1`, key.lookup())
	if err != nil {
		return storeErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) { return scanRecordWith(sc) }

func scanRecordWith(sc scanner, lead ...any) (Record, error) {
	var r Record
	var fjson string
	dest := append(lead, &r.ID, &r.City, &r.Country, &r.UserID, &fjson, &r.CreatedAt, &r.UpdatedAt)
	if err := sc.Scan(dest...); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(fjson), &r.Fields); err != nil {
		return Record{}, fmt.Errorf("decode fields of %s:%s: %w", r.City, r.Country, err)
	}
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
	return r, nil
}

func collect(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, storeErr("list", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", err)
	}
	return out, nil
}
