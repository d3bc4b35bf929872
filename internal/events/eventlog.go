package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	SessionCreated    = "session.created"
	TheoryCompleted   = "theory.completed"
	AttemptRecorded   = "attempt.recorded"
	CertificateIssued = "certificate.issued"
	AccessCodesIssued = "access_codes.generated"
)

type Event struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Key       string          `json:"key"` // natural key, e.g. session id
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"createdAt"`
}

type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// Append marshals data and stores one event.
func (r *Repo) Append(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", typ, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		typ, key, string(buf), time.Now().Unix())
	return err
}

// Recent returns the newest events first, optionally filtered by key.
func (r *Repo) Recent(ctx context.Context, key string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT seq, typ, key, data, created_at FROM event_log`
	args := []any{}
	if key != "" {
		q += ` WHERE key = $1 ORDER BY seq DESC LIMIT $2`
		args = append(args, key, limit)
	} else {
		q += ` ORDER BY seq DESC LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		var data string
		if err := rows.Scan(&e.Seq, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}
