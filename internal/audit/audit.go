// Package audit records who did what to which entity. Recording is
// best-effort: a failed audit write never rolls back the business operation
// it describes.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Log represents a record stored in audit_logs.
type Log struct {
	ID         int64          `json:"id"`
	ActorID    uuid.UUID      `json:"actor_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Previous   map[string]any `json:"previous"`
	New        map[string]any `json:"new"`
	At         time.Time      `json:"at"`
}

// Recorder writes records into audit_logs.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record persists the log entry.
func (r *Recorder) Record(ctx context.Context, log Log) error {
	if r == nil {
		return errors.New("audit recorder not initialised")
	}
	if log.Action == "" || log.EntityType == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity_type/entity_id")
	}
	prevJSON, err := json.Marshal(log.Previous)
	if err != nil {
		return err
	}
	newJSON, err := json.Marshal(log.New)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, previous_value, new_value, created_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		log.ActorID, log.Action, log.EntityType, log.EntityID, prevJSON, newJSON, at)
	return err
}

// Filter narrows List results.
type Filter struct {
	EntityType string
	EntityID   string
	ActorID    uuid.UUID
	Limit      int
}

// List returns audit entries, newest first.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]Log, error) {
	if r == nil {
		return nil, errors.New("audit recorder not initialised")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, actor_id, action, entity_type, entity_id, previous_value, new_value, created_at FROM audit_logs WHERE 1=1`
	args := []any{}
	n := 0
	arg := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}
	if filter.EntityType != "" {
		query += ` AND entity_type=` + arg(filter.EntityType)
	}
	if filter.EntityID != "" {
		query += ` AND entity_id=` + arg(filter.EntityID)
	}
	if filter.ActorID != uuid.Nil {
		query += ` AND actor_id=` + arg(filter.ActorID)
	}
	query += ` ORDER BY id DESC LIMIT ` + arg(limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []Log
	for rows.Next() {
		var l Log
		var prevJSON, newJSON []byte
		if err := rows.Scan(&l.ID, &l.ActorID, &l.Action, &l.EntityType, &l.EntityID, &prevJSON, &newJSON, &l.At); err != nil {
			return nil, err
		}
		if len(prevJSON) > 0 {
			_ = json.Unmarshal(prevJSON, &l.Previous)
		}
		if len(newJSON) > 0 {
			_ = json.Unmarshal(newJSON, &l.New)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
