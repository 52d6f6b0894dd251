package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"buildwatch/internal/status"
)

var (
	// ErrNotFound is returned when a pipeline id is not stored.
	ErrNotFound = errors.New("pipeline not found")
	// ErrDuplicate is returned when adding a pipeline whose id is already stored.
	ErrDuplicate = errors.New("pipeline already exists")
)

// List returns all pipelines in display order.
func (s *Store) List(ctx context.Context) ([]status.Pipeline, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+pipelineColumns+" FROM pipelines ORDER BY position, id")
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []status.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipelines: %w", err)
	}
	return pipelines, nil
}

// Get fetches one pipeline by id.
func (s *Store) Get(ctx context.Context, id string) (status.Pipeline, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+pipelineColumns+" FROM pipelines WHERE id = ?", id)
	p, err := scanPipeline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return status.Pipeline{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return status.Pipeline{}, fmt.Errorf("get pipeline %s: %w", id, err)
	}
	return p, nil
}

// Add appends a pipeline to the end of the ordered set.
func (s *Store) Add(ctx context.Context, p status.Pipeline) error {
	ctx = ensureContext(ctx)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM pipelines WHERE id = ?", p.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check pipeline: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicate, p.ID)
		}
		var next int
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position) + 1, 0) FROM pipelines").Scan(&next); err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		return insertPipeline(ctx, tx, p, next)
	})
}

// Remove deletes a pipeline and closes the gap in the ordering.
func (s *Store) Remove(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var position int
		err := tx.QueryRowContext(ctx, "SELECT position FROM pipelines WHERE id = ?", id).Scan(&position)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("lookup pipeline: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM pipelines WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete pipeline: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE pipelines SET position = position - 1 WHERE position > ?", position); err != nil {
			return fmt.Errorf("reorder pipelines: %w", err)
		}
		return nil
	})
}

// Replace saves pipelines as the complete ordered set.
func (s *Store) Replace(ctx context.Context, pipelines []status.Pipeline) error {
	ctx = ensureContext(ctx)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM pipelines"); err != nil {
			return fmt.Errorf("clear pipelines: %w", err)
		}
		for i, p := range pipelines {
			if err := insertPipeline(ctx, tx, p, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveStatus records the last-known status and error of a pipeline.
func (s *Store) SaveStatus(ctx context.Context, p status.Pipeline) error {
	statusJSON, err := encodeStatus(p.Status)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE pipelines SET status_json = ?, last_error = ?, last_error_at = ?, last_fetched = ?, updated_at = ?
         WHERE id = ?`,
		statusJSON,
		nullableString(p.LastError),
		nullableTime(p.LastErrorAt),
		nullableTime(p.LastFetched),
		time.Now().UTC().Format(time.RFC3339Nano),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("save status for %s: %w", p.ID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	return nil
}

func insertPipeline(ctx context.Context, tx *sql.Tx, p status.Pipeline, position int) error {
	statusJSON, err := encodeStatus(p.Status)
	if err != nil {
		return err
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO pipelines (
            id, name, kind, url, project, user, token, position,
            status_json, last_error, last_error_at, last_fetched, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Name,
		string(p.Server.Kind),
		p.Server.URL,
		p.Server.Project,
		nullableString(p.Server.User),
		nullableString(p.Server.Token),
		position,
		statusJSON,
		nullableString(p.LastError),
		nullableTime(p.LastErrorAt),
		nullableTime(p.LastFetched),
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline %s: %w", p.ID, err)
	}
	return nil
}
