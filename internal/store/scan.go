package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"buildwatch/internal/status"
)

const pipelineColumns = "id, name, kind, url, project, user, token, status_json, last_error, last_error_at, last_fetched"

func scanPipeline(scanner interface{ Scan(dest ...any) error }) (status.Pipeline, error) {
	var (
		id, name, kind, url, project     string
		user, token, statusJSON, lastErr sql.NullString
		lastErrAtRaw, lastFetchedRaw     sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&name,
		&kind,
		&url,
		&project,
		&user,
		&token,
		&statusJSON,
		&lastErr,
		&lastErrAtRaw,
		&lastFetchedRaw,
	); err != nil {
		return status.Pipeline{}, err
	}

	p := status.Pipeline{
		ID:   id,
		Name: name,
		Server: status.Server{
			Kind:    status.ServerKind(kind),
			URL:     url,
			Project: project,
			User:    user.String,
			Token:   token.String,
		},
		LastError:   lastErr.String,
		LastErrorAt: parseTime(lastErrAtRaw),
		LastFetched: parseTime(lastFetchedRaw),
	}
	if statusJSON.Valid && statusJSON.String != "" {
		if err := json.Unmarshal([]byte(statusJSON.String), &p.Status); err != nil {
			return status.Pipeline{}, fmt.Errorf("decode status for %s: %w", id, err)
		}
	}
	return p, nil
}

func encodeStatus(st status.Status) (sql.NullString, error) {
	if st.IsEmpty() {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode status: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullableTime(value time.Time) sql.NullString {
	if value.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: value.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}
	}
	return ts
}
