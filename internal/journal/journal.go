package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Kind classifies an outcome.
type Kind string

const (
	KindLevelUp        Kind = "level_up"
	KindWelcomeBack    Kind = "welcome_back"
	KindCountingReset  Kind = "counting_reset"
	KindGiveawayEnded  Kind = "giveaway_ended"
	KindRoundResolved  Kind = "round_resolved"
	KindDelivered      Kind = "delivered"
	KindDeliveryFailed Kind = "delivery_failed"
)

// Entry is one journal row.
type Entry struct {
	Seq        int64
	Kind       Kind
	Subject    string
	ChannelID  string
	Detail     map[string]any
	RecordedAt time.Time
}

// Journal is the SQLite outcome log.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal at path. Safe to call on an existing
// file.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Record appends e. A row with the same seq is left untouched, so
// re-recording is a no-op.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	detail := []byte("{}")
	if len(e.Detail) > 0 {
		var err error
		// encoding/json sorts map keys, so equal details store equal text.
		detail, err = json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("record %s: marshal detail: %w", e.Kind, err)
		}
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO outcomes (seq, kind, subject, channel_id, detail, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		e.Seq,
		string(e.Kind),
		e.Subject,
		e.ChannelID,
		string(detail),
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Kind, err)
	}
	return nil
}

// Filter narrows Recent.
type Filter struct {
	// Kind keeps only entries of this kind when set.
	Kind Kind
	// Limit caps the result to the newest Limit entries. Zero means 50.
	Limit int
}

// Recent returns the newest entries matching f, oldest first.
// Returns an empty slice (not nil) when nothing matches.
func (j *Journal) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT seq, kind, subject, channel_id, detail, recorded_at FROM outcomes`
	args := []any{}
	if f.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(f.Kind))
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	for i, k := 0, len(entries)-1; i < k; i, k = i+1, k-1 {
		entries[i], entries[k] = entries[k], entries[i]
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e          Entry
		kind       string
		detail     string
		recordedAt string
	)
	if err := rows.Scan(&e.Seq, &kind, &e.Subject, &e.ChannelID, &detail, &recordedAt); err != nil {
		return Entry{}, fmt.Errorf("scan outcome: %w", err)
	}
	e.Kind = Kind(kind)
	if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
		return Entry{}, fmt.Errorf("decode detail of seq %d: %w", e.Seq, err)
	}
	t, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("decode recorded_at of seq %d: %w", e.Seq, err)
	}
	e.RecordedAt = t
	return e, nil
}

// LastSeq returns the highest recorded sequence number, or 0 when empty.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM outcomes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// Counts returns the number of entries per kind.
func (j *Journal) Counts(ctx context.Context) (map[Kind]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM outcomes GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	out := make(map[Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[Kind(kind)] = n
	}
	return out, rows.Err()
}
