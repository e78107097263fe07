package production

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/comalice/safetyx"
	_ "modernc.org/sqlite"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS safety_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	machine TEXT NOT NULL,
	cycle INTEGER NOT NULL,
	kind TEXT NOT NULL,
	level TEXT NOT NULL,
	target TEXT NOT NULL,
	event TEXT NOT NULL,
	origin TEXT NOT NULL,
	detail TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS safety_records_machine_cycle ON safety_records (machine, cycle);
`

// Entry is one journaled record.
type Entry struct {
	ID        int64
	Machine   string
	Cycle     uint64
	Kind      string
	Level     string
	Target    string
	Event     string
	Origin    string
	Detail    string
	CreatedAt time.Time
}

// Journal is a SQLite-backed log of safety records. It is a Sink.
type Journal struct {
	sqlDB   *sql.DB
	machine string
}

// OpenJournal opens (or creates) the journal at path. Records are filed
// under machine.
func OpenJournal(path, machine string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(journalSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{sqlDB: sqlDB, machine: machine}, nil
}

// Close releases the SQLite connection.
func (j *Journal) Close() error {
	if j == nil || j.sqlDB == nil {
		return nil
	}
	return j.sqlDB.Close()
}

// Consume implements Sink.
func (j *Journal) Consume(ctx context.Context, r safetyx.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j == nil || j.sqlDB == nil {
		return fmt.Errorf("journal is not open")
	}
	created := r.Time
	if created.IsZero() {
		created = time.Now()
	}

	_, err := j.sqlDB.ExecContext(ctx, `
INSERT INTO safety_records (
	machine,
	cycle,
	kind,
	level,
	target,
	event,
	origin,
	detail,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		j.machine,
		int64(r.Cycle),
		r.Kind.String(),
		r.Level,
		r.Target,
		r.Event,
		originOf(r),
		r.Detail,
		created.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("journal record: %w", err)
	}
	return nil
}

// Origin only means something for request records.
func originOf(r safetyx.Record) string {
	if r.Event == "" {
		return ""
	}
	return r.Origin.String()
}

// Recent lists up to limit entries for the journal's machine, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if j == nil || j.sqlDB == nil {
		return nil, fmt.Errorf("journal is not open")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := j.sqlDB.QueryContext(ctx, `
SELECT
	id,
	machine,
	cycle,
	kind,
	level,
	target,
	event,
	origin,
	detail,
	created_at
FROM safety_records
WHERE machine = ?
ORDER BY id DESC
LIMIT ?
`, j.machine, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var cycle, createdAt int64
		if err := rows.Scan(
			&e.ID,
			&e.Machine,
			&cycle,
			&e.Kind,
			&e.Level,
			&e.Target,
			&e.Event,
			&e.Origin,
			&e.Detail,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		e.Cycle = uint64(cycle)
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return entries, nil
}

// CountByKind tallies the machine's journaled records per kind.
func (j *Journal) CountByKind(ctx context.Context) (map[string]uint64, error) {
	if j == nil || j.sqlDB == nil {
		return nil, fmt.Errorf("journal is not open")
	}
	rows, err := j.sqlDB.QueryContext(ctx, `
SELECT kind, COUNT(*) FROM safety_records WHERE machine = ? GROUP BY kind
`, j.machine)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[kind] = uint64(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

var _ Sink = (*Journal)(nil)
