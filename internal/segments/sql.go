package segments

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"media-insights-go/internal/types"
)

// sqlStore implements Store over database/sql for both SQLite and Postgres.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

type dialect struct {
	name   string
	schema []string
	// lower is the SQL function used to case-fold text for search.
	lower string
	// bind returns the placeholder for the n-th (1-based) argument.
	bind func(n int) string
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS transcript_segments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            asset_id TEXT NOT NULL,
            seq INTEGER NOT NULL,
            start_seconds REAL NOT NULL,
            end_seconds REAL NOT NULL,
            text TEXT NOT NULL,
            created_at TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_segments_asset ON transcript_segments (asset_id, start_seconds)`,
	},
	lower: foldFunc,
	bind:  func(int) string { return "?" },
}

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS transcript_segments (
            id BIGSERIAL PRIMARY KEY,
            asset_id TEXT NOT NULL,
            seq INTEGER NOT NULL,
            start_seconds DOUBLE PRECISION NOT NULL,
            end_seconds DOUBLE PRECISION NOT NULL,
            text TEXT NOT NULL,
            created_at TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_segments_asset ON transcript_segments (asset_id, start_seconds)`,
	},
	lower: "LOWER",
	bind:  func(n int) string { return fmt.Sprintf("$%d", n) },
}

func (s *sqlStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *sqlStore) ReplaceSegments(ctx context.Context, assetID string, segs []types.Segment) error {
	if err := requireAsset(assetID); err != nil {
		return err
	}
	b := s.dialect.bind

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace segments: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_segments WHERE asset_id = `+b(1), assetID); err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}

	if len(segs) > 0 {
		insert := fmt.Sprintf(
			`INSERT INTO transcript_segments (asset_id, seq, start_seconds, end_seconds, text, created_at) VALUES (%s, %s, %s, %s, %s, %s)`,
			b(1), b(2), b(3), b(4), b(5), b(6),
		)
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC().Format(time.RFC3339Nano)
		for i, seg := range segs {
			if _, err := stmt.ExecContext(ctx, assetID, i, seg.StartSeconds, seg.EndSeconds, seg.Text, now); err != nil {
				return fmt.Errorf("insert segment %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace segments: %w", err)
	}
	return nil
}

func (s *sqlStore) ListSegments(ctx context.Context, assetID string) ([]types.Segment, error) {
	return s.Search(ctx, assetID, "", 0)
}

func (s *sqlStore) Search(ctx context.Context, assetID, query string, limit int) ([]types.Segment, error) {
	if err := requireAsset(assetID); err != nil {
		return nil, err
	}
	b := s.dialect.bind
	q := `SELECT start_seconds, end_seconds, text FROM transcript_segments WHERE asset_id = ` + b(1)
	args := []any{assetID}
	if query = strings.TrimSpace(query); query != "" {
		q += ` AND ` + s.dialect.lower + `(text) LIKE ` + b(2) + ` ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(query))+"%")
	}
	q += ` ORDER BY start_seconds, seq`
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var out []types.Segment
	for rows.Next() {
		seg := types.Segment{AssetID: assetID}
		if err := rows.Scan(&seg.StartSeconds, &seg.EndSeconds, &seg.Text); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return out, nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
