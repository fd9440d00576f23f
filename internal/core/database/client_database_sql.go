package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/markdave123-py/guardian/internal/core"
	"github.com/markdave123-py/guardian/internal/models"
)

type dialect struct {
	name        string
	driver      string
	script      string
	leaderOrder string
}

var (
	postgresDialect = dialect{
		name:        ModePostgres,
		driver:      "pgx",
		script:      "scripts/initdb_postgres.sql",
		leaderOrder: "total DESC, seq ASC",
	}
	sqliteDialect = dialect{
		name:        ModeSQLite,
		driver:      "sqlite",
		script:      "scripts/initdb_sqlite.sql",
		leaderOrder: "total DESC, rowid ASC",
	}
)

var ordinalParam = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders to SQLite's ?N form so ordinals bind by
// number rather than by order of first appearance.
func (d dialect) rebind(q string) string {
	if d.name != ModeSQLite {
		return q
	}
	return ordinalParam.ReplaceAllString(q, "?$1")
}

// SQLStore is the durable store. The same statements run on Postgres (pgx)
// and SQLite (modernc); only bootstrap DDL and tie ordering differ.
type SQLStore struct {
	db      *sql.DB
	dialect dialect

	mu    sync.Mutex
	ready bool
}

// postgresDSN validates rawURL with pgx and appends verify-ca params when a cert is configured.
func postgresDSN(rawURL, sslCertPath string) (string, error) {
	if _, err := pgx.ParseConfig(rawURL); err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if sslCertPath == "" {
		return rawURL, nil
	}
	if _, err := os.Stat(sslCertPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", sslCertPath, err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", sslCertPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sqlitePath strips the sqlite: scheme; file: URIs are passed through untouched.
func sqlitePath(rawURL string) string {
	if strings.HasPrefix(rawURL, "file:") {
		return rawURL
	}
	return strings.TrimPrefix(strings.TrimPrefix(rawURL, "sqlite://"), "sqlite:")
}

// newSQLStore configures the pool without touching the network; sql.Open is lazy.
func newSQLStore(d dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if d.name == ModeSQLite {
		// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetConnMaxIdleTime(10 * time.Minute)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// openSQLStore is newSQLStore plus a successful Ready.
func openSQLStore(ctx context.Context, d dialect, dsn string) (*SQLStore, error) {
	store, err := newSQLStore(d, dsn)
	if err != nil {
		return nil, err
	}
	if err := store.Ready(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Ready pings the database and bootstraps the schema the first time it
// succeeds. Until then every operation calls it again, so a database that
// comes up after the process does is picked up without a restart.
func (c *SQLStore) Ready(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	if err := EnsureBootstrapped(ctx, c.db, c.dialect); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	c.ready = true
	return nil
}

func (c *SQLStore) Mode() string { return c.dialect.name }

func (c *SQLStore) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Sessions

func (c *SQLStore) InsertSession(ctx context.Context, s *models.Session) error {
	if s == nil {
		return errors.New("nil session")
	}
	if err := c.Ready(ctx); err != nil {
		return err
	}
	ratingJSON, err := encodeRating(s.Rating)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO sessions (id, username, start_time, end_time, is_completed, rating)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = c.db.ExecContext(ctx, c.dialect.rebind(q),
		s.ID, s.Username, s.StartTime, nullInt64(s.EndTime), s.IsCompleted, ratingJSON)
	return err
}

func (c *SQLStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if err := c.Ready(ctx); err != nil {
		return nil, err
	}
	const q = `
		SELECT id, username, start_time, end_time, is_completed, rating
		FROM sessions WHERE id = $1
	`
	var (
		s      models.Session
		end    sql.NullInt64
		rating sql.NullString
	)
	err := c.db.QueryRowContext(ctx, c.dialect.rebind(q), id).Scan(&s.ID, &s.Username, &s.StartTime, &end, &s.IsCompleted, &rating)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if end.Valid {
		v := end.Int64
		s.EndTime = &v
	}
	if s.Rating, err = decodeRating(rating); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSession merges patch in a single statement guarded by NOT is_completed,
// so a completed session can never be observed half-updated or re-opened.
func (c *SQLStore) UpdateSession(ctx context.Context, id string, patch models.SessionPatch) error {
	if err := c.Ready(ctx); err != nil {
		return err
	}
	ratingJSON, err := encodeRating(patch.Rating)
	if err != nil {
		return err
	}
	username := sql.NullString{}
	if patch.Username != nil {
		username = sql.NullString{String: *patch.Username, Valid: true}
	}
	completed := sql.NullBool{}
	if patch.IsCompleted != nil {
		completed = sql.NullBool{Bool: *patch.IsCompleted, Valid: true}
	}

	const q = `
		UPDATE sessions SET
			username = COALESCE($2, username),
			is_completed = COALESCE($3, is_completed),
			end_time = COALESCE($4, end_time),
			rating = COALESCE($5, rating)
		WHERE id = $1 AND NOT is_completed
	`
	res, err := c.db.ExecContext(ctx, c.dialect.rebind(q), id, username, completed, nullInt64(patch.EndTime), ratingJSON)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Nothing matched: tell a missing row apart from a frozen one.
	var done bool
	err = c.db.QueryRowContext(ctx, c.dialect.rebind(`SELECT is_completed FROM sessions WHERE id = $1`), id).Scan(&done)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	case err != nil:
		return err
	default:
		return fmt.Errorf("%w: %s", ErrSessionCompleted, id)
	}
}

// Leaderboard

func (c *SQLStore) GetEntry(ctx context.Context, userID string) (*models.Rating, error) {
	if err := c.Ready(ctx); err != nil {
		return nil, err
	}
	const q = `
		SELECT user_id, username, story_excerpt, authenticity, emotional_impact, total, worthy, submitted_at
		FROM leaderboard WHERE user_id = $1
	`
	r, err := scanRating(c.db.QueryRowContext(ctx, c.dialect.rebind(q), userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UpsertIfBetter relies on the conditional DO UPDATE to make compare-and-write one statement.
func (c *SQLStore) UpsertIfBetter(ctx context.Context, r *models.Rating) (bool, error) {
	if r == nil {
		return false, errors.New("nil rating")
	}
	if err := c.Ready(ctx); err != nil {
		return false, err
	}
	const q = `
		INSERT INTO leaderboard
			(user_id, username, story_excerpt, authenticity, emotional_impact, total, worthy, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			story_excerpt = excluded.story_excerpt,
			authenticity = excluded.authenticity,
			emotional_impact = excluded.emotional_impact,
			total = excluded.total,
			worthy = excluded.worthy,
			submitted_at = excluded.submitted_at
		WHERE leaderboard.total < excluded.total
	`
	res, err := c.db.ExecContext(ctx, c.dialect.rebind(q),
		r.UserID, r.Username, r.StoryExcerpt, r.Authenticity, r.EmotionalImpact, r.Total, string(r.Worthy), r.Timestamp)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *SQLStore) ListEntries(ctx context.Context, limit int) ([]models.Rating, error) {
	if err := c.Ready(ctx); err != nil {
		return nil, err
	}
	q := `
		SELECT user_id, username, story_excerpt, authenticity, emotional_impact, total, worthy, submitted_at
		FROM leaderboard
		ORDER BY ` + c.dialect.leaderOrder + `
		LIMIT $1
	`
	rows, err := c.db.QueryContext(ctx, c.dialect.rebind(q), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Rating, 0, limit)
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRating(row rowScanner) (*models.Rating, error) {
	var (
		r      models.Rating
		worthy string
	)
	if err := row.Scan(&r.UserID, &r.Username, &r.StoryExcerpt, &r.Authenticity, &r.EmotionalImpact,
		&r.Total, &worthy, &r.Timestamp); err != nil {
		return nil, err
	}
	r.Worthy = models.Worthy(worthy)
	return &r, nil
}

func encodeRating(r *models.Rating) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode rating: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeRating(ns sql.NullString) (*models.Rating, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var r models.Rating
	if err := json.Unmarshal([]byte(ns.String), &r); err != nil {
		return nil, fmt.Errorf("decode rating: %w", err)
	}
	return &r, nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

var _ core.Store = (*SQLStore)(nil)
