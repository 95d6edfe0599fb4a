package mappings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"posterhelper/internal/config"
	"posterhelper/internal/textutil"
)

// Origin records where a mapping came from.
type Origin string

const (
	OriginUser   Origin = "user"
	OriginConfig Origin = "config"
)

// ErrEmptyTitle is returned when a source or library title is blank or has
// no letters or digits.
var ErrEmptyTitle = errors.New("title must contain letters or digits")

// Mapping rewrites SourceTitle to LibraryTitle.
type Mapping struct {
	SourceTitle  string
	LibraryTitle string
	Origin       Origin
	UpdatedAt    time.Time
}

// Store is the SQLite-backed mapping table with an in-memory lookup cache.
// It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string

	mu    sync.RWMutex
	cache map[string]Mapping
}

// Open opens the mapping database under the configured data directory and
// seeds it from the [title_mappings] table.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	store, err := OpenPath(ctx, cfg.MappingDBPath())
	if err != nil {
		return nil, err
	}
	if err := store.Seed(ctx, cfg.TitleMappings); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// OpenPath opens or creates the mapping database at dbPath.
func OpenPath(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create mapping dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, cache: make(map[string]Mapping)}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.reload(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Lookup returns the library title mapped from title.
func (s *Store) Lookup(title string) (string, bool) {
	key := Key(title)
	if key == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.cache[key]
	if !ok {
		return "", false
	}
	return m.LibraryTitle, true
}

// Set stores a user mapping, replacing any existing mapping for the title.
func (s *Store) Set(ctx context.Context, sourceTitle, libraryTitle string) error {
	return s.upsert(ctx, sourceTitle, libraryTitle, OriginUser, true)
}

// Seed inserts config mappings. Existing user mappings for the same title are
// kept; previously seeded entries are refreshed.
func (s *Store) Seed(ctx context.Context, mappings map[string]string) error {
	sources := make([]string, 0, len(mappings))
	for source := range mappings {
		sources = append(sources, source)
	}
	slices.Sort(sources)
	for _, source := range sources {
		if err := s.upsert(ctx, source, mappings[source], OriginConfig, false); err != nil {
			return fmt.Errorf("seed mapping %q: %w", source, err)
		}
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, sourceTitle, libraryTitle string, origin Origin, overwriteUser bool) error {
	sourceTitle = strings.TrimSpace(sourceTitle)
	libraryTitle = strings.TrimSpace(libraryTitle)
	key := Key(sourceTitle)
	if key == "" || Key(libraryTitle) == "" {
		return ErrEmptyTitle
	}
	now := time.Now().UTC()

	query := `INSERT INTO title_mappings (source_key, source_title, library_title, origin, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(source_key) DO UPDATE SET
            source_title = excluded.source_title,
            library_title = excluded.library_title,
            origin = excluded.origin,
            updated_at = excluded.updated_at`
	if !overwriteUser {
		query += ` WHERE title_mappings.origin <> 'user'`
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, query, key, sourceTitle, libraryTitle, string(origin), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil
	}
	s.cache[key] = Mapping{SourceTitle: sourceTitle, LibraryTitle: libraryTitle, Origin: origin, UpdatedAt: now}
	return nil
}

// Remove deletes the mapping for title and reports whether one existed.
func (s *Store) Remove(ctx context.Context, title string) (bool, error) {
	key := Key(title)
	if key == "" {
		return false, ErrEmptyTitle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM title_mappings WHERE source_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete mapping: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	delete(s.cache, key)
	return affected > 0, nil
}

// List returns every mapping ordered by source title.
func (s *Store) List(ctx context.Context) ([]Mapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_title, library_title, origin, updated_at FROM title_mappings ORDER BY source_title COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) reload(ctx context.Context) error {
	mappings, err := s.List(ctx)
	if err != nil {
		return err
	}
	cache := make(map[string]Mapping, len(mappings))
	for _, m := range mappings {
		cache[Key(m.SourceTitle)] = m
	}
	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
	return nil
}

func scanMapping(scanner interface{ Scan(dest ...any) error }) (Mapping, error) {
	var (
		source     string
		library    string
		origin     string
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&source, &library, &origin, &updatedRaw); err != nil {
		return Mapping{}, fmt.Errorf("scan mapping: %w", err)
	}
	m := Mapping{SourceTitle: source, LibraryTitle: library, Origin: Origin(origin)}
	if updatedRaw.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, updatedRaw.String); err == nil {
			m.UpdatedAt = ts
		}
	}
	return m, nil
}

// Key folds a title into its lookup key.
func Key(title string) string {
	return textutil.FoldTitle(title)
}
