// Package store persists the tile index cache and generation history in
// SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// ErrNotFound is returned when a row doesn't exist.
var ErrNotFound = errors.New("not found")

// Store wraps a SQLite database holding cached tile averages and the
// generation history. Writes are serialized through a mutex; modernc's
// driver allows a single writer at a time.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// TileEntry caches the average color of one tile file. A cached row is valid
// only while the (Size, MTime, TileSide) identity matches the file on disk.
type TileEntry struct {
	Path     string
	Size     int64
	MTime    int64 // mtime in unix nanoseconds
	TileSide int
	Avg      color.RGBA
}

// Generation records one engine run.
type Generation struct {
	ID        string
	Name      string
	Input     string
	TilesDir  string
	GridSide  int
	TileSide  int
	TileCount int
	Output    string
	Duration  time.Duration
	Error     string // empty on success
	CreatedAt time.Time
}

// Open opens or creates the store at path, creating parent directories as
// needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tiles (
			path       TEXT NOT NULL,
			size       INTEGER NOT NULL,
			mtime      INTEGER NOT NULL,
			tile_side  INTEGER NOT NULL,
			r          INTEGER NOT NULL,
			g          INTEGER NOT NULL,
			b          INTEGER NOT NULL,
			a          INTEGER NOT NULL,
			indexed_at TEXT NOT NULL,
			PRIMARY KEY (path, tile_side)
		);
		CREATE TABLE IF NOT EXISTS generations (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			input       TEXT NOT NULL,
			tiles       TEXT NOT NULL,
			grid_side   INTEGER NOT NULL,
			tile_side   INTEGER NOT NULL,
			tile_count  INTEGER NOT NULL,
			output      TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			error       TEXT NOT NULL,
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// Path returns the filesystem path of the underlying database.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// TileAvg looks up a cached average color. The boolean reports a hit; any
// identity mismatch (size, mtime, or tile side) is a miss.
func (s *Store) TileAvg(path string, size, mtime int64, tileSide int) (color.RGBA, bool, error) {
	row := s.db.QueryRow(`
		SELECT r, g, b, a FROM tiles
		WHERE path = ? AND size = ? AND mtime = ? AND tile_side = ?
	`, path, size, mtime, tileSide)

	var r, g, b, a uint8
	err := row.Scan(&r, &g, &b, &a)
	if err == sql.ErrNoRows {
		return color.RGBA{}, false, nil
	}
	if err != nil {
		return color.RGBA{}, false, fmt.Errorf("querying tile cache: %w", err)
	}
	return color.RGBA{R: r, G: g, B: b, A: a}, true, nil
}

// PutTileAvg upserts a tile's average color. A stale row for the same
// (path, tile_side) is replaced.
func (s *Store) PutTileAvg(e TileEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO tiles (path, size, mtime, tile_side, r, g, b, a, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, tile_side) DO UPDATE SET
			size = excluded.size,
			mtime = excluded.mtime,
			r = excluded.r,
			g = excluded.g,
			b = excluded.b,
			a = excluded.a,
			indexed_at = excluded.indexed_at
	`, e.Path, e.Size, e.MTime, e.TileSide,
		e.Avg.R, e.Avg.G, e.Avg.B, e.Avg.A,
		time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("caching tile average: %w", err)
	}
	return nil
}

// PruneTiles removes cached rows under dir whose path is not in valid.
// Rows belonging to other tile directories are left alone; the store is
// shared across projects.
func (s *Store) PruneTiles(dir string, valid []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)

	args := make([]any, 0, len(valid)+1)
	args = append(args, prefix+"%")
	q := `DELETE FROM tiles WHERE path LIKE ?`
	if len(valid) > 0 {
		q += ` AND path NOT IN (?` + strings.Repeat(",?", len(valid)-1) + `)`
		for _, p := range valid {
			args = append(args, p)
		}
	}

	res, err := s.db.Exec(q, args...)
	if err != nil {
		return 0, fmt.Errorf("pruning tile cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// TileCount returns the number of cached tile rows.
func (s *Store) TileCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tiles: %w", err)
	}
	return n, nil
}

// AppendGeneration records a completed (or failed) engine run.
func (s *Store) AppendGeneration(g Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO generations
			(id, name, input, tiles, grid_side, tile_side, tile_count, output,
			 duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.Name, g.Input, g.TilesDir, g.GridSide, g.TileSide, g.TileCount,
		g.Output, g.Duration.Milliseconds(), g.Error,
		g.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording generation: %w", err)
	}
	return nil
}

// Generations returns the most recent runs, newest first. limit <= 0 returns
// all of them.
func (s *Store) Generations(limit int) ([]Generation, error) {
	q := `
		SELECT id, name, input, tiles, grid_side, tile_side, tile_count, output,
		       duration_ms, error, created_at
		FROM generations ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying generations: %w", err)
	}
	defer rows.Close()

	var gens []Generation
	for rows.Next() {
		var g Generation
		var durationMS int64
		var createdAt string
		if err := rows.Scan(&g.ID, &g.Name, &g.Input, &g.TilesDir, &g.GridSide,
			&g.TileSide, &g.TileCount, &g.Output, &durationMS, &g.Error,
			&createdAt); err != nil {
			return nil, fmt.Errorf("scanning generation: %w", err)
		}
		g.Duration = time.Duration(durationMS) * time.Millisecond
		g.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// Generation returns a single run by ID.
func (s *Store) Generation(id string) (*Generation, error) {
	row := s.db.QueryRow(`
		SELECT id, name, input, tiles, grid_side, tile_side, tile_count, output,
		       duration_ms, error, created_at
		FROM generations WHERE id = ?
	`, id)

	var g Generation
	var durationMS int64
	var createdAt string
	err := row.Scan(&g.ID, &g.Name, &g.Input, &g.TilesDir, &g.GridSide,
		&g.TileSide, &g.TileCount, &g.Output, &durationMS, &g.Error, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning generation: %w", err)
	}
	g.Duration = time.Duration(durationMS) * time.Millisecond
	g.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &g, nil
}

// GenerationCount returns the number of recorded runs.
func (s *Store) GenerationCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM generations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting generations: %w", err)
	}
	return n, nil
}

// Reset deletes all cached tiles and recorded generations.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM tiles; DELETE FROM generations;`); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}
	return nil
}
