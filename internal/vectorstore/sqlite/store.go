// Package sqlite persists indexed chunks in a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"docuchat/internal/domain"
	"docuchat/internal/logging"
	"docuchat/internal/vectorstore"
)

// DBFile is the database file name inside the persist directory.
const DBFile = "docuchat.db"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config configures a Store.
type Config struct {
	Dir              string
	Collection       string
	EmbedConcurrency int
}

// Store is a durable similarity store. Each collection is one table; rows
// keep insertion order through their integer id.
type Store struct {
	db          *sql.DB
	path        string
	table       string
	embedder    domain.Embedder
	concurrency int
	log         *zap.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// NewStore opens or creates the database at cfg.Dir/docuchat.db.
func NewStore(cfg Config, e domain.Embedder, log *zap.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: persist directory is required", domain.ErrInvalidInput)
	}
	table := cfg.Collection
	if table == "" {
		table = vectorstore.Collection
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("%w: collection name %q", domain.ErrInvalidInput, table)
	}

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(cfg.Dir, DBFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:          db,
		path:        dbPath,
		table:       table,
		embedder:    e,
		concurrency: cfg.EmbedConcurrency,
		log:         logging.OrNop(log).With(zap.String("db", dbPath), zap.String("collection", table)),
	}
	if err := s.createTable(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) createTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			source       TEXT NOT NULL,
			filename     TEXT NOT NULL,
			page_number  INTEGER NOT NULL,
			chunk_index  INTEGER NOT NULL,
			total_chunks INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			size_bytes   INTEGER NOT NULL,
			uploaded_at  TEXT NOT NULL,
			file_type    TEXT NOT NULL,
			text         TEXT NOT NULL,
			embedding    BLOB NOT NULL
		)`, s.table))
	if err != nil {
		return fmt.Errorf("creating table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, chunks []domain.Chunk) error {
	indexed, err := vectorstore.EmbedAll(ctx, s.embedder, chunks, s.concurrency)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (source, filename, page_number, chunk_index, total_chunks,
			start_offset, size_bytes, uploaded_at, file_type, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, it := range indexed {
		c := it.Chunk
		if _, err := stmt.ExecContext(ctx,
			c.Source.Path, c.Source.Filename, c.PageNumber, c.ChunkIndex, c.TotalChunks,
			c.StartOffset, c.Source.SizeBytes, c.Source.UploadedAt.UTC().Format(time.RFC3339Nano),
			c.Source.FileType, c.Text, float32SliceToBytes(it.Vector),
		); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	s.log.Info("chunks indexed", zap.Int("added", len(indexed)))
	return nil
}

func (s *Store) Exists(ctx context.Context, filename string) bool {
	if filename == "" {
		return false
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE instr(source, ?) > 0 LIMIT 1`, s.table), filename,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		s.log.Warn("exists check failed", zap.String("filename", filename), zap.Error(err))
		return false
	}
	return true
}

func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, vectorstore.ErrInvalidK
	}
	vec, err := vectorstore.EmbedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}
	items, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return vectorstore.Rank(vec, items, k)
}

func (s *Store) all(ctx context.Context) ([]vectorstore.Indexed, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT source, filename, page_number, chunk_index, total_chunks, start_offset,
			size_bytes, uploaded_at, file_type, text, embedding
		FROM %s ORDER BY id`, s.table))
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var items []vectorstore.Indexed //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			c        domain.Chunk
			uploaded string
			blob     []byte
		)
		if err := rows.Scan(
			&c.Source.Path, &c.Source.Filename, &c.PageNumber, &c.ChunkIndex, &c.TotalChunks,
			&c.StartOffset, &c.Source.SizeBytes, &uploaded, &c.Source.FileType, &c.Text, &blob,
		); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, uploaded); err == nil {
			c.Source.UploadedAt = t
		}
		items = append(items, vectorstore.Indexed{Chunk: c, Vector: bytesToFloat32Slice(blob)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return items, nil
}

// Reset drops and recreates the collection table.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table)); err != nil {
		return fmt.Errorf("dropping table %s: %w", s.table, err)
	}
	if err := s.createTable(ctx); err != nil {
		return err
	}
	s.log.Info("store reset")
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
