// Package store persists parsed sources, their blocks, and extracted
// fields in SQLite, with FTS5 for block search.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdewitt/citelens/citation"
	"github.com/pdewitt/citelens/parser"
)

// SourceRecord is a source row plus its bookkeeping columns.
type SourceRecord struct {
	citation.Source
	ParseMethod string `json:"parse_method,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// SearchResult holds a block matched by full-text search.
type SearchResult struct {
	BlockID  int64   `json:"block_id"`
	SourceID string  `json:"source_id"`
	Content  string  `json:"content"`
	Type     string  `json:"type,omitempty"`
	Page     int     `json:"page,omitempty"`
	Score    float64 `json:"score"`
}

// Store wraps the SQLite database for all citelens persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the FTS5 virtual table.
func New(dbPath string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Source operations ---

// SaveSource upserts the source row and replaces its blocks and tables
// with the given parse result, all in one transaction.
func (s *Store) SaveSource(ctx context.Context, rec SourceRecord, doc *parser.ParseResult) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sources (id, name, file, kind, page_count, secondary_file, parse_method, content_hash, full_text)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				file = excluded.file,
				kind = excluded.kind,
				page_count = excluded.page_count,
				secondary_file = excluded.secondary_file,
				parse_method = excluded.parse_method,
				content_hash = excluded.content_hash,
				full_text = excluded.full_text,
				updated_at = CURRENT_TIMESTAMP
		`, rec.ID, rec.Name, rec.File, string(rec.Kind), doc.PageCount,
			nullable(rec.SecondaryFile), nullable(doc.Method), nullable(rec.ContentHash),
			doc.Text); err != nil {
			return err
		}

		// Replace blocks; FTS triggers keep the index in sync.
		if _, err := tx.ExecContext(ctx, "DELETE FROM blocks WHERE source_id = ?", rec.ID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO blocks (source_id, position, content, block_type, page, bbox, start_offset, end_offset, region)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, b := range doc.Blocks {
			bbox, err := jsonOrNull(b.BBox)
			if err != nil {
				return err
			}
			region, err := jsonOrNull(b.Region)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, rec.ID, i, b.Content, b.Type, b.Page,
				bbox, b.Start, b.End, region); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM source_tables WHERE source_id = ?", rec.ID); err != nil {
			return err
		}
		for _, tbl := range doc.Tables {
			header, err := json.Marshal(tbl.Header)
			if err != nil {
				return err
			}
			rows, err := json.Marshal(tbl.Rows)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO source_tables (source_id, table_idx, header, rows)
				VALUES (?, ?, ?, ?)
			`, rec.ID, tbl.Index, header, rows); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSource retrieves a source by ID.
func (s *Store) GetSource(ctx context.Context, id string) (*SourceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, file, kind, page_count, secondary_file, parse_method, content_hash, created_at, updated_at
		FROM sources WHERE id = ?
	`, id)
	return scanSource(row.Scan)
}

// ListSources returns all sources ordered by creation time.
func (s *Store) ListSources(ctx context.Context) ([]SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, file, kind, page_count, secondary_file, parse_method, content_hash, created_at, updated_at
		FROM sources ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []SourceRecord
	for rows.Next() {
		rec, err := scanSource(rows.Scan)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// DeleteSource removes a source and cascades to its blocks and tables.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// Delete blocks explicitly so the FTS triggers fire.
		if _, err := tx.ExecContext(ctx, "DELETE FROM blocks WHERE source_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM source_tables WHERE source_id = ?", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
		return err
	})
}

func scanSource(scan func(...any) error) (*SourceRecord, error) {
	rec := &SourceRecord{}
	var kind string
	var secondary, method, hash sql.NullString
	if err := scan(&rec.ID, &rec.Name, &rec.File, &kind, &rec.PageCount,
		&secondary, &method, &hash, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Kind = citation.SourceKind(kind)
	rec.SecondaryFile = secondary.String
	rec.ParseMethod = method.String
	rec.ContentHash = hash.String
	return rec, nil
}

// --- Block operations ---

// Blocks returns all blocks for a source in document order.
func (s *Store) Blocks(ctx context.Context, sourceID string) ([]parser.Block, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content, block_type, page, bbox, start_offset, end_offset, region
		FROM blocks WHERE source_id = ? ORDER BY position
	`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []parser.Block
	for rows.Next() {
		var b parser.Block
		var bbox, region sql.NullString
		if err := rows.Scan(&b.Content, &b.Type, &b.Page, &bbox, &b.Start, &b.End, &region); err != nil {
			return nil, err
		}
		if bbox.Valid {
			b.BBox = &citation.BBox{}
			if err := json.Unmarshal([]byte(bbox.String), b.BBox); err != nil {
				return nil, fmt.Errorf("block bbox: %w", err)
			}
		}
		if region.Valid {
			b.Region = &citation.TableRegion{}
			if err := json.Unmarshal([]byte(region.String), b.Region); err != nil {
				return nil, fmt.Errorf("block region: %w", err)
			}
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// Tables returns all tables for a source ordered by index.
func (s *Store) Tables(ctx context.Context, sourceID string) ([]parser.Table, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_idx, header, rows FROM source_tables
		WHERE source_id = ? ORDER BY table_idx
	`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []parser.Table
	for rows.Next() {
		var t parser.Table
		var header, cells []byte
		if err := rows.Scan(&t.Index, &header, &cells); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(header, &t.Header); err != nil {
			return nil, fmt.Errorf("table header: %w", err)
		}
		if err := json.Unmarshal(cells, &t.Rows); err != nil {
			return nil, fmt.Errorf("table rows: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// SourceText returns the full extracted text of a source.
func (s *Store) SourceText(ctx context.Context, sourceID string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		"SELECT full_text FROM sources WHERE id = ?", sourceID).Scan(&text)
	return text, err
}

// Document reassembles a parse result from the stored blocks, tables,
// text, and page count.
func (s *Store) Document(ctx context.Context, sourceID string) (*parser.ParseResult, error) {
	var text string
	var pageCount int
	var method sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT full_text, page_count, parse_method FROM sources WHERE id = ?",
		sourceID).Scan(&text, &pageCount, &method)
	if err != nil {
		return nil, err
	}

	blocks, err := s.Blocks(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	tables, err := s.Tables(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	return &parser.ParseResult{
		Blocks:    blocks,
		Tables:    tables,
		Text:      text,
		PageCount: pageCount,
		Method:    method.String,
	}, nil
}

// SearchBlocks performs a full-text search over one source's blocks
// using FTS5 BM25 ranking.
func (s *Store) SearchBlocks(ctx context.Context, sourceID, query string, limit int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.rowid, f.rank, b.source_id, b.content, b.block_type, b.page
		FROM blocks_fts f
		JOIN blocks b ON b.id = f.rowid
		WHERE blocks_fts MATCH ? AND b.source_id = ?
		ORDER BY f.rank
		LIMIT ?
	`, query, sourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var rank float64
		if err := rows.Scan(&r.BlockID, &rank, &r.SourceID, &r.Content, &r.Type, &r.Page); err != nil {
			return nil, err
		}
		// FTS5 rank is negative (lower = better), convert to positive score
		r.Score = -rank
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Field operations ---

// SaveFields replaces the full set of extracted fields.
func (s *Store) SaveFields(ctx context.Context, fields []citation.ExtractedField) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM fields"); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO fields (id, label, value, category, citations, position)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, f := range fields {
			cits := f.Citations
			if cits == nil {
				cits = []citation.Citation{}
			}
			blob, err := json.Marshal(cits)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, f.ID, f.Label, f.Value,
				nullable(f.Category), blob, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListFields returns all extracted fields in insertion order.
func (s *Store) ListFields(ctx context.Context) ([]citation.ExtractedField, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, value, category, citations FROM fields ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []citation.ExtractedField
	for rows.Next() {
		var f citation.ExtractedField
		var category sql.NullString
		var blob []byte
		if err := rows.Scan(&f.ID, &f.Label, &f.Value, &category, &blob); err != nil {
			return nil, err
		}
		f.Category = category.String
		f.Citations = []citation.Citation{}
		if err := json.Unmarshal(blob, &f.Citations); err != nil {
			return nil, fmt.Errorf("field %s citations: %w", f.ID, err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// --- Payload operations ---

// LoadPayload returns the stored sources and fields together.
func (s *Store) LoadPayload(ctx context.Context) ([]citation.Source, []citation.ExtractedField, error) {
	recs, err := s.ListSources(ctx)
	if err != nil {
		return nil, nil, err
	}
	sources := make([]citation.Source, len(recs))
	for i, r := range recs {
		sources[i] = r.Source
	}
	fields, err := s.ListFields(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sources, fields, nil
}

// --- Helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonOrNull(v any) (any, error) {
	switch t := v.(type) {
	case *citation.BBox:
		if t == nil {
			return nil, nil
		}
	case *citation.TableRegion:
		if t == nil {
			return nil, nil
		}
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(blob), nil
}

// HashContent returns the content hash used for change detection.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
