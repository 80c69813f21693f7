package store

// schemaSQL is the DDL for all tables.
const schemaSQL = `
-- Source registry with hash-based change detection
CREATE TABLE IF NOT EXISTS sources (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    file TEXT NOT NULL,
    kind TEXT NOT NULL,
    page_count INTEGER DEFAULT 0,
    secondary_file TEXT,
    parse_method TEXT,
    content_hash TEXT,
    full_text TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Parsed blocks, in document order
CREATE TABLE IF NOT EXISTS blocks (
    id INTEGER PRIMARY KEY,
    source_id TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    content TEXT NOT NULL,
    block_type TEXT NOT NULL DEFAULT '',
    page INTEGER DEFAULT 0,
    bbox JSON,
    start_offset INTEGER DEFAULT 0,
    end_offset INTEGER DEFAULT 0,
    region JSON
);

-- Parsed tables, one row per table, cells as JSON
CREATE TABLE IF NOT EXISTS source_tables (
    source_id TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    table_idx INTEGER NOT NULL,
    header JSON NOT NULL,
    rows JSON NOT NULL,
    PRIMARY KEY (source_id, table_idx)
);

-- Extracted fields with their resolved citations as JSON
CREATE TABLE IF NOT EXISTS fields (
    id TEXT PRIMARY KEY,
    label TEXT NOT NULL,
    value TEXT NOT NULL,
    category TEXT,
    citations JSON NOT NULL DEFAULT '[]',
    position INTEGER NOT NULL
);

-- Full-text search via FTS5
CREATE VIRTUAL TABLE IF NOT EXISTS blocks_fts USING fts5(
    content,
    content='blocks',
    content_rowid='id',
    tokenize='porter unicode61'
);

-- FTS triggers to keep index in sync
CREATE TRIGGER IF NOT EXISTS blocks_ai AFTER INSERT ON blocks BEGIN
    INSERT INTO blocks_fts(rowid, content) VALUES (new.id, new.content);
END;
CREATE TRIGGER IF NOT EXISTS blocks_ad AFTER DELETE ON blocks BEGIN
    INSERT INTO blocks_fts(blocks_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;
CREATE TRIGGER IF NOT EXISTS blocks_au AFTER UPDATE ON blocks BEGIN
    INSERT INTO blocks_fts(blocks_fts, rowid, content) VALUES ('delete', old.id, old.content);
    INSERT INTO blocks_fts(rowid, content) VALUES (new.id, new.content);
END;

-- Indexes
CREATE INDEX IF NOT EXISTS idx_blocks_source ON blocks(source_id, position);
CREATE INDEX IF NOT EXISTS idx_blocks_page ON blocks(source_id, page);
CREATE INDEX IF NOT EXISTS idx_sources_hash ON sources(content_hash);
`
