package store

// schema creates the symdex index database.
const schema = `
-- One row per indexed file; replaced as a whole on every extraction pass
CREATE TABLE IF NOT EXISTS files (
    file_key     TEXT PRIMARY KEY,
    language     TEXT NOT NULL,
    pass_id      TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    extracted_at INTEGER NOT NULL -- unix nanoseconds
);

-- Symbols table
CREATE TABLE IF NOT EXISTS symbols (
    id               TEXT PRIMARY KEY,
    file_key         TEXT NOT NULL,
    ordinal          INTEGER NOT NULL,
    key              TEXT NOT NULL,
    path             TEXT NOT NULL,
    qualified_path   TEXT NOT NULL,
    name             TEXT NOT NULL,
    alias            TEXT,
    kind             TEXT NOT NULL,
    parent_id        TEXT,
    language         TEXT NOT NULL,
    shadowed         INTEGER NOT NULL DEFAULT 0,
    is_async         INTEGER NOT NULL DEFAULT 0,
    start_line       INTEGER NOT NULL,
    start_column     INTEGER NOT NULL,
    end_line         INTEGER NOT NULL,
    end_column       INTEGER NOT NULL,
    start_byte       INTEGER NOT NULL,
    end_byte         INTEGER NOT NULL,
    bases_json       TEXT,
    decorators_json  TEXT,
    parameters_json  TEXT,
    return_json      TEXT,
    FOREIGN KEY (file_key) REFERENCES files(file_key) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_symbols_key ON symbols(file_key, key);
CREATE INDEX IF NOT EXISTS idx_symbols_path ON symbols(path);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);

-- Decorator names, denormalised for lookup by decorator
CREATE TABLE IF NOT EXISTS decorators (
    symbol_id TEXT NOT NULL,
    name      TEXT NOT NULL,
    position  INTEGER NOT NULL,
    PRIMARY KEY (symbol_id, position),
    FOREIGN KEY (symbol_id) REFERENCES symbols(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_decorators_name ON decorators(name);

-- Metadata table for index info
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
