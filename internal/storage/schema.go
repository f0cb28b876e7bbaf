package storage

const schema = `
-- The 'sources' table tracks where imported cards come from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- local or git
    owner_id TEXT NOT NULL DEFAULT '',
    last_scanned INTEGER -- unix nanoseconds, NULL until the first import
);

-- The 'cards' table stores every card of the archive, including soft-deleted ones.
-- Timestamps are unix nanoseconds in UTC so range filters and ordering are exact.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    card_type TEXT NOT NULL,
    content TEXT NOT NULL,           -- canonical JSON payload
    front TEXT NOT NULL DEFAULT '',  -- copied from content for search
    back TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL,
    version INTEGER NOT NULL,
    difficulty TEXT NOT NULL DEFAULT '',
    difficulty_rank INTEGER NOT NULL DEFAULT 0,
    tags TEXT NOT NULL DEFAULT '[]',
    knowledge_node_ids TEXT NOT NULL DEFAULT '[]',
    source TEXT NOT NULL,
    metadata TEXT,
    fingerprint TEXT NOT NULL DEFAULT '',
    import_source_id INTEGER,
    import_key TEXT NOT NULL DEFAULT '', -- entry identity within the source, fixed at import
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER,

    FOREIGN KEY(import_source_id) REFERENCES sources(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_owner_created ON cards(owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_cards_owner_updated ON cards(owner_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_cards_owner_fingerprint ON cards(owner_id, fingerprint);
CREATE INDEX IF NOT EXISTS idx_cards_import_source ON cards(import_source_id);
`
