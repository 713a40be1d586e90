package sqlite

// Library metadata schema. Format file bytes live on disk under
// files/<book-id>/; only their sizes and filenames are recorded here.
const schema = `
CREATE TABLE IF NOT EXISTS books (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    title     TEXT NOT NULL DEFAULT '',
    series    TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS authors (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    sort TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS books_authors_link (
    book   INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
    author INTEGER NOT NULL REFERENCES authors(id),
    ord    INTEGER NOT NULL,
    PRIMARY KEY (book, author)
);

CREATE TABLE IF NOT EXISTS identifiers (
    book INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    val  TEXT NOT NULL,
    PRIMARY KEY (book, type)
);

CREATE TABLE IF NOT EXISTS languages (
    book      INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
    lang_code TEXT NOT NULL,
    ord       INTEGER NOT NULL,
    PRIMARY KEY (book, lang_code)
);

CREATE TABLE IF NOT EXISTS formats (
    book     INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
    ext      TEXT NOT NULL,
    size     INTEGER NOT NULL,
    filename TEXT NOT NULL,
    PRIMARY KEY (book, ext)
);

CREATE TABLE IF NOT EXISTS prefs (
    key   TEXT PRIMARY KEY,
    value BLOB
);

CREATE TABLE IF NOT EXISTS marked (
    book INTEGER PRIMARY KEY,
    tag  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_identifiers_type ON identifiers(type);
CREATE INDEX IF NOT EXISTS idx_formats_size ON formats(ext, size);
`
