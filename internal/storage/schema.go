package storage

const schema = `
-- Wordlist origins: a local directory or a git repository of CSV/TSV/XLSX files.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- local | git
    last_scanned DATETIME
);

CREATE TABLE IF NOT EXISTS words (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    word TEXT NOT NULL,
    part_of_speech TEXT NOT NULL DEFAULT '',
    cefr_level TEXT NOT NULL,
    cefr_numeric INTEGER NOT NULL,
    frequency_rank INTEGER,
    zipf_score REAL,
    in_ngsl BOOLEAN NOT NULL DEFAULT 0,
    in_nawl BOOLEAN NOT NULL DEFAULT 0,
    katakana_loanword BOOLEAN NOT NULL DEFAULT 0,
    false_cognate BOOLEAN NOT NULL DEFAULT 0,
    l1_interference_risk BOOLEAN NOT NULL DEFAULT 0,
    definition TEXT,
    difficulty_score INTEGER,
    should_annotate BOOLEAN NOT NULL DEFAULT 0,
    source_id INTEGER,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,

    UNIQUE(word, part_of_speech),
    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS learners (
    id TEXT PRIMARY KEY,
    age INTEGER,
    exam_date DATE,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

-- SM-2 state, one row per learner-word pair.
CREATE TABLE IF NOT EXISTS review_cards (
    learner_id TEXT NOT NULL,
    word_id INTEGER NOT NULL,
    easiness REAL NOT NULL DEFAULT 2.5,
    interval_days REAL NOT NULL DEFAULT 1.0,
    repetitions INTEGER NOT NULL DEFAULT 0,
    next_review DATETIME NOT NULL,
    last_review DATETIME,
    last_quality INTEGER,
    created_at DATETIME NOT NULL,

    PRIMARY KEY(learner_id, word_id),
    FOREIGN KEY(learner_id) REFERENCES learners(id),
    FOREIGN KEY(word_id) REFERENCES words(id)
);

CREATE INDEX IF NOT EXISTS idx_review_cards_due ON review_cards(learner_id, next_review);

-- Append-only review log.
CREATE TABLE IF NOT EXISTS review_events (
    id TEXT PRIMARY KEY,
    learner_id TEXT NOT NULL,
    word_id INTEGER NOT NULL,
    quality INTEGER NOT NULL,
    latency_ms INTEGER,
    correct BOOLEAN NOT NULL,
    reviewed_at DATETIME NOT NULL,

    FOREIGN KEY(learner_id) REFERENCES learners(id),
    FOREIGN KEY(word_id) REFERENCES words(id)
);

CREATE INDEX IF NOT EXISTS idx_review_events_learner ON review_events(learner_id, reviewed_at);

CREATE TABLE IF NOT EXISTS embedding_cache (
    key TEXT PRIMARY KEY,
    model TEXT NOT NULL,
    vector BLOB NOT NULL,
    created_at DATETIME NOT NULL,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS similarity_audits (
    id TEXT PRIMARY KEY,
    text_hash TEXT NOT NULL,
    corpus_size INTEGER NOT NULL,
    score REAL NOT NULL,
    recommendation TEXT NOT NULL,
    verdict TEXT NOT NULL, -- JSON
    created_at DATETIME NOT NULL
);
`
