package index

// SchemaVersion is the current index schema version. A database written
// with another version is rebuilt from scratch.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- One row per gate directive
CREATE TABLE IF NOT EXISTS gates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file TEXT NOT NULL,
    line INTEGER NOT NULL,
    col INTEGER NOT NULL DEFAULT 1,
    decl TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL DEFAULT '',
    directive TEXT NOT NULL,
    condition TEXT NOT NULL,
    indexed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Features referenced by each gate's condition
CREATE TABLE IF NOT EXISTS gate_features (
    gate_id INTEGER NOT NULL,
    feature TEXT NOT NULL,
    PRIMARY KEY (gate_id, feature),
    FOREIGN KEY (gate_id) REFERENCES gates(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_gates_file ON gates(file);
CREATE INDEX IF NOT EXISTS idx_gate_features_feature ON gate_features(feature);
`

const dropSchema = `
DROP TABLE IF EXISTS gate_features;
DROP TABLE IF EXISTS gates;
DROP TABLE IF EXISTS schema_info;
`
