// Package index stores gated declarations in a SQLite database so that
// documentation tooling can ask which declarations a feature controls
// without re-reading the source tree.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/marcus/featuregate/internal/source"
)

// Gate is one indexed gate directive
type Gate struct {
	ID        int64    `json:"id"`
	File      string   `json:"file"`
	Line      int      `json:"line"`
	Column    int      `json:"column"`
	Decl      string   `json:"decl"`
	Kind      string   `json:"kind"`
	Directive string   `json:"directive"`
	Condition string   `json:"condition"`
	Features  []string `json:"features,omitempty"`
}

// FeatureCount is the number of gates referencing a feature
type FeatureCount struct {
	Feature string `json:"feature"`
	Gates   int    `json:"gates"`
}

// DB wraps the index connection
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the index at path
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	// Enable WAL mode for concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.ensureSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the index
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file location
func (db *DB) Path() string {
	return db.path
}

func (db *DB) ensureSchema() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	version, err := db.schemaVersion()
	if err != nil {
		return err
	}
	if version == SchemaVersion {
		return nil
	}
	if version != 0 {
		// The index is derived data; an old layout is simply rebuilt.
		if _, err := db.conn.Exec(dropSchema); err != nil {
			return fmt.Errorf("drop old schema: %w", err)
		}
		if _, err := db.conn.Exec(schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	_, err = db.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`, strconv.Itoa(SchemaVersion))
	if err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

func (db *DB) schemaVersion() (int, error) {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM schema_info WHERE key = 'version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("bad schema version %q: %w", value, err)
	}
	return v, nil
}

// Rebuild replaces the whole index with entries
func (db *DB) Rebuild(entries []source.Entry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM gate_features`); err != nil {
		return fmt.Errorf("clear features: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM gates`); err != nil {
		return fmt.Errorf("clear gates: %w", err)
	}

	insertGate, err := tx.Prepare(`INSERT INTO gates (file, line, col, decl, kind, directive, condition) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertGate.Close()
	insertFeature, err := tx.Prepare(`INSERT OR IGNORE INTO gate_features (gate_id, feature) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer insertFeature.Close()

	for _, e := range entries {
		res, err := insertGate.Exec(e.File, e.Line, e.Column, e.Decl, e.Kind, e.Directive, e.Condition)
		if err != nil {
			return fmt.Errorf("insert gate %s:%d: %w", e.File, e.Line, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, f := range e.Features() {
			if _, err := insertFeature.Exec(id, f); err != nil {
				return fmt.Errorf("insert feature %q: %w", f, err)
			}
		}
	}

	return tx.Commit()
}

// All returns every indexed gate ordered by file and line
func (db *DB) All() ([]Gate, error) {
	return db.queryGates(`SELECT id, file, line, col, decl, kind, directive, condition FROM gates ORDER BY file, line, id`)
}

// ByFeature returns the gates whose condition references feature
func (db *DB) ByFeature(feature string) ([]Gate, error) {
	return db.queryGates(`
		SELECT g.id, g.file, g.line, g.col, g.decl, g.kind, g.directive, g.condition
		FROM gates g
		JOIN gate_features f ON f.gate_id = g.id
		WHERE f.feature = ?
		ORDER BY g.file, g.line, g.id`, feature)
}

// FeatureCounts returns how many gates reference each feature, by name
func (db *DB) FeatureCounts() ([]FeatureCount, error) {
	rows, err := db.conn.Query(`SELECT feature, COUNT(*) FROM gate_features GROUP BY feature ORDER BY feature`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []FeatureCount
	for rows.Next() {
		var c FeatureCount
		if err := rows.Scan(&c.Feature, &c.Gates); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (db *DB) queryGates(query string, args ...any) ([]Gate, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gates []Gate
	for rows.Next() {
		var g Gate
		if err := rows.Scan(&g.ID, &g.File, &g.Line, &g.Column, &g.Decl, &g.Kind, &g.Directive, &g.Condition); err != nil {
			return nil, err
		}
		gates = append(gates, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	return gates, db.attachFeatures(gates)
}

func (db *DB) attachFeatures(gates []Gate) error {
	if len(gates) == 0 {
		return nil
	}
	byID := make(map[int64]*Gate, len(gates))
	ids := make([]string, 0, len(gates))
	for i := range gates {
		byID[gates[i].ID] = &gates[i]
		ids = append(ids, strconv.FormatInt(gates[i].ID, 10))
	}

	rows, err := db.conn.Query(`SELECT gate_id, feature FROM gate_features WHERE gate_id IN (` + strings.Join(ids, ",") + `) ORDER BY gate_id, feature`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var feature string
		if err := rows.Scan(&id, &feature); err != nil {
			return err
		}
		if g := byID[id]; g != nil {
			g.Features = append(g.Features, feature)
		}
	}
	return rows.Err()
}
