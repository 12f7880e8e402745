// Package cache persists fact-table entries across runs in a SQLite
// database, so repeated analyses of a slowly-changing program (typical in
// an editor or CI loop) don't recompute facts for subjects whose bodies
// haven't changed. The cache is purely an optimization: a missing or
// corrupt cache file degrades to "analyze everything from scratch", never
// to a fatal error, matching spec's fact-engine being otherwise cache-free.
//
// Grounded on modernc.org/sqlite, the teacher's pure-Go (cgo-free) SQLite
// driver dependency, used here via plain database/sql rather than any ORM.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Radbuglet/autoken-go/internal/facts"
	"github.com/Radbuglet/autoken-go/internal/ir"
)

const schema = `
CREATE TABLE IF NOT EXISTS subject_facts (
	subject_key TEXT PRIMARY KEY,
	facts_json  TEXT NOT NULL,
	fingerprint TEXT NOT NULL
);
`

// Cache wraps a SQLite-backed fact store keyed by subject and a caller-
// supplied fingerprint (e.g. a content hash of the subject's body), so a
// stale row is simply never matched rather than actively invalidated.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: migrate %s: %w", path, err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Seed loads every cached entry whose fingerprint matches fingerprintOf(subj)
// into table as a Done entry, skipping anything that doesn't decode cleanly.
func (c *Cache) Seed(table *facts.Table, fingerprintOf func(ir.Subject) string) error {
	rows, err := c.db.Query(`SELECT subject_key, facts_json, fingerprint FROM subject_facts`)
	if err != nil {
		return fmt.Errorf("cache: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, factsJSON, fingerprint string
		if err := rows.Scan(&key, &factsJSON, &fingerprint); err != nil {
			continue
		}
		subj, ok := decodeSubjectKey(key)
		if !ok {
			continue
		}
		if fingerprintOf != nil && fingerprintOf(subj) != fingerprint {
			continue
		}
		var wire map[string]facts.Facts
		if err := json.Unmarshal([]byte(factsJSON), &wire); err != nil {
			continue
		}
		m := facts.Map{}
		for k, v := range wire {
			m[ir.Component(k)] = v
		}
		table.Seed(subj, m)
	}
	return rows.Err()
}

// Store persists one subject's facts under fingerprint, replacing any
// existing row for the same subject.
func (c *Cache) Store(subj ir.Subject, m facts.Map, fingerprint string) error {
	wire := make(map[string]facts.Facts, len(m))
	for k, v := range m {
		wire[k.String()] = v
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("cache: marshal facts: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT INTO subject_facts (subject_key, facts_json, fingerprint) VALUES (?, ?, ?)
		 ON CONFLICT(subject_key) DO UPDATE SET facts_json = excluded.facts_json, fingerprint = excluded.fingerprint`,
		encodeSubjectKey(subj), string(data), fingerprint,
	)
	return err
}

func encodeSubjectKey(s ir.Subject) string {
	switch s.Kind {
	case ir.SubjectInstance:
		return "I|" + s.Instance.Def + "|" + s.Instance.Args
	case ir.SubjectFnPointer:
		return "P|" + s.FnPointerType.String()
	case ir.SubjectDynamic:
		return "D|" + s.Dynamic.Method + "|" + s.Dynamic.Args
	default:
		return "?"
	}
}

func decodeSubjectKey(key string) (ir.Subject, bool) {
	if len(key) < 2 || key[1] != '|' {
		return ir.Subject{}, false
	}
	kind, rest := key[0], key[2:]
	switch kind {
	case 'I':
		parts := splitOnce(rest, '|')
		return ir.InstanceSubject(ir.Instance{Def: parts[0], Args: parts[1]}), true
	case 'P':
		return ir.FnPointerSubject(ir.Component(rest)), true
	case 'D':
		parts := splitOnce(rest, '|')
		return ir.DynamicSubject(ir.DynKey{Method: parts[0], Args: parts[1]}), true
	default:
		return ir.Subject{}, false
	}
}

func splitOnce(s string, sep byte) [2]string {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return [2]string{s[:i], s[i+1:]}
		}
	}
	return [2]string{s, ""}
}
