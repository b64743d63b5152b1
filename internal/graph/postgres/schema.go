package postgres

import "context"

// The (chart_id, person_id) primary key is the schema-level backstop for
// person identity uniqueness; the allocator rides on person_counters. Edge
// foreign keys cascade so a person delete removes incident edges in the
// same statement.
const schema = `
CREATE TABLE IF NOT EXISTS persons (
    chart_id    TEXT   NOT NULL,
    person_id   BIGINT NOT NULL,
    owner_id    TEXT   NOT NULL,
    name        TEXT   NOT NULL,
    gender      TEXT   NOT NULL CHECK (gender IN ('M', 'F', 'O')),
    level       INT    NOT NULL CHECK (level >= 0),
    dob         DATE,
    dod         DATE,
    description TEXT,
    photo_url   TEXT,
    PRIMARY KEY (chart_id, person_id)
);

CREATE TABLE IF NOT EXISTS parent_edges (
    chart_id  TEXT   NOT NULL,
    parent_id BIGINT NOT NULL,
    child_id  BIGINT NOT NULL,
    PRIMARY KEY (chart_id, parent_id, child_id),
    FOREIGN KEY (chart_id, parent_id)
        REFERENCES persons (chart_id, person_id) ON DELETE CASCADE,
    FOREIGN KEY (chart_id, child_id)
        REFERENCES persons (chart_id, person_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS person_counters (
    chart_id TEXT   NOT NULL,
    kind     TEXT   NOT NULL,
    value    BIGINT NOT NULL,
    PRIMARY KEY (chart_id, kind)
);
`

// EnsureSchema creates the graph tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}
