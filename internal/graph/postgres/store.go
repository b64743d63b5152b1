// Package postgres implements the graph store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lineage/internal/graph"
	"lineage/internal/person/models"
	"lineage/pkg/platform/sentinel"
)

// Store persists the genealogy graph in PostgreSQL. Per-node operations
// rely on row-level transactional semantics; the counter row serializes
// id allocation per chart.
type Store struct {
	pool *pgxpool.Pool
}

var _ graph.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const personColumns = "chart_id, person_id, owner_id, name, gender, level, dob, dod, description, photo_url"

func (s *Store) CreateNode(ctx context.Context, p *models.Person) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO persons (`+personColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ChartID, p.PersonID, p.OwnerID, p.Name, string(p.Gender), p.Level,
		dateArg(p.DOB), dateArg(p.DOD), p.Description, p.PhotoURL,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create person node: %w", translate(err))
	}
	return nil
}

func (s *Store) GetNode(ctx context.Context, chartID string, personID int64) (*models.Person, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+personColumns+` FROM persons
		WHERE chart_id = $1 AND person_id = $2`,
		chartID, personID,
	)
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get person node: %w", translate(err))
	}
	return p, nil
}

func (s *Store) UpdateNode(ctx context.Context, p *models.Person) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE persons
		SET owner_id = $3, name = $4, gender = $5, level = $6,
		    dob = $7, dod = $8, description = $9, photo_url = $10
		WHERE chart_id = $1 AND person_id = $2`,
		p.ChartID, p.PersonID, p.OwnerID, p.Name, string(p.Gender), p.Level,
		dateArg(p.DOB), dateArg(p.DOD), p.Description, p.PhotoURL,
	)
	if err != nil {
		return fmt.Errorf("update person node: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteNode(ctx context.Context, chartID string, personID int64) error {
	// Edge rows cascade with the person row, so this is a single atomic
	// statement.
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM persons WHERE chart_id = $1 AND person_id = $2`,
		chartID, personID,
	)
	if err != nil {
		return fmt.Errorf("delete person node: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteChart(ctx context.Context, chartID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin chart purge: %w", translate(err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM persons WHERE chart_id = $1`, chartID); err != nil {
		return fmt.Errorf("purge persons: %w", translate(err))
	}
	if _, err := tx.Exec(ctx, `DELETE FROM person_counters WHERE chart_id = $1`, chartID); err != nil {
		return fmt.Errorf("purge counters: %w", translate(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chart purge: %w", translate(err))
	}
	return nil
}

func (s *Store) UpsertEdge(ctx context.Context, chartID string, parentID, childID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO parent_edges (chart_id, parent_id, child_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (chart_id, parent_id, child_id) DO NOTHING`,
		chartID, parentID, childID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("upsert edge: %w", translate(err))
	}
	return nil
}

func (s *Store) DeleteEdge(ctx context.Context, chartID string, parentID, childID int64) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM parent_edges
		WHERE chart_id = $1 AND parent_id = $2 AND child_id = $3`,
		chartID, parentID, childID,
	)
	if err != nil {
		return fmt.Errorf("delete edge: %w", translate(err))
	}
	return nil
}

func (s *Store) Reachable(ctx context.Context, chartID string, fromID, toID int64) (bool, error) {
	if fromID == toID {
		return true, nil
	}
	var reachable bool
	err := s.pool.QueryRow(ctx, `
		WITH RECURSIVE walk (person_id) AS (
			SELECT child_id FROM parent_edges
			WHERE chart_id = $1 AND parent_id = $2
			UNION
			SELECT e.child_id FROM parent_edges e
			JOIN walk w ON e.parent_id = w.person_id
			WHERE e.chart_id = $1
		)
		SELECT EXISTS (SELECT 1 FROM walk WHERE person_id = $3)`,
		chartID, fromID, toID,
	).Scan(&reachable)
	if err != nil {
		return false, fmt.Errorf("reachability query: %w", translate(err))
	}
	return reachable, nil
}

// NextPersonID is a single atomic statement: the counter row is created
// lazily, seeded to the chart's current max person id, and incremented
// under the row lock that INSERT .. ON CONFLICT takes.
func (s *Store) NextPersonID(ctx context.Context, chartID string) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO person_counters (chart_id, kind, value)
		VALUES ($1, $2, (SELECT COALESCE(MAX(person_id), 0) FROM persons WHERE chart_id = $1) + 1)
		ON CONFLICT (chart_id, kind)
		DO UPDATE SET value = person_counters.value + 1
		RETURNING value`,
		chartID, graph.CounterPerson,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("increment person counter: %w", translate(err))
	}
	return value, nil
}

func (s *Store) QueryNodes(ctx context.Context, chartID string, filter models.Filter) ([]*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE chart_id = $1`
	args := []any{chartID}
	if filter.NameContains != "" {
		args = append(args, "%"+filter.NameContains+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	if filter.Gender != nil {
		args = append(args, string(*filter.Gender))
		query += fmt.Sprintf(" AND gender = $%d", len(args))
	}
	if filter.Level != nil {
		args = append(args, *filter.Level)
		query += fmt.Sprintf(" AND level = $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query person nodes: %w", translate(err))
	}
	defer rows.Close()
	return collectPersons(rows)
}

func (s *Store) QueryEdges(ctx context.Context, chartID string) ([]graph.Edge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chart_id, parent_id, child_id FROM parent_edges
		WHERE chart_id = $1`,
		chartID,
	)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", translate(err))
	}
	defer rows.Close()
	return collectEdges(rows)
}

// ChartSnapshot reads nodes and edges inside one REPEATABLE READ
// transaction so the pair reflects a single graph state.
func (s *Store) ChartSnapshot(ctx context.Context, chartID string) ([]*models.Person, []graph.Edge, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("begin snapshot: %w", translate(err))
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT `+personColumns+` FROM persons WHERE chart_id = $1`, chartID)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot nodes: %w", translate(err))
	}
	nodes, err := collectPersons(rows)
	if err != nil {
		return nil, nil, err
	}

	rows, err = tx.Query(ctx, `
		SELECT chart_id, parent_id, child_id FROM parent_edges WHERE chart_id = $1`, chartID)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot edges: %w", translate(err))
	}
	edges, err := collectEdges(rows)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit snapshot: %w", translate(err))
	}
	return nodes, edges, nil
}

// --- row scanning -----------------------------------------------------------

func scanPerson(row pgx.Row) (*models.Person, error) {
	var (
		p        models.Person
		gender   string
		dob, dod *time.Time
	)
	err := row.Scan(&p.ChartID, &p.PersonID, &p.OwnerID, &p.Name, &gender,
		&p.Level, &dob, &dod, &p.Description, &p.PhotoURL)
	if err != nil {
		return nil, err
	}
	p.Gender = models.Gender(gender)
	if dob != nil {
		p.DOB = &models.Date{Time: *dob}
	}
	if dod != nil {
		p.DOD = &models.Date{Time: *dod}
	}
	return &p, nil
}

func collectPersons(rows pgx.Rows) ([]*models.Person, error) {
	defer rows.Close()
	var out []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", translate(err))
	}
	return out, nil
}

func collectEdges(rows pgx.Rows) ([]graph.Edge, error) {
	defer rows.Close()
	var out []graph.Edge
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.ChartID, &e.ParentID, &e.ChildID); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", translate(err))
	}
	return out, nil
}

// --- error translation ------------------------------------------------------

func dateArg(d *models.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// translate folds transport-level failures into the unavailable sentinel
// so services surface them as StoreUnavailable rather than internal noise.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	return err
}
