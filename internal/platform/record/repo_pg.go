package record

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/db"
)

type repoPG struct {
	pool   *pgxpool.Pool
	schema *Schema

	selectCols string
	insertSQL  string
	updateSQL  string
}

// NewRepoPG builds the SQL for schema once and returns a PostgreSQL repository.
func NewRepoPG(pool *pgxpool.Pool, schema *Schema) Repository {
	r := &repoPG{pool: pool, schema: schema}
	r.prepare()
	return r
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Pick(ctx, r.pool)
}

func (r *repoPG) prepare() {
	s := r.schema

	sel := []string{"id", "patient_id"}
	for _, c := range s.Columns {
		switch c.Kind {
		case Date:
			sel = append(sel, fmt.Sprintf("to_char(%[1]s, 'YYYY-MM-DD') AS %[1]s", c.Name))
		case Time:
			sel = append(sel, fmt.Sprintf("to_char(%[1]s, 'HH24:MI:SS') AS %[1]s", c.Name))
		default:
			sel = append(sel, c.Name)
		}
	}
	sel = append(sel, "created_at", "updated_at")
	r.selectCols = strings.Join(sel, ", ")

	placeholders := make([]string, len(s.Columns))
	sets := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		p := placeholder(i+2, c.Kind)
		placeholders[i] = p
		sets[i] = c.Name + " = " + p
	}

	r.insertSQL = fmt.Sprintf(`INSERT INTO %s (patient_id, %s) VALUES ($1, %s) RETURNING id`,
		s.Table, strings.Join(s.columnNames(), ", "), strings.Join(placeholders, ", "))
	r.updateSQL = fmt.Sprintf(`UPDATE %s SET %s, updated_at = NOW() WHERE id = $1`,
		s.Table, strings.Join(sets, ", "))
}

// placeholder casts through text so date and time values are parsed by the
// server from their textual form.
func placeholder(n int, k Kind) string {
	switch k {
	case Date:
		return fmt.Sprintf("$%d::text::date", n)
	case Time:
		return fmt.Sprintf("$%d::text::time", n)
	}
	return fmt.Sprintf("$%d", n)
}

func (r *repoPG) scanRow(row pgx.Row) (Row, error) {
	var id, patientID int64
	var createdAt, updatedAt time.Time
	texts := make([]*string, len(r.schema.Columns))

	dest := make([]any, 0, len(texts)+4)
	dest = append(dest, &id, &patientID)
	for i := range texts {
		dest = append(dest, &texts[i])
	}
	dest = append(dest, &createdAt, &updatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	out := Row{
		"id":         id,
		"patient_id": patientID,
		"created_at": createdAt,
		"updated_at": updatedAt,
	}
	for i, c := range r.schema.Columns {
		if texts[i] == nil {
			out[c.Name] = nil
		} else {
			out[c.Name] = *texts[i]
		}
	}
	return out, nil
}

func (r *repoPG) args(lead int64, vals Values) []any {
	args := make([]any, 0, len(r.schema.Columns)+1)
	args = append(args, lead)
	for _, c := range r.schema.Columns {
		args = append(args, vals[c.Name])
	}
	return args
}

func (r *repoPG) List(ctx context.Context, patientID int64) ([]Row, error) {
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE patient_id = $1 ORDER BY created_at DESC, id DESC`,
			r.selectCols, r.schema.Table),
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Row{}
	for rows.Next() {
		item, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, id int64) (Row, error) {
	row, err := r.scanRow(r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, r.selectCols, r.schema.Table), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return row, err
}

func (r *repoPG) Create(ctx context.Context, patientID int64, vals Values) (int64, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx, r.insertSQL, r.args(patientID, vals)...).Scan(&id)
	return id, err
}

func (r *repoPG) Update(ctx context.Context, id int64, vals Values) error {
	tag, err := r.conn(ctx).Exec(ctx, r.updateSQL, r.args(id, vals)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.schema.Table), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
