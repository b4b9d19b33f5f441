package patient

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/db"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Pick(ctx, r.pool)
}

const patientCols = `id, first_name, last_name, to_char(date_of_birth, 'YYYY-MM-DD'), gender,
	phone, email, address, emergency_contact, insurance, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
		&p.Phone, &p.Email, &p.Address, &p.EmergencyContact, &p.Insurance,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (first_name, last_name, date_of_birth, gender,
			phone, email, address, emergency_contact, insurance)
		VALUES ($1, $2, $3::text::date, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Email, p.Address, p.EmergencyContact, p.Insurance,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) Get(ctx context.Context, id int64) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET first_name = $2, last_name = $3, date_of_birth = $4::text::date,
			gender = $5, phone = $6, email = $7, address = $8, emergency_contact = $9,
			insurance = $10, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Email, p.Address, p.EmergencyContact, p.Insurance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return record.ErrNotFound
	}
	return nil
}

// Delete removes the patient; foreign keys cascade to every record table.
func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return record.ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, pattern string) ([]SearchResult, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, first_name, last_name, to_char(date_of_birth, 'YYYY-MM-DD'), gender
		FROM patients
		WHERE LOWER(first_name) LIKE $1 ESCAPE '\' OR LOWER(last_name) LIKE $1 ESCAPE '\'
		ORDER BY last_name, first_name, id`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var res SearchResult
		var first, last string
		if err := rows.Scan(&res.ID, &first, &last, &res.DOB, &res.Gender); err != nil {
			return nil, err
		}
		res.Name = first + " " + last
		results = append(results, res)
	}
	return results, rows.Err()
}
