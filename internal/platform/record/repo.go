package record

import "context"

// Repository stores the rows of one record table. Get, Update and Delete
// return ErrNotFound when no row has the id.
type Repository interface {
	List(ctx context.Context, patientID int64) ([]Row, error)
	Get(ctx context.Context, id int64) (Row, error)
	Create(ctx context.Context, patientID int64, vals Values) (int64, error)
	Update(ctx context.Context, id int64, vals Values) error
	Delete(ctx context.Context, id int64) error
}
