package patient

import "context"

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	// Search matches pattern, an already escaped LIKE pattern, against the
	// lower-cased first and last names.
	Search(ctx context.Context, pattern string) ([]SearchResult, error)
}
