package settlement

import "context"

type Store interface {
	Create(ctx context.Context, r *Record) error
	List(ctx context.Context, opts ListOpts) ([]*Record, error)
}
