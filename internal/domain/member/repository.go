package member

import "context"

// Repository persists the whole family Document as one value.
//
// Load returns an empty Document when nothing has been stored yet or when the
// stored value cannot be decoded. Implementations return an error only when
// the backend itself cannot be reached.
type Repository interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
}
