package audit

import (
	"context"

	"github.com/leanifi/emar/pkg/pagination"
)

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	ListRecent(ctx context.Context, page pagination.Params) ([]*Entry, int, error)
}
