package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/leanifi/emar/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByLeanifiID(ctx context.Context, leanifiID string) (*User, error)
	ListByRole(ctx context.Context, role string, page pagination.Params) ([]*User, int, error)
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountPatients(ctx context.Context) (total int, active int, err error)
}
