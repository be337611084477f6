package repo

import (
	"context"

	"github.com/mickamy/crudmodel/example/model"
	"github.com/mickamy/crudmodel/orm"
	"github.com/mickamy/crudmodel/scope"
)

// UserRepository wraps Model operations with a repository pattern.
type UserRepository struct {
	m *orm.Model
}

func NewUserRepository(m *orm.Model) *UserRepository {
	return &UserRepository{m: m}
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.m.Insert(ctx, u)
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return orm.Select[model.User](ctx, r.m, "WHERE id = ?", id)
}

func (r *UserRepository) FindAll(ctx context.Context, scopes ...scope.Scope) ([]*model.User, error) {
	return orm.Find[model.User](ctx, r.m, scope.Combine(scopes...).Append(scope.OrderBy("id"))...)
}

func (r *UserRepository) Update(ctx context.Context, u *model.User) error {
	return r.m.Update(ctx, u)
}

func (r *UserRepository) Delete(ctx context.Context, u *model.User) error {
	return r.m.Delete(ctx, u)
}
