package repo

import (
	"context"

	"github.com/mickamy/crudmodel/example/model"
	"github.com/mickamy/crudmodel/orm"
)

type PostRepository struct {
	m *orm.Model
}

func NewPostRepository(m *orm.Model) *PostRepository {
	return &PostRepository{m: m}
}

func (r *PostRepository) Create(ctx context.Context, p *model.Post) error {
	return r.m.Insert(ctx, p)
}

// ByUser returns the posts of u with their User hydrated.
func (r *PostRepository) ByUser(ctx context.Context, u *model.User) ([]*model.Post, error) {
	return orm.SelectAll[model.Post](ctx, r.m, "WHERE user_id = ? ORDER BY id", u.ID)
}

func (r *PostRepository) CountByUser(ctx context.Context, u *model.User) (int64, error) {
	return orm.Count[model.Post](ctx, r.m, "WHERE user_id = ?", u.ID)
}

// DeleteByUser removes every post of u.
func (r *PostRepository) DeleteByUser(ctx context.Context, u *model.User) (int64, error) {
	return orm.DeleteWhere[model.Post](ctx, r.m, "WHERE user_id = ?", u.ID)
}
