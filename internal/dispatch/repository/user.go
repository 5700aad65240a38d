package repository

import (
	"context"

	"rivoj/internal/common/db"
	"rivoj/internal/dispatch/model"
	appErr "rivoj/pkg/errors"
)

// UserRepository reads the judge-facing fields of user records.
type UserRepository struct {
	db db.Database
}

func NewUserRepository(database db.Database) *UserRepository {
	return &UserRepository{db: database}
}

func (r *UserRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	row := r.db.QueryRow(ctx,
		"SELECT id, username, admin_type, is_disabled FROM users WHERE id = ?", id)
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.AdminType, &u.Disabled); err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.UserNotFound).WithDetail("user_id", id)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "fetch user failed")
	}
	return &u, nil
}
