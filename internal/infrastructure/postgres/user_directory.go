package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-seat-reservation/internal/domain/identity"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/seat"
)

// UserDirectory は user_directory テーブルを引いてメールアドレスをユーザーIDに解決する
type UserDirectory struct{ db *sqlx.DB }

func NewUserDirectory(db *sqlx.DB) *UserDirectory { return &UserDirectory{db: db} }

func (d *UserDirectory) Resolve(ctx context.Context, identifier string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(identifier))
	if email == "" {
		return "", identity.ErrIdentifierRequired
	}
	var id string
	err := d.db.GetContext(ctx, &id, `SELECT id FROM user_directory WHERE lower(email) = $1`, email)
	if err != nil {
		err = mapError(err)
		if errors.Is(err, seat.ErrSeatNotFound) {
			return "", identity.ErrIdentityNotFound
		}
		return "", err
	}
	return id, nil
}

var _ identity.Resolver = (*UserDirectory)(nil)
