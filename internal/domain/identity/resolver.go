package identity

import (
	"context"
	"errors"
)

var (
	ErrIdentityNotFound   = errors.New("指定されたユーザーが見つかりません")
	ErrIdentifierRequired = errors.New("ユーザー識別子は必須です")
)

// Resolver は人が読める識別子（メールアドレス等）を内部ユーザーIDに解決する
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (string, error)
}
