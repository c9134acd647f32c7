package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	callerKey    = "caller_id"
	userIDHeader = "X-User-ID"
)

// CallerIdentity は呼び出し元のユーザーIDを検証してコンテキストに格納する
// secret が設定されていれば Bearer トークン（HS256）の sub を使い、
// 空の場合は X-User-ID ヘッダーをそのまま信頼する（ローカル開発用）
func CallerIdentity(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var callerID string
			if secret == "" {
				callerID = strings.TrimSpace(c.Request().Header.Get(userIDHeader))
			} else {
				callerID = subjectFromBearer(c.Request().Header.Get(echo.HeaderAuthorization), secret)
			}
			if callerID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
			}
			c.Set(callerKey, callerID)
			return next(c)
		}
	}
}

func subjectFromBearer(header, secret string) string {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return ""
	}
	tok, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return ""
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// CallerID はコンテキストに格納された呼び出し元のユーザーIDを返す
func CallerID(c echo.Context) string {
	id, _ := c.Get(callerKey).(string)
	return id
}
