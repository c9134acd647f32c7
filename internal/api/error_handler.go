package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-reservation/internal/domain/identity"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-seat-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
// Kind はクライアントが分岐に使う安定した識別子
type ErrorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind"`
	Code    int      `json:"code"`
	Details []string `json:"details,omitempty"`
}

// ValidationError はリクエストの検証エラー。Fields には不正なフィールド名が入る
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "リクエストの検証に失敗しました"
}

type errorKind struct {
	target  error
	code    int
	kind    string
	message string
}

var domainErrors = []errorKind{
	{seat.ErrSeatNotFound, http.StatusNotFound, "seat_not_found", "座席が見つかりません"},
	{seat.ErrSeatUnavailable, http.StatusConflict, "seat_unavailable", "この座席は現在利用できません"},
	{seat.ErrSeatConflict, http.StatusConflict, "seat_conflict", "座席の予約ルールに違反しています"},
	{identity.ErrIdentityNotFound, http.StatusNotFound, "identity_not_found", "指定されたユーザーが見つかりません"},
	{seat.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable", "現在処理できません。しばらくしてから再試行してください"},
	{seat.ErrSeatIDRequired, http.StatusBadRequest, "invalid_request", "座席IDは必須です"},
	{identity.ErrIdentifierRequired, http.StatusBadRequest, "invalid_request", "ユーザー識別子は必須です"},
	{seat.ErrUserIDRequired, http.StatusUnauthorized, "unauthenticated", "認証が必要です"},
}

// CustomHTTPErrorHandler はドメインエラーと echo のエラーを統一フォーマットで返す
// 内部エラーのメッセージはレスポンスに含めない
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := toErrorResponse(err)

	if resp.Code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", resp.Code),
			zap.String("kind", resp.Kind),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	var sendErr error
	if c.Request().Method == http.MethodHead {
		sendErr = c.NoContent(resp.Code)
	} else {
		sendErr = c.JSON(resp.Code, resp)
	}
	if sendErr != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(sendErr))
	}
}

func toErrorResponse(err error) ErrorResponse {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrorResponse{Error: ve.Error(), Kind: "invalid_request", Code: http.StatusBadRequest, Details: ve.Fields}
	}

	for _, k := range domainErrors {
		if errors.Is(err, k.target) {
			return ErrorResponse{Error: k.message, Kind: k.kind, Code: k.code}
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message, ok := he.Message.(string)
		if !ok || he.Code >= 500 {
			message = http.StatusText(he.Code)
		}
		return ErrorResponse{Error: message, Kind: kindForStatus(he.Code), Code: he.Code}
	}

	return ErrorResponse{Error: "内部サーバーエラー", Kind: "internal", Code: http.StatusInternalServerError}
}

func kindForStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	}
	if code >= 500 {
		return "internal"
	}
	return "error"
}
