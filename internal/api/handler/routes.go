package handler

import "github.com/labstack/echo/v4"

// RegisterRoutes はルーティングを登録する
// auth は呼び出し元の特定が必要なエンドポイントにだけ適用する
func RegisterRoutes(e *echo.Echo, seats *SeatHandler, health *HealthHandler, auth echo.MiddlewareFunc) {
	e.GET("/health", health.Check)

	v1 := e.Group("/api/v1")
	v1.GET("/seats", seats.List)
	v1.GET("/seats/mine", seats.Mine, auth)
	v1.POST("/seats/book", seats.Book, auth)
	v1.POST("/seats/confirm", seats.Confirm, auth)
	v1.POST("/seats/cancel", seats.Cancel, auth)
	v1.POST("/reports", seats.Report)
}
