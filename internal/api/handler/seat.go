package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-seat-reservation/internal/api"
	"github.com/sanosuguru/go-seat-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-seat-reservation/internal/application"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/seat"
)

type SeatHandler struct {
	engine SeatEngine
}

func NewSeatHandler(e SeatEngine) *SeatHandler {
	return &SeatHandler{engine: e}
}

type BookSeatRequest struct {
	SeatID        string `json:"seat_id" validate:"required"`
	DelegateEmail string `json:"delegate_email" validate:"omitempty,email"`
}

type SeatActionRequest struct {
	SeatID string `json:"seat_id" validate:"required"`
}

type SeatResponse struct {
	ID         string     `json:"id"`
	SeatNumber string     `json:"seat_number"`
	Floor      int        `json:"floor"`
	Status     string     `json:"status"`
	Holder     *string    `json:"holder,omitempty"`
	HeldAt     *time.Time `json:"held_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Flagged    bool       `json:"flagged"`
}

func toSeatResponse(s *seat.Seat) SeatResponse {
	return SeatResponse{
		ID: s.ID, SeatNumber: s.SeatNumber, Floor: s.Floor,
		Status: string(s.Status), Holder: s.Holder,
		HeldAt: s.HeldAt, ExpiresAt: s.ExpiresAt, Flagged: s.Flagged,
	}
}

// List godoc
// @Summary 座席一覧を取得
// @Tags seats
// @Produce json
// @Param floor query int false "階"
// @Param available query bool false "空席のみ"
// @Success 200 {array} SeatResponse
// @Router /seats [get]
func (h *SeatHandler) List(c echo.Context) error {
	var filter seat.ListFilter
	if raw := c.QueryParam("floor"); raw != "" {
		floor, err := strconv.Atoi(raw)
		if err != nil || floor < 0 {
			return &api.ValidationError{Fields: []string{"floor"}}
		}
		filter.Floor = &floor
	}
	filter.FreeOnly = c.QueryParam("available") == "true"

	seats, err := h.engine.ListSeats(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	resp := make([]SeatResponse, len(seats))
	for i, s := range seats {
		resp[i] = toSeatResponse(s)
	}
	return c.JSON(http.StatusOK, resp)
}

// Mine godoc
// @Summary 自分が保持している座席を取得
// @Tags seats
// @Produce json
// @Success 200 {object} SeatResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /seats/mine [get]
func (h *SeatHandler) Mine(c echo.Context) error {
	s, err := h.engine.MySeat(c.Request().Context(), middleware.CallerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponse(s))
}

// Book godoc
// @Summary 座席を仮押さえ
// @Description delegate_email を指定すると、そのユーザーのために仮押さえする
// @Tags seats
// @Accept json
// @Produce json
// @Param request body BookSeatRequest true "予約情報"
// @Success 201 {object} SeatResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /seats/book [post]
func (h *SeatHandler) Book(c echo.Context) error {
	var req BookSeatRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	s, err := h.engine.Reserve(c.Request().Context(), application.ReserveInput{
		SeatID:             req.SeatID,
		CallerID:           middleware.CallerID(c),
		DelegateIdentifier: req.DelegateEmail,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toSeatResponse(s))
}

// Confirm godoc
// @Summary 仮押さえ中の座席にチェックイン
// @Tags seats
// @Accept json
// @Produce json
// @Param request body SeatActionRequest true "座席"
// @Success 200 {object} SeatResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /seats/confirm [post]
func (h *SeatHandler) Confirm(c echo.Context) error {
	var req SeatActionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	s, err := h.engine.Confirm(c.Request().Context(), req.SeatID, middleware.CallerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponse(s))
}

// Cancel godoc
// @Summary 座席を手放す
// @Tags seats
// @Accept json
// @Produce json
// @Param request body SeatActionRequest true "座席"
// @Success 200 {object} SeatResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /seats/cancel [post]
func (h *SeatHandler) Cancel(c echo.Context) error {
	var req SeatActionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	s, err := h.engine.Release(c.Request().Context(), req.SeatID, middleware.CallerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponse(s))
}

// Report godoc
// @Summary 座席の利用状況を報告
// @Tags reports
// @Accept json
// @Param request body SeatActionRequest true "座席"
// @Success 204
// @Failure 404 {object} api.ErrorResponse
// @Router /reports [post]
func (h *SeatHandler) Report(c echo.Context) error {
	var req SeatActionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.engine.Report(c.Request().Context(), req.SeatID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	return c.Validate(req)
}
