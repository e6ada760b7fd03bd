package booking

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studiodesk/internal/middleware"
	"studiodesk/internal/modules/ledger"
	"studiodesk/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/bookings", h.ListBookings)
	rg.POST("/bookings", h.CreateBooking)
	rg.POST("/bookings/check", h.CheckConflict)
	rg.GET("/bookings/:id", h.GetBooking)
	rg.PATCH("/bookings/:id", h.UpdateBooking)
	rg.PATCH("/bookings/:id/status", h.UpdateStatus)
	rg.DELETE("/bookings/:id", h.CancelBooking)
	rg.GET("/availability", h.GetAvailability)
}

func (h *Handler) CreateBooking(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	res, err := h.service.Create(c.Request.Context(), tc, req)
	if err != nil {
		ledger.WriteError(c, "booking", "CreateBooking", err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"booking":     newBookingView(res.Booking),
		"transaction": res.Transaction,
		"account":     res.Account,
	})
}

// ListBookings answers either one day (?date=) or a range (?from=&to=).
func (h *Handler) ListBookings(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var err error
	var views []BookingView
	if date := c.Query("date"); date != "" {
		rows, e := h.service.ListByDate(c.Request.Context(), tc, date)
		err = e
		views = newBookingViews(rows)
	} else {
		from, to := c.Query("from"), c.Query("to")
		if from == "" || to == "" {
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "date or from/to is required")
			return
		}
		rows, e := h.service.ListRange(c.Request.Context(), tc, from, to)
		err = e
		views = newBookingViews(rows)
	}
	if err != nil {
		ledger.WriteError(c, "booking", "ListBookings", err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"bookings": views})
}

func (h *Handler) GetBooking(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	b, err := h.service.Get(c.Request.Context(), tc, c.Param("id"))
	if err != nil {
		ledger.WriteError(c, "booking", "GetBooking", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": newBookingView(b)})
}

func (h *Handler) UpdateBooking(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	b, err := h.service.Update(c.Request.Context(), tc, c.Param("id"), req)
	if err != nil {
		ledger.WriteError(c, "booking", "UpdateBooking", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": newBookingView(b)})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	b, err := h.service.UpdateStatus(c.Request.Context(), tc, c.Param("id"), req.Status)
	if err != nil {
		ledger.WriteError(c, "booking", "UpdateStatus", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": newBookingView(b)})
}

func (h *Handler) CancelBooking(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	b, err := h.service.Cancel(c.Request.Context(), tc, c.Param("id"))
	if err != nil {
		ledger.WriteError(c, "booking", "CancelBooking", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": newBookingView(b)})
}

// CheckConflict is the advisory pre-check the booking form calls while the
// user is still typing. A conflict is reported in the body with 200.
func (h *Handler) CheckConflict(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	res, err := h.service.Check(c.Request.Context(), tc, req)
	if err != nil {
		ledger.WriteError(c, "booking", "CheckConflict", err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) GetAvailability(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	room, date := c.Query("room"), c.Query("date")
	if room == "" || date == "" {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "room and date are required")
		return
	}

	slots, err := h.service.Availability(c.Request.Context(), tc, room, date)
	if err != nil {
		ledger.WriteError(c, "booking", "GetAvailability", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"room":  room,
		"date":  date,
		"slots": slots,
	})
}
