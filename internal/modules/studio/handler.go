package studio

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
	settings := rg.Group("/studio")
	settings.GET("/config", h.GetConfig)
	settings.PUT("/config", middleware.OwnerOnly(), h.SaveConfig)
	settings.PUT("/finance-pin", middleware.OwnerOnly(), h.SetFinancePIN)

	rg.GET("/clients", h.ListClients)
	rg.POST("/clients", h.CreateClient)
	rg.POST("/clients/import", h.ImportClients)
	rg.GET("/clients/:id", h.GetClient)
	rg.PUT("/clients/:id", h.UpdateClient)

	rg.GET("/staff", h.ListStaff)
	rg.POST("/staff", middleware.RequireRole("owner", "manager"), h.CreateStaff)
	rg.DELETE("/staff/:id", middleware.RequireRole("owner", "manager"), h.DeactivateStaff)
}

func (h *Handler) GetConfig(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	cfg, err := h.service.GetConfig(c.Request.Context(), tc)
	if err != nil {
		ledger.WriteError(c, "studio", "GetConfig", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"config": cfg})
}

func (h *Handler) SaveConfig(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	cfg, err := h.service.SaveConfig(c.Request.Context(), tc, req)
	if err != nil {
		ledger.WriteError(c, "studio", "SaveConfig", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"config": cfg})
}

func (h *Handler) SetFinancePIN(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req SetPINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	if err := h.service.SetFinancePIN(c.Request.Context(), tc, req.PIN); err != nil {
		ledger.WriteError(c, "studio", "SetFinancePIN", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"pin_enabled": req.PIN != ""})
}

func (h *Handler) ListClients(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	clients, err := h.service.ListClients(c.Request.Context(), tc, c.Query("q"))
	if err != nil {
		ledger.WriteError(c, "studio", "ListClients", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"clients": clients})
}

func (h *Handler) CreateClient(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	client, err := h.service.CreateClient(c.Request.Context(), tc, req)
	if err != nil {
		ledger.WriteError(c, "studio", "CreateClient", err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"client": client})
}

func (h *Handler) GetClient(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	client, err := h.service.GetClient(c.Request.Context(), tc, c.Param("id"))
	if err != nil {
		ledger.WriteError(c, "studio", "GetClient", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"client": client})
}

func (h *Handler) UpdateClient(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	client, err := h.service.UpdateClient(c.Request.Context(), tc, c.Param("id"), req)
	if err != nil {
		ledger.WriteError(c, "studio", "UpdateClient", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"client": client})
}

func (h *Handler) ImportClients(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req ImportClientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	res, err := h.service.ImportClients(c.Request.Context(), tc, req.Clients)
	if err != nil {
		ledger.WriteError(c, "studio", "ImportClients", err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) ListStaff(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	staff, err := h.service.ListStaff(c.Request.Context(), tc, c.Query("active") == "true")
	if err != nil {
		ledger.WriteError(c, "studio", "ListStaff", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"staff": staff})
}

func (h *Handler) CreateStaff(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req StaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	st, err := h.service.CreateStaff(c.Request.Context(), tc, req)
	if err != nil {
		ledger.WriteError(c, "studio", "CreateStaff", err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"staff": st})
}

func (h *Handler) DeactivateStaff(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	if err := h.service.DeactivateStaff(c.Request.Context(), tc, c.Param("id")); err != nil {
		ledger.WriteError(c, "studio", "DeactivateStaff", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deactivated": true})
}
