package finance

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studiodesk/internal/domain"
	"studiodesk/internal/middleware"
	"studiodesk/internal/modules/ledger"
	"studiodesk/internal/pkg/response"
)

type Handler struct {
	ledger *ledger.Service
}

func NewHandler(ledgerSvc *ledger.Service) *Handler {
	return &Handler{ledger: ledgerSvc}
}

// RegisterRoutes mounts the finance endpoints. The caller puts the finance
// PIN middleware on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/accounts", h.ListAccounts)
	rg.POST("/accounts", h.CreateAccount)
	rg.GET("/accounts/:id", h.GetAccount)

	rg.POST("/payments", h.Settle)
	rg.POST("/expenses", h.RecordExpense)
	rg.POST("/income", h.RecordIncome)
	rg.POST("/transfers", h.Transfer)

	rg.GET("/transactions", h.ListTransactions)
	rg.GET("/summary", h.GetSummary)
	rg.GET("/reconcile", h.Reconcile)
	rg.GET("/export", h.Export)
}

func (h *Handler) CreateAccount(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	acct, err := h.ledger.CreateAccount(c.Request.Context(), tc, ledger.NewAccount{
		Name:           req.Name,
		Type:           req.Type,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		ledger.WriteError(c, "finance", "CreateAccount", err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"account": acct})
}

func (h *Handler) ListAccounts(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	accounts, err := h.ledger.ListAccounts(c.Request.Context(), tc)
	if err != nil {
		ledger.WriteError(c, "finance", "ListAccounts", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"accounts": accounts})
}

func (h *Handler) GetAccount(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	acct, err := h.ledger.GetAccount(c.Request.Context(), tc, c.Param("id"))
	if err != nil {
		ledger.WriteError(c, "finance", "GetAccount", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"account": acct})
}

func (h *Handler) Settle(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	res, err := h.ledger.Settle(c.Request.Context(), tc, req.input())
	if err != nil {
		ledger.WriteError(c, "finance", "Settle", err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

func (h *Handler) RecordExpense(c *gin.Context) {
	h.postEntry(c, "RecordExpense", h.ledger.RecordExpense)
}

func (h *Handler) RecordIncome(c *gin.Context) {
	h.postEntry(c, "RecordIncome", h.ledger.RecordIncome)
}

type entryFunc func(ctx context.Context, tc domain.TenantContext, in ledger.EntryInput) (*ledger.EntryResult, error)

func (h *Handler) postEntry(c *gin.Context, funcName string, post entryFunc) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	res, err := post(c.Request.Context(), tc, req.input())
	if err != nil {
		ledger.WriteError(c, "finance", funcName, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

func (h *Handler) Transfer(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	res, err := h.ledger.Transfer(c.Request.Context(), tc, req.input())
	if err != nil {
		ledger.WriteError(c, "finance", "Transfer", err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	f, err := queryFilter(c).toFilter()
	if err != nil {
		ledger.WriteError(c, "finance", "ListTransactions", err)
		return
	}

	txns, err := h.ledger.ListTransactions(c.Request.Context(), tc, f)
	if err != nil {
		ledger.WriteError(c, "finance", "ListTransactions", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"transactions": txns})
}

// GetSummary totals income and expenses over the optional ?from=&to= range.
func (h *Handler) GetSummary(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	q := filterQuery{From: c.Query("from"), To: c.Query("to"), AccountID: c.Query("account_id")}
	f, err := q.toFilter()
	if err != nil {
		ledger.WriteError(c, "finance", "GetSummary", err)
		return
	}

	txns, err := h.ledger.ListTransactions(c.Request.Context(), tc, f)
	if err != nil {
		ledger.WriteError(c, "finance", "GetSummary", err)
		return
	}
	response.Success(c, http.StatusOK, newSummary(q.From, q.To, txns))
}

func (h *Handler) Reconcile(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	reports, err := h.ledger.Reconcile(c.Request.Context(), tc)
	if err != nil {
		ledger.WriteError(c, "finance", "Reconcile", err)
		return
	}

	balanced := true
	for _, r := range reports {
		if !r.Balanced() {
			balanced = false
			break
		}
	}
	response.Success(c, http.StatusOK, gin.H{
		"balanced": balanced,
		"accounts": reports,
	})
}

// Export streams the ledger as an xlsx workbook. It takes the same filters
// as the transaction listing, without paging.
func (h *Handler) Export(c *gin.Context) {
	tc, ok := middleware.Tenant(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Tenant context is missing")
		return
	}

	q := queryFilter(c)
	q.Limit, q.Offset = "", ""
	f, err := q.toFilter()
	if err != nil {
		ledger.WriteError(c, "finance", "Export", err)
		return
	}

	ctx := c.Request.Context()
	accounts, err := h.ledger.ListAccounts(ctx, tc)
	if err != nil {
		ledger.WriteError(c, "finance", "Export", err)
		return
	}
	txns, err := h.ledger.ListTransactions(ctx, tc, f)
	if err != nil {
		ledger.WriteError(c, "finance", "Export", err)
		return
	}

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, accounts, txns); err != nil {
		ledger.WriteError(c, "finance", "Export", err)
		return
	}

	filename := fmt.Sprintf("ledger_%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func queryFilter(c *gin.Context) filterQuery {
	return filterQuery{
		AccountID: c.Query("account_id"),
		BookingID: c.Query("booking_id"),
		Kind:      c.Query("kind"),
		From:      c.Query("from"),
		To:        c.Query("to"),
		Limit:     c.Query("limit"),
		Offset:    c.Query("offset"),
	}
}
