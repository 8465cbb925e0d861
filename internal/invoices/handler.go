package invoices

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexentia/backend/internal/audit"
	"github.com/nexentia/backend/internal/authctx"
	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/response"
)

const dateLayout = "2006-01-02"

// CustomerChecker verifies a customer exists within the org before an
// invoice may reference it.
type CustomerChecker interface {
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Customer, error)
}

// InvoiceRequest is the body for POST /invoices and PUT /invoices/:id.
type InvoiceRequest struct {
	CustomerID uuid.UUID            `json:"customerId" binding:"required"`
	Number     string               `json:"number" binding:"required,min=3"`
	Date       string               `json:"date" binding:"required,min=8"` // YYYY-MM-DD
	DueDate    string               `json:"dueDate"`
	TotalCents int64                `json:"totalCents" binding:"required,gt=0"`
	Currency   string               `json:"currency" binding:"omitempty,len=3"`
	Status     models.InvoiceStatus `json:"status"`
}

// Handler handles invoice HTTP endpoints.
type Handler struct {
	repo      *Repository
	customers CustomerChecker
	audit     *audit.Recorder
	logger    *zap.Logger
}

// NewHandler creates an invoices handler.
func NewHandler(repo *Repository, customers CustomerChecker, recorder *audit.Recorder, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, customers: customers, audit: recorder, logger: logger}
}

// List handles GET /invoices.
func (h *Handler) List(c *gin.Context) {
	ac, _ := authctx.From(c)
	list, err := h.repo.List(c.Request.Context(), ac.Org.OrganizationID)
	if err != nil {
		h.logger.Error("list invoices", zap.Error(err))
		response.Internal(c, "list_failed")
		return
	}
	if list == nil {
		list = []models.InvoiceWithCustomer{}
	}
	response.OK(c, list)
}

// Create handles POST /invoices.
func (h *Handler) Create(c *gin.Context) {
	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidBody(c, err.Error())
		return
	}
	ac, _ := authctx.From(c)

	date, dueDate, ok := parseDates(c, req)
	if !ok {
		return
	}
	if req.Status != "" && !models.ValidInvoiceStatus(req.Status) {
		response.InvalidBody(c, "unknown status")
		return
	}

	cust, err := h.customers.Get(c.Request.Context(), ac.Org.OrganizationID, req.CustomerID)
	if err != nil {
		response.Internal(c, "lookup_failed")
		return
	}
	if cust == nil {
		response.NotFound(c, "customer_not_found")
		return
	}

	inv := &models.Invoice{
		OrganizationID: ac.Org.OrganizationID,
		CustomerID:     req.CustomerID,
		Number:         req.Number,
		Date:           date,
		DueDate:        dueDate,
		TotalCents:     req.TotalCents,
		Currency:       defaultString(req.Currency, "EUR"),
		Status:         defaultStatus(req.Status, models.InvoiceSent),
	}
	if err := h.repo.Create(c.Request.Context(), inv); err != nil {
		if errors.Is(err, ErrNumberConflict) {
			response.Conflict(c, "invoice_number_conflict")
			return
		}
		h.logger.Error("create invoice", zap.Error(err))
		response.Internal(c, "create_failed")
		return
	}

	h.audit.Record(c, audit.Entry{Action: "invoice.create", EntityType: "Invoice", EntityID: inv.ID.String(), After: inv})
	response.Created(c, inv)
}

// Update handles PUT /invoices/:id. The invoice number is locked: whatever
// the body says, the stored number stays.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "not_found")
		return
	}
	ac, _ := authctx.From(c)

	before, err := h.repo.Get(c.Request.Context(), ac.Org.OrganizationID, id)
	if err != nil {
		response.Internal(c, "lookup_failed")
		return
	}
	if before == nil {
		response.NotFound(c, "not_found")
		return
	}

	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidBody(c, err.Error())
		return
	}
	date, dueDate, ok := parseDates(c, req)
	if !ok {
		return
	}
	if req.Status != "" && !models.ValidInvoiceStatus(req.Status) {
		response.InvalidBody(c, "unknown status")
		return
	}

	updated := *before
	updated.CustomerID = req.CustomerID
	updated.Date = date
	updated.DueDate = dueDate
	updated.TotalCents = req.TotalCents
	updated.Currency = defaultString(req.Currency, "EUR")
	updated.Status = defaultStatus(req.Status, before.Status)
	if err := h.repo.Update(c.Request.Context(), &updated); err != nil {
		h.logger.Error("update invoice", zap.Error(err))
		response.Internal(c, "update_failed")
		return
	}

	h.audit.Record(c, audit.Entry{Action: "invoice.update", EntityType: "Invoice", EntityID: id.String(), Before: before, After: &updated})
	response.OK(c, &updated)
}

// MarkPaid handles POST /invoices/:id/mark-paid.
func (h *Handler) MarkPaid(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "not_found")
		return
	}
	ac, _ := authctx.From(c)

	before, err := h.repo.Get(c.Request.Context(), ac.Org.OrganizationID, id)
	if err != nil {
		response.Internal(c, "lookup_failed")
		return
	}
	if before == nil {
		response.NotFound(c, "not_found")
		return
	}

	updated, err := h.repo.SetStatus(c.Request.Context(), ac.Org.OrganizationID, id, models.InvoicePaid)
	if err != nil || updated == nil {
		h.logger.Error("mark invoice paid", zap.Error(err))
		response.Internal(c, "update_failed")
		return
	}

	h.audit.Record(c, audit.Entry{Action: "invoice.mark_paid", EntityType: "Invoice", EntityID: id.String(), Before: before, After: updated})
	response.OK(c, updated)
}

// Delete handles DELETE /invoices/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "not_found")
		return
	}
	ac, _ := authctx.From(c)

	before, err := h.repo.Get(c.Request.Context(), ac.Org.OrganizationID, id)
	if err != nil {
		response.Internal(c, "lookup_failed")
		return
	}
	if before == nil {
		response.NotFound(c, "not_found")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), ac.Org.OrganizationID, id); err != nil {
		h.logger.Error("delete invoice", zap.Error(err))
		response.Internal(c, "delete_failed")
		return
	}

	h.audit.Record(c, audit.Entry{Action: "invoice.delete", EntityType: "Invoice", EntityID: id.String(), Before: before})
	response.NoContent(c)
}

func parseDates(c *gin.Context, req InvoiceRequest) (time.Time, *time.Time, bool) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		response.InvalidBody(c, "date must be YYYY-MM-DD")
		return time.Time{}, nil, false
	}
	var dueDate *time.Time
	if req.DueDate != "" {
		d, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			response.InvalidBody(c, "dueDate must be YYYY-MM-DD")
			return time.Time{}, nil, false
		}
		dueDate = &d
	}
	return date, dueDate, true
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func defaultStatus(s, fallback models.InvoiceStatus) models.InvoiceStatus {
	if s == "" {
		return fallback
	}
	return s
}
