package customers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexentia/backend/internal/audit"
	"github.com/nexentia/backend/internal/authctx"
	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/response"
)

// CustomerRequest is the body for POST /customers and PUT /customers/:id.
type CustomerRequest struct {
	Name  string   `json:"name" binding:"required,min=1"`
	Email string   `json:"email" binding:"omitempty,email"`
	Phone string   `json:"phone"`
	Tags  []string `json:"tags" binding:"omitempty,max=12"`
}

// Handler handles customer HTTP endpoints.
type Handler struct {
	repo   *Repository
	audit  *audit.Recorder
	logger *zap.Logger
}

// NewHandler creates a customers handler.
func NewHandler(repo *Repository, recorder *audit.Recorder, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, audit: recorder, logger: logger}
}

// List handles GET /customers. Optional ?q= filters by name fragment.
func (h *Handler) List(c *gin.Context) {
	ac, _ := authctx.From(c)
	q := strings.TrimSpace(c.Query("q"))

	list, err := h.repo.List(c.Request.Context(), ac.Org.OrganizationID, q)
	if err != nil {
		h.logger.Error("list customers", zap.Error(err))
		response.Internal(c, "list_failed")
		return
	}
	if list == nil {
		list = []models.Customer{}
	}
	response.OK(c, list)
}

// Create handles POST /customers.
func (h *Handler) Create(c *gin.Context) {
	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidBody(c, err.Error())
		return
	}
	ac, _ := authctx.From(c)

	cu := &models.Customer{
		OrganizationID: ac.Org.OrganizationID,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Tags:           req.Tags,
	}
	if err := h.repo.Create(c.Request.Context(), cu); err != nil {
		h.logger.Error("create customer", zap.Error(err))
		response.Internal(c, "create_failed")
		return
	}

	h.audit.Record(c, audit.Entry{Action: "customer.create", EntityType: "Customer", EntityID: cu.ID.String(), After: cu})
	response.Created(c, cu)
}

// Update handles PUT /customers/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "not_found")
		return
	}
	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidBody(c, err.Error())
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

	updated := *before
	updated.Name = req.Name
	updated.Email = req.Email
	updated.Phone = req.Phone
	updated.Tags = req.Tags
	if err := h.repo.Update(c.Request.Context(), &updated); err != nil {
		h.logger.Error("update customer", zap.Error(err))
		response.Internal(c, "update_failed")
		return
	}

	h.audit.Record(c, audit.Entry{Action: "customer.update", EntityType: "Customer", EntityID: id.String(), Before: before, After: &updated})
	response.OK(c, &updated)
}

// Delete handles DELETE /customers/:id. Customers referenced by invoices
// cannot be deleted.
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

	linked, err := h.repo.HasInvoices(c.Request.Context(), ac.Org.OrganizationID, id)
	if err != nil {
		response.Internal(c, "lookup_failed")
		return
	}
	if linked {
		response.Conflict(c, "customer_linked_invoices")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), ac.Org.OrganizationID, id); err != nil {
		h.logger.Error("delete customer", zap.Error(err))
		response.Internal(c, "delete_failed")
		return
	}

	h.audit.Record(c, audit.Entry{Action: "customer.delete", EntityType: "Customer", EntityID: id.String(), Before: before})
	response.NoContent(c)
}
