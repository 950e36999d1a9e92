package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/order-resolution/internal/application/service"
)

// CreateIncidentRequest is the body of POST /api/incidents
type CreateIncidentRequest struct {
	EmployeeID  int64  `json:"employee_id" binding:"required"`
	Description string `json:"description"`
	CostCents   int64  `json:"cost_cents"`
	Date        string `json:"date" binding:"required"`
	Status      string `json:"status"`
}

// UpdateIncidentRequest is the body of PATCH /api/incidents/:id
type UpdateIncidentRequest struct {
	Description *string `json:"description"`
	CostCents   *int64  `json:"cost_cents"`
	Date        *string `json:"date"`
	Status      *string `json:"status"`
	PaidAll     *bool   `json:"paid_all"`
}

// CreateReimbursementRequest is the body of POST /api/incidents/:id/reimbursements
type CreateReimbursementRequest struct {
	Description         string  `json:"description"`
	AmountApprovedCents *int64  `json:"amount_approved_cents"`
	Response            *string `json:"response"`
}

// UpdateReimbursementRequest is the body of PATCH /api/reimbursements/:id
type UpdateReimbursementRequest struct {
	Description         *string `json:"description"`
	Response            *string `json:"response"`
	AmountApprovedCents *int64  `json:"amount_approved_cents"`
	Status              *string `json:"status"`
	PaidAll             *bool   `json:"paid_all"`
}

// MarkAddressedRequest is the body of POST /api/payroll/mark-addressed
type MarkAddressedRequest struct {
	IncidentIDs      []int64 `json:"incident_ids"`
	ReimbursementIDs []int64 `json:"reimbursement_ids"`
}

// ListQuery holds paging parameters
type ListQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// CreateIncident handles POST /api/incidents
func (h *Handlers) CreateIncident(c *gin.Context) {
	var req CreateIncidentRequest
	if !bindJSON(c, &req) {
		return
	}
	date, valid := parseDate(c, "date", req.Date)
	if !valid {
		return
	}
	incident, err := h.deps.Finance.CreateIncident(c.Request.Context(), actorFrom(c), service.CreateIncidentInput{
		EmployeeID:  req.EmployeeID,
		Description: req.Description,
		CostCents:   req.CostCents,
		Date:        date,
		Status:      req.Status,
	})
	if err != nil {
		h.writeError(c, "create incident", err)
		return
	}
	ok(c, http.StatusCreated, incident)
}

// ListIncidents handles GET /api/incidents
func (h *Handlers) ListIncidents(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	incidents, err := h.deps.Finance.ListIncidents(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		h.writeError(c, "list incidents", err)
		return
	}
	ok(c, http.StatusOK, incidents)
}

// GetIncident handles GET /api/incidents/:id
func (h *Handlers) GetIncident(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	incident, err := h.deps.Finance.GetIncident(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get incident", err)
		return
	}
	ok(c, http.StatusOK, incident)
}

// UpdateIncident handles PATCH /api/incidents/:id
func (h *Handlers) UpdateIncident(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req UpdateIncidentRequest
	if !bindJSON(c, &req) {
		return
	}

	upd := service.IncidentUpdate{
		Description: req.Description,
		CostCents:   req.CostCents,
		Status:      req.Status,
		PaidAll:     req.PaidAll,
	}
	if req.Date != nil {
		var date time.Time
		if date, valid = parseDate(c, "date", *req.Date); !valid {
			return
		}
		upd.Date = &date
	}

	incident, err := h.deps.Finance.UpdateIncident(c.Request.Context(), actorFrom(c), id, upd)
	if err != nil {
		h.writeError(c, "update incident", err)
		return
	}
	ok(c, http.StatusOK, incident)
}

// DeleteIncident handles DELETE /api/incidents/:id?confirm=true
func (h *Handlers) DeleteIncident(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	deleted, err := h.deps.Finance.DeleteIncident(c.Request.Context(), actorFrom(c), id, c.Query("confirm") == "true")
	if err != nil {
		h.writeError(c, "delete incident", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": deleted})
}

// CreateReimbursement handles POST /api/incidents/:id/reimbursements
func (h *Handlers) CreateReimbursement(c *gin.Context) {
	incidentID, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req CreateReimbursementRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.deps.Finance.CreateReimbursement(c.Request.Context(), actorFrom(c), incidentID, service.CreateReimbursementInput{
		Description:         req.Description,
		AmountApprovedCents: req.AmountApprovedCents,
		Response:            req.Response,
	})
	if err != nil {
		h.writeError(c, "create reimbursement", err)
		return
	}
	ok(c, http.StatusCreated, r)
}

// ListReimbursements handles GET /api/incidents/:id/reimbursements
func (h *Handlers) ListReimbursements(c *gin.Context) {
	incidentID, valid := idParam(c, "id")
	if !valid {
		return
	}
	rs, err := h.deps.Finance.ListReimbursements(c.Request.Context(), incidentID)
	if err != nil {
		h.writeError(c, "list reimbursements", err)
		return
	}
	ok(c, http.StatusOK, rs)
}

// GetReimbursement handles GET /api/reimbursements/:id
func (h *Handlers) GetReimbursement(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	r, err := h.deps.Finance.GetReimbursement(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get reimbursement", err)
		return
	}
	ok(c, http.StatusOK, r)
}

// UpdateReimbursement handles PATCH /api/reimbursements/:id
func (h *Handlers) UpdateReimbursement(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req UpdateReimbursementRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.deps.Finance.UpdateReimbursement(c.Request.Context(), actorFrom(c), id, service.ReimbursementUpdate{
		Description:         req.Description,
		Response:            req.Response,
		AmountApprovedCents: req.AmountApprovedCents,
		Status:              req.Status,
		PaidAll:             req.PaidAll,
	})
	if err != nil {
		h.writeError(c, "update reimbursement", err)
		return
	}
	ok(c, http.StatusOK, r)
}

// DeleteReimbursement handles DELETE /api/reimbursements/:id?confirm=true
func (h *Handlers) DeleteReimbursement(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	deleted, err := h.deps.Finance.DeleteReimbursement(c.Request.Context(), actorFrom(c), id, c.Query("confirm") == "true")
	if err != nil {
		h.writeError(c, "delete reimbursement", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": deleted})
}

// CalculatePayment handles GET /api/employees/:id/payment?start=&end=
func (h *Handlers) CalculatePayment(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	start, end, valid := periodQuery(c)
	if !valid {
		return
	}
	summary, err := h.deps.Finance.CalculateTotalPayment(c.Request.Context(), id, start, end)
	if err != nil {
		h.writeError(c, "calculate payment", err)
		return
	}
	ok(c, http.StatusOK, summary)
}

// MarkAddressed handles POST /api/payroll/mark-addressed
func (h *Handlers) MarkAddressed(c *gin.Context) {
	var req MarkAddressedRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.deps.Finance.MarkAddressed(c.Request.Context(), actorFrom(c), req.IncidentIDs, req.ReimbursementIDs)
	if err != nil {
		h.writeError(c, "mark addressed", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"updated": n})
}
