package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/order-resolution/internal/application/service"
)

// ReportIssueRequest is the body of POST /api/shipment-issues
type ReportIssueRequest struct {
	ShipmentID  int64  `json:"shipment_id" binding:"required"`
	IssueType   string `json:"issue_type" binding:"required"`
	Description string `json:"description"`
}

// ResolveIssueRequest is the body of POST /api/shipment-issues/:id/resolve
type ResolveIssueRequest struct {
	IssueType      *string `json:"issue_type"`
	Description    *string `json:"description"`
	AssignedTo     *string `json:"assigned_to"`
	ItemValueCents int64   `json:"item_value_cents"`
}

// BatchEditRequest is the body of the shipment item and event batch routes
type BatchEditRequest struct {
	Edits []service.StatusEdit `json:"edits" binding:"required,min=1"`
}

// ReportShipmentIssue handles POST /api/shipment-issues
func (h *Handlers) ReportShipmentIssue(c *gin.Context) {
	var req ReportIssueRequest
	if !bindJSON(c, &req) {
		return
	}
	issue, err := h.deps.Issues.ReportShipmentIssue(c.Request.Context(), actorFrom(c), service.ReportIssueInput{
		ShipmentID:  req.ShipmentID,
		IssueType:   req.IssueType,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(c, "report shipment issue", err)
		return
	}
	ok(c, http.StatusCreated, issue)
}

// GetShipmentIssue handles GET /api/shipment-issues/:id
func (h *Handlers) GetShipmentIssue(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	issue, err := h.deps.Issues.GetShipmentIssue(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get shipment issue", err)
		return
	}
	ok(c, http.StatusOK, issue)
}

// ResolveShipmentIssue handles POST /api/shipment-issues/:id/resolve
func (h *Handlers) ResolveShipmentIssue(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req ResolveIssueRequest
	if !bindJSON(c, &req) {
		return
	}
	issue, err := h.deps.Issues.ResolveShipmentIssue(c.Request.Context(), actorFrom(c), id, service.IssueResolutionInput{
		IssueType:      req.IssueType,
		Description:    req.Description,
		AssignedTo:     req.AssignedTo,
		ItemValueCents: req.ItemValueCents,
	})
	if err != nil {
		h.writeError(c, "resolve shipment issue", err)
		return
	}
	ok(c, http.StatusOK, issue)
}

// ListSellerExpenses handles GET /api/orders/:id/seller-expenses
func (h *Handlers) ListSellerExpenses(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	expenses, err := h.deps.Issues.ListSellerExpenses(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "list seller expenses", err)
		return
	}
	ok(c, http.StatusOK, expenses)
}

// EditShipmentItems handles PATCH /api/shipments/:id/items
func (h *Handlers) EditShipmentItems(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req BatchEditRequest
	if !bindJSON(c, &req) {
		return
	}
	items, err := h.deps.Shipments.EditShipmentItems(c.Request.Context(), actorFrom(c), id, req.Edits)
	if err != nil {
		h.writeError(c, "edit shipment items", err)
		return
	}
	ok(c, http.StatusOK, items)
}

// EditShipmentEvents handles PATCH /api/shipments/:id/events
func (h *Handlers) EditShipmentEvents(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req BatchEditRequest
	if !bindJSON(c, &req) {
		return
	}
	events, err := h.deps.Shipments.EditShipmentEvents(c.Request.Context(), actorFrom(c), id, req.Edits)
	if err != nil {
		h.writeError(c, "edit shipment events", err)
		return
	}
	ok(c, http.StatusOK, events)
}
