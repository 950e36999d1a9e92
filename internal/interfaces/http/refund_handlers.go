package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/order-resolution/internal/application/service"
)

// OpenRefundRequest is the body of POST /api/refunds
type OpenRefundRequest struct {
	OrderID      int64   `json:"order_id" binding:"required"`
	OrderItemIDs []int64 `json:"order_item_ids" binding:"required,min=1"`
	Reason       string  `json:"reason" binding:"required"`
	Description  string  `json:"description"`
	AmountCents  int64   `json:"amount_cents" binding:"min=0"`
}

// ResolveRefundRequest is the body of POST /api/refunds/:id/resolve. Either
// action or exactly one of the approve/reject flags is given.
type ResolveRefundRequest struct {
	Action      string  `json:"action" binding:"omitempty,oneof=approve reject APPROVE REJECT"`
	Approve     bool    `json:"approve"`
	Reject      bool    `json:"reject"`
	Description *string `json:"description"`
}

// OpenRefund handles POST /api/refunds
func (h *Handlers) OpenRefund(c *gin.Context) {
	var req OpenRefundRequest
	if !bindJSON(c, &req) {
		return
	}

	refund, err := h.deps.Refunds.OpenRefundRequest(c.Request.Context(), actorFrom(c), service.OpenRefundInput{
		OrderID:      req.OrderID,
		OrderItemIDs: req.OrderItemIDs,
		Reason:       req.Reason,
		Description:  req.Description,
		AmountCents:  req.AmountCents,
	})
	if err != nil {
		h.writeError(c, "open refund", err)
		return
	}
	ok(c, http.StatusCreated, refund)
}

// GetRefund handles GET /api/refunds/:id
func (h *Handlers) GetRefund(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	refund, err := h.deps.Refunds.GetRefund(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get refund", err)
		return
	}
	ok(c, http.StatusOK, refund)
}

// ResolveRefund handles POST /api/refunds/:id/resolve
func (h *Handlers) ResolveRefund(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req ResolveRefundRequest
	if !bindJSON(c, &req) {
		return
	}

	action, err := service.ResolveRefundRequestAction(req.Action, req.Approve, req.Reject)
	if err != nil {
		h.writeError(c, "resolve refund", err)
		return
	}

	refund, err := h.deps.Refunds.ResolveRefund(c.Request.Context(), actorFrom(c), id, action, req.Description)
	if err != nil {
		h.writeError(c, "resolve refund", err)
		return
	}
	ok(c, http.StatusOK, refund)
}

// GetRefundLedger handles GET /api/refunds/:id/ledger
func (h *Handlers) GetRefundLedger(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	entries, err := h.deps.Refunds.Ledger(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "refund ledger", err)
		return
	}
	ok(c, http.StatusOK, entries)
}
