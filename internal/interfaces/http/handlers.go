package http

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/service"
	"github.com/garyjia/order-resolution/internal/infrastructure/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps, logger *zap.Logger) *Handlers {
	return &Handlers{deps: deps, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.deps.Health != nil {
		healthy, detail := h.deps.Health()
		resp.Components = detail
		if !healthy {
			resp.Status = "degraded"
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp})
			return
		}
	}
	ok(c, http.StatusOK, resp)
}

// ExportLedger handles GET /api/exports/ledger.xlsx
func (h *Handlers) ExportLedger(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.deps.Exporter.Export(c.Request.Context(), &buf); err != nil {
		h.writeError(c, "export ledger", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="ledger.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ExportPayroll handles GET /api/exports/payroll.xlsx?employee_ids=1,2&start=&end=
func (h *Handlers) ExportPayroll(c *gin.Context) {
	start, end, valid := periodQuery(c)
	if !valid {
		return
	}

	var ids []int64
	for _, raw := range strings.Split(c.Query("employee_ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			fail(c, http.StatusBadRequest, "invalid employee id "+raw)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		fail(c, http.StatusBadRequest, "employee_ids is required")
		return
	}

	summaries := make([]*service.PaymentSummary, 0, len(ids))
	for _, id := range ids {
		s, err := h.deps.Finance.CalculateTotalPayment(c.Request.Context(), id, start, end)
		if err != nil {
			h.writeError(c, "calculate payment", err)
			return
		}
		summaries = append(summaries, s)
	}

	var buf bytes.Buffer
	if err := export.WritePayroll(&buf, summaries); err != nil {
		h.writeError(c, "export payroll", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="payroll.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func periodQuery(c *gin.Context) (time.Time, time.Time, bool) {
	start, valid := parseDate(c, "start", c.Query("start"))
	if !valid {
		return time.Time{}, time.Time{}, false
	}
	end, valid := parseDate(c, "end", c.Query("end"))
	if !valid {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
