package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(Templates...)
	require.NoError(t, err)
	return r
}

func TestRenderer_RendersEveryTemplate(t *testing.T) {
	r := newRenderer(t)
	data := map[string]interface{}{
		"customer_name": "Ada",
		"seller_name":   "Acme",
		"order_id":      10,
		"refund_id":     7,
		"shipment_id":   9,
		"issue_type":    "seller_fault",
		"amount":        "20.00",
		"description":   "<b>box crushed</b>",
	}

	for _, name := range Templates {
		t.Run(name, func(t *testing.T) {
			body, err := r.Render(name, "Subject line", data)
			require.NoError(t, err)
			assert.Contains(t, body, "<title>Subject line</title>")
			assert.Contains(t, body, "#10")
			assert.Contains(t, body, "&lt;b&gt;box crushed&lt;/b&gt;", "data is HTML escaped")
		})
	}
}

func TestRenderer_AmountShownForMoneyTemplates(t *testing.T) {
	r := newRenderer(t)
	body, err := r.Render(entity.TemplateSellerFaultDebit, "s", map[string]interface{}{"amount": "-20.00", "seller_name": "Acme"})
	require.NoError(t, err)
	assert.Contains(t, body, "-20.00")
	assert.Contains(t, body, "Hello Acme")
}

func TestRenderer_UnknownTemplateIsPermanent(t *testing.T) {
	_, err := newRenderer(t).Render("welcome", "s", nil)
	assert.ErrorIs(t, err, port.ErrPermanentDelivery)
}

func TestEmailSender_InvalidRecipientIsPermanent(t *testing.T) {
	s := NewEmailSender(SMTPConfig{Host: "localhost", From: "support@example.com"}, newRenderer(t), zap.NewNop())

	err := s.Send(context.Background(), "not an address", "s", entity.TemplateRefundApproved, nil)
	assert.ErrorIs(t, err, port.ErrPermanentDelivery)
}

func TestEmailSender_InvalidFromIsPermanent(t *testing.T) {
	s := NewEmailSender(SMTPConfig{Host: "localhost", From: ""}, newRenderer(t), zap.NewNop())

	err := s.Send(context.Background(), "ada@example.com", "s", entity.TemplateRefundApproved, nil)
	assert.ErrorIs(t, err, port.ErrPermanentDelivery)
}

func TestTLSPolicy(t *testing.T) {
	assert.Equal(t, mail.TLSMandatory, tlsPolicy("Mandatory"))
	assert.Equal(t, mail.NoTLS, tlsPolicy("none"))
	assert.Equal(t, mail.TLSOpportunistic, tlsPolicy(""))
}

func TestLogSender_LogsDelivery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(newRenderer(t), zap.New(core))

	err := s.Send(context.Background(), "ada@example.com", "Your Refund Request Was Approved", entity.TemplateRefundApproved,
		map[string]interface{}{"customer_name": "Ada"})
	require.NoError(t, err)

	entries := logs.FilterMessage("Notification delivered to log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ada@example.com", entries[0].ContextMap()["recipient"])

	assert.ErrorIs(t, s.Send(context.Background(), "ada@example.com", "s", "missing", nil), port.ErrPermanentDelivery)
}
