package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/event"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

type refundFixture struct {
	refunds  *fakeRefundRepo
	ledger   *fakeLedgerRepo
	orders   *fakeOrderRepo
	outbox   *fakeOutboxRepo
	bus      *recordingBus
	recorder *recordingRecorder
	logger   *mockLogger
	svc      RefundService
}

func newRefundFixture(rows ...*entity.RefundRequest) *refundFixture {
	f := &refundFixture{
		refunds: newFakeRefundRepo(rows...),
		ledger:  &fakeLedgerRepo{},
		orders: &fakeOrderRepo{orders: map[int64]*entity.Order{
			10: {ID: 10, CustomerName: "Ada", CustomerEmail: "ada@example.com"},
			11: {ID: 11, CustomerName: "Bob"},
		}},
		outbox:   &fakeOutboxRepo{},
		bus:      &recordingBus{},
		recorder: &recordingRecorder{},
		logger:   &mockLogger{},
	}
	tx := &mockTxManager{}
	notifier := NewNotificationService(f.outbox, tx, f.logger)
	f.svc = NewRefundService(f.refunds, f.ledger, f.orders, notifier, tx, f.logger,
		WithEventBus(f.bus), WithRecorder(f.recorder))
	return f
}

func pendingRefund(id, orderID, amount int64) *entity.RefundRequest {
	return &entity.RefundRequest{
		ID:           id,
		OrderID:      orderID,
		OrderItemIDs: []int64{1},
		Reason:       "broken",
		AmountCents:  amount,
		Status:       workflow.RefundPending,
	}
}

func TestRefundService_ResolveRefund_ApproveThenRepeat(t *testing.T) {
	f := newRefundFixture(pendingRefund(1, 10, 5000))

	refund, err := f.svc.ResolveRefund(context.Background(), testActor, 1, ActionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.RefundApproved, refund.Status)

	entries, err := f.svc.Ledger(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.LedgerActionApproved, entries[0].Action)
	assert.Equal(t, int64(5000), entries[0].AmountCents)
	assert.Equal(t, testActor.ID, entries[0].ActorID)

	_, err = f.svc.ResolveRefund(context.Background(), testActor, 1, ActionApprove, nil)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, 1, f.ledger.count())
	assert.Equal(t, workflow.RefundApproved, f.refunds.get(1).Status)
}

func TestRefundService_ResolveRefund(t *testing.T) {
	tests := []struct {
		name         string
		refund       *entity.RefundRequest
		action       RefundAction
		description  *string
		wantErr      error
		wantStatus   workflow.RefundStatus
		wantAction   string
		wantTemplate []string
	}{
		{
			name:         "approve notifies customer",
			refund:       pendingRefund(1, 10, 1250),
			action:       ActionApprove,
			wantStatus:   workflow.RefundApproved,
			wantAction:   entity.LedgerActionApproved,
			wantTemplate: []string{entity.TemplateRefundApproved},
		},
		{
			name:         "reject overwrites description",
			refund:       pendingRefund(1, 10, 1250),
			action:       ActionReject,
			description:  strPtr("outside return window"),
			wantStatus:   workflow.RefundDenied,
			wantAction:   entity.LedgerActionRejected,
			wantTemplate: []string{entity.TemplateRefundDenied},
		},
		{
			name:         "order without email skips notification",
			refund:       pendingRefund(1, 11, 300),
			action:       ActionApprove,
			wantStatus:   workflow.RefundApproved,
			wantAction:   entity.LedgerActionApproved,
			wantTemplate: []string{},
		},
		{
			name:    "denied refund is immutable",
			refund:  &entity.RefundRequest{ID: 1, OrderID: 10, Status: workflow.RefundDenied},
			action:  ActionApprove,
			wantErr: ErrAlreadyProcessed,
		},
		{
			name:    "unknown action",
			refund:  pendingRefund(1, 10, 100),
			action:  RefundAction("maybe"),
			wantErr: ErrInvalidAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRefundFixture(tt.refund)

			refund, err := f.svc.ResolveRefund(context.Background(), testActor, 1, tt.action, tt.description)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, refund)
				assert.Equal(t, 0, f.ledger.count())
				assert.Equal(t, 0, f.refunds.writes)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, refund.Status)
			if tt.description != nil {
				assert.Equal(t, *tt.description, refund.Description)
				assert.Equal(t, *tt.description, f.refunds.get(1).Description)
			}

			require.Equal(t, 1, f.ledger.count())
			assert.Equal(t, tt.wantAction, f.ledger.entries[0].Action)
			assert.Equal(t, tt.refund.AmountCents, f.ledger.entries[0].AmountCents)
			assert.ElementsMatch(t, tt.wantTemplate, f.outbox.templates())
			assert.Equal(t, []event.Type{refundEventType(tt.wantStatus)}, f.bus.types())
		})
	}
}

func TestRefundService_ResolveRefund_NotFound(t *testing.T) {
	f := newRefundFixture()

	_, err := f.svc.ResolveRefund(context.Background(), testActor, 99, ActionApprove, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefundService_ResolveRefund_RequiresActor(t *testing.T) {
	f := newRefundFixture(pendingRefund(1, 10, 100))

	_, err := f.svc.ResolveRefund(context.Background(), entity.Actor{}, 1, ActionApprove, nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, workflow.RefundPending, f.refunds.get(1).Status)
}

func TestRefundService_NotificationFailureDoesNotBlockTransition(t *testing.T) {
	f := newRefundFixture(pendingRefund(1, 10, 700))
	f.outbox.enqueueErr = errors.New("disk full")

	refund, err := f.svc.ResolveRefund(context.Background(), testActor, 1, ActionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.RefundApproved, refund.Status)
	assert.Equal(t, 1, f.ledger.count())
	assert.Contains(t, f.logger.errors, "Failed to enqueue notification")
}

func TestRefundService_LedgerFailureAbortsTransition(t *testing.T) {
	f := newRefundFixture(pendingRefund(1, 10, 700))
	f.ledger.appendErr = errors.New("disk I/O error")

	_, err := f.svc.ResolveRefund(context.Background(), testActor, 1, ActionApprove, nil)
	require.Error(t, err)
	assert.Contains(t, f.recorder.rejected, "refund:error")
}

func TestRefundService_HandleRefundEvent(t *testing.T) {
	t.Run("denied event", func(t *testing.T) {
		f := newRefundFixture(pendingRefund(1, 10, 900))
		evt := event.NewEvent(event.TypeRefundDenied, 1, entity.Actor{ID: "bot", Role: "automation"},
			map[string]interface{}{event.PayloadDescription: "fraud check"})

		require.NoError(t, f.svc.HandleRefundEvent(context.Background(), evt))

		got := f.refunds.get(1)
		assert.Equal(t, workflow.RefundDenied, got.Status)
		assert.Equal(t, "fraud check", got.Description)
		require.Equal(t, 1, f.ledger.count())
		assert.Equal(t, entity.LedgerActionRejected, f.ledger.entries[0].Action)
		assert.Equal(t, evt.ID, f.ledger.entries[0].EventID)
		assert.Equal(t, "bot", f.ledger.entries[0].ActorID)
	})

	t.Run("event without actor is attributed to system", func(t *testing.T) {
		f := newRefundFixture(pendingRefund(1, 10, 900))
		evt := event.NewEvent(event.TypeRefundApproved, 1, entity.Actor{}, nil)

		require.NoError(t, f.svc.HandleRefundEvent(context.Background(), evt))
		assert.Equal(t, entity.System.ID, f.ledger.entries[0].ActorID)
	})

	t.Run("terminal refund", func(t *testing.T) {
		f := newRefundFixture(&entity.RefundRequest{ID: 1, OrderID: 10, Status: workflow.RefundApproved})
		evt := event.NewEvent(event.TypeRefundDenied, 1, testActor, nil)

		assert.ErrorIs(t, f.svc.HandleRefundEvent(context.Background(), evt), ErrAlreadyProcessed)
	})

	t.Run("unrelated event type", func(t *testing.T) {
		f := newRefundFixture(pendingRefund(1, 10, 900))
		evt := event.NewEvent(event.TypeShipmentStatusChanged, 1, testActor, nil)

		assert.ErrorIs(t, f.svc.HandleRefundEvent(context.Background(), evt), ErrInvalidAction)
	})

	t.Run("echo of direct call is ignored", func(t *testing.T) {
		f := newRefundFixture(pendingRefund(1, 10, 900))
		evt := event.NewEvent(event.TypeRefundApproved, 1, testActor,
			map[string]interface{}{event.PayloadSource: event.SourceDirect})

		require.NoError(t, f.svc.HandleRefundEvent(context.Background(), evt))
		assert.Equal(t, workflow.RefundPending, f.refunds.get(1).Status)
	})
}

func TestRefundService_ConcurrentResolveExactlyOneWins(t *testing.T) {
	f := newRefundFixture(pendingRefund(1, 10, 5000))

	// Both callers read version 0 before either writes.
	var ready sync.WaitGroup
	ready.Add(2)
	f.refunds.afterGet = func() {
		ready.Done()
		ready.Wait()
	}

	actions := []RefundAction{ActionApprove, ActionReject}
	errs := make([]error, len(actions))
	var wg sync.WaitGroup
	for i, action := range actions {
		wg.Add(1)
		go func(i int, action RefundAction) {
			defer wg.Done()
			_, errs[i] = f.svc.ResolveRefund(context.Background(), testActor, 1, action, nil)
		}(i, action)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, f.ledger.count())
	assert.Equal(t, int64(1), f.refunds.get(1).Version)
}

func TestRefundService_OpenRefundRequest(t *testing.T) {
	f := newRefundFixture()

	refund, err := f.svc.OpenRefundRequest(context.Background(), testActor, OpenRefundInput{
		OrderID:      10,
		OrderItemIDs: []int64{3, 4},
		Reason:       "arrived broken",
		AmountCents:  4200,
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.RefundPending, refund.Status)
	assert.NotZero(t, refund.ID)
	assert.Equal(t, []string{entity.TemplateRefundReceived}, f.outbox.templates())

	_, err = f.svc.OpenRefundRequest(context.Background(), testActor, OpenRefundInput{OrderID: 10, Reason: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.OpenRefundRequest(context.Background(), testActor, OpenRefundInput{OrderID: 77, OrderItemIDs: []int64{1}, Reason: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseRefundAction(t *testing.T) {
	a, err := ParseRefundAction(" Approve ")
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, a)

	_, err = ParseRefundAction("")
	assert.ErrorIs(t, err, ErrInvalidAction)

	a, err = RefundActionFromFlags(false, true)
	require.NoError(t, err)
	assert.Equal(t, ActionReject, a)

	_, err = RefundActionFromFlags(true, true)
	assert.ErrorIs(t, err, ErrInvalidAction)
	_, err = RefundActionFromFlags(false, false)
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestResolveRefundRequestAction(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		approve bool
		reject  bool
		want    RefundAction
		wantErr bool
	}{
		{"named only", "reject", false, false, ActionReject, false},
		{"flag only", "", true, false, ActionApprove, false},
		{"named and agreeing flag", "approve", true, false, ActionApprove, false},
		{"named approve with reject flag", "approve", false, true, "", true},
		{"named reject with approve flag", "reject", true, false, "", true},
		{"named with both flags", "approve", true, true, "", true},
		{"nothing", "", false, false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRefundRequestAction(tt.action, tt.approve, tt.reject)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
