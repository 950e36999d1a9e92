package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
	"github.com/garyjia/order-resolution/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/order-resolution/migrations"
	"github.com/garyjia/order-resolution/pkg/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "resolution.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, zap.NewNop()).RunMigrationsFS(migrations.FS))
	return db.DB
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err)
}

func seedOrderAndShipment(t *testing.T, db *sql.DB) {
	t.Helper()
	mustExec(t, db, `INSERT INTO orders (id, customer_name, customer_email) VALUES (10, 'Ada', 'ada@example.com')`)
	mustExec(t, db, `INSERT INTO shipments (id, order_id, seller_name, seller_email) VALUES (9, 10, 'Acme', 'acme@example.com')`)
}

func TestRefundRepository_CreateGetUpdate(t *testing.T) {
	db := newTestDB(t)
	seedOrderAndShipment(t, db)
	repo := NewRefundRepository(db, zap.NewNop())
	ctx := context.Background()

	refund := &entity.RefundRequest{OrderID: 10, OrderItemIDs: []int64{1, 2}, Reason: "damaged", AmountCents: 2500}
	require.NoError(t, repo.Create(ctx, refund))
	assert.NotZero(t, refund.ID)
	assert.Equal(t, workflow.RefundPending, refund.Status)

	got, err := repo.GetByID(ctx, refund.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []int64{1, 2}, got.OrderItemIDs)
	assert.Equal(t, int64(2500), got.AmountCents)
	assert.Equal(t, int64(0), got.Version)

	desc := "approved by support"
	require.NoError(t, repo.UpdateStatus(ctx, refund.ID, 0, workflow.RefundApproved, &desc))

	got, err = repo.GetByID(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RefundApproved, got.Status)
	assert.Equal(t, desc, got.Description)
	assert.Equal(t, int64(1), got.Version)

	err = repo.UpdateStatus(ctx, refund.ID, 0, workflow.RefundDenied, nil)
	assert.ErrorIs(t, err, port.ErrStaleVersion)

	missing, err := repo.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRefundRepository_ConcurrentUpdatesOnlyOneWins(t *testing.T) {
	db := newTestDB(t)
	seedOrderAndShipment(t, db)
	repo := NewRefundRepository(db, zap.NewNop())
	ctx := context.Background()

	refund := &entity.RefundRequest{OrderID: 10, AmountCents: 100}
	require.NoError(t, repo.Create(ctx, refund))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		stales int
	)
	for _, status := range []workflow.RefundStatus{workflow.RefundApproved, workflow.RefundDenied} {
		wg.Add(1)
		go func(s workflow.RefundStatus) {
			defer wg.Done()
			err := repo.UpdateStatus(ctx, refund.ID, 0, s, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, port.ErrStaleVersion):
				stales++
			}
		}(status)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, stales)
}

func TestRefundLedgerRepository_AppendOnly(t *testing.T) {
	db := newTestDB(t)
	seedOrderAndShipment(t, db)
	refunds := NewRefundRepository(db, zap.NewNop())
	ledger := NewRefundLedgerRepository(db, zap.NewNop())
	ctx := context.Background()

	refund := &entity.RefundRequest{OrderID: 10, AmountCents: 700}
	require.NoError(t, refunds.Create(ctx, refund))

	entry := &entity.RefundLedgerEntry{
		RefundID:    refund.ID,
		Action:      entity.LedgerActionApproved,
		AmountCents: 700,
		ActorID:     "agent-1",
		ActorRole:   "support",
	}
	require.NoError(t, ledger.Append(ctx, entry))
	assert.NotZero(t, entry.ID)

	dup := &entity.RefundLedgerEntry{RefundID: refund.ID, Action: entity.LedgerActionRejected, AmountCents: 700, ActorID: "agent-2"}
	assert.Error(t, ledger.Append(ctx, dup), "a refund is decided once")

	_, err := db.Exec(`UPDATE refund_ledger SET amount_cents = 1 WHERE id = ?`, entry.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = db.Exec(`DELETE FROM refund_ledger WHERE id = ?`, entry.ID)
	require.Error(t, err)

	rows, err := ledger.ListByRefundID(ctx, refund.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(700), rows[0].AmountCents)
	assert.Equal(t, "agent-1", rows[0].ActorID)

	all, err := ledger.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTransaction_RollbackDiscardsRepositoryWrites(t *testing.T) {
	db := newTestDB(t)
	seedOrderAndShipment(t, db)
	tx := sqlite.NewTxManager(db, zap.NewNop())
	refunds := NewRefundRepository(db, zap.NewNop())
	ledger := NewRefundLedgerRepository(db, zap.NewNop())
	ctx := context.Background()

	refund := &entity.RefundRequest{OrderID: 10, AmountCents: 300}
	require.NoError(t, refunds.Create(ctx, refund))

	boom := errors.New("boom")
	err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := refunds.UpdateStatus(txCtx, refund.ID, 0, workflow.RefundApproved, nil); err != nil {
			return err
		}
		if err := ledger.Append(txCtx, &entity.RefundLedgerEntry{
			RefundID: refund.ID, Action: entity.LedgerActionApproved, AmountCents: 300, ActorID: "a",
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := refunds.GetByID(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RefundPending, got.Status)
	assert.Equal(t, int64(0), got.Version)

	rows, err := ledger.ListByRefundID(ctx, refund.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTransaction_NestedCallsShareOuterCommit(t *testing.T) {
	db := newTestDB(t)
	seedOrderAndShipment(t, db)
	tx := sqlite.NewTxManager(db, zap.NewNop())
	refunds := NewRefundRepository(db, zap.NewNop())
	ctx := context.Background()

	refund := &entity.RefundRequest{OrderID: 10, AmountCents: 300}
	require.NoError(t, refunds.Create(ctx, refund))

	boom := errors.New("boom")
	err := tx.WithTransaction(ctx, func(outer context.Context) error {
		require.NoError(t, tx.WithTransaction(outer, func(inner context.Context) error {
			return refunds.UpdateStatus(inner, refund.ID, 0, workflow.RefundApproved, nil)
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := refunds.GetByID(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RefundPending, got.Status, "inner write is undone with the outer transaction")

	require.NoError(t, tx.WithTransaction(ctx, func(outer context.Context) error {
		return tx.WithTransaction(outer, func(inner context.Context) error {
			return refunds.UpdateStatus(inner, refund.ID, 0, workflow.RefundApproved, nil)
		})
	}))
	got, err = refunds.GetByID(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RefundApproved, got.Status)
}

func TestTransaction_PanicRollsBack(t *testing.T) {
	db := newTestDB(t)
	seedOrderAndShipment(t, db)
	tx := sqlite.NewTxManager(db, zap.NewNop())
	refunds := NewRefundRepository(db, zap.NewNop())
	ctx := context.Background()

	refund := &entity.RefundRequest{OrderID: 10, AmountCents: 300}
	require.NoError(t, refunds.Create(ctx, refund))

	assert.PanicsWithValue(t, "crash", func() {
		_ = tx.WithTransaction(ctx, func(txCtx context.Context) error {
			require.NoError(t, refunds.UpdateStatus(txCtx, refund.ID, 0, workflow.RefundDenied, nil))
			panic("crash")
		})
	})

	got, err := refunds.GetByID(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RefundPending, got.Status)
	assert.Equal(t, int64(0), got.Version)
}

func TestOrderAndShipmentRepositories(t *testing.T) {
	db := newTestDB(t)
	seedOrderAndShipment(t, db)
	ctx := context.Background()

	order, err := NewOrderRepository(db, zap.NewNop()).GetByID(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, "ada@example.com", order.CustomerEmail)

	shipment, err := NewShipmentRepository(db, zap.NewNop()).GetByID(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, shipment)
	assert.Equal(t, int64(10), shipment.OrderID)
	assert.Equal(t, "acme@example.com", shipment.SellerEmail)

	none, err := NewShipmentRepository(db, zap.NewNop()).GetByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestShipmentIssueRepository_VersionedUpdate(t *testing.T) {
	db := newTestDB(t)
	seedOrderAndShipment(t, db)
	repo := NewShipmentIssueRepository(db, zap.NewNop())
	ctx := context.Background()

	issue := &entity.ShipmentIssue{ShipmentID: 9, IssueType: "damaged", Description: "box crushed"}
	require.NoError(t, repo.Create(ctx, issue))
	assert.Equal(t, workflow.IssueUnresolved, issue.Resolution)

	stale := *issue
	issue.Resolution = workflow.IssueSellerFault
	issue.AssignedTo = "ops"
	require.NoError(t, repo.Update(ctx, issue))
	assert.Equal(t, int64(1), issue.Version)

	stale.Resolution = workflow.IssueShipmentFault
	assert.ErrorIs(t, repo.Update(ctx, &stale), port.ErrStaleVersion)

	got, err := repo.GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.IssueSellerFault, got.Resolution)
	assert.Equal(t, "ops", got.AssignedTo)
}

func TestSellerExpenseRepository_OnePerIssue(t *testing.T) {
	db := newTestDB(t)
	seedOrderAndShipment(t, db)
	issues := NewShipmentIssueRepository(db, zap.NewNop())
	expenses := NewSellerExpenseRepository(db, zap.NewNop())
	ctx := context.Background()

	issue := &entity.ShipmentIssue{ShipmentID: 9, IssueType: "lost"}
	require.NoError(t, issues.Create(ctx, issue))

	e := &entity.SellerExpense{OrderID: 10, IssueID: issue.ID, AmountCents: -2000, Reason: "seller fault", ActorID: "ops"}
	require.NoError(t, expenses.Append(ctx, e))
	assert.NotZero(t, e.ID)

	assert.Error(t, expenses.Append(ctx, &entity.SellerExpense{OrderID: 10, IssueID: issue.ID, AmountCents: 2000, ActorID: "ops"}))

	_, err := db.Exec(`DELETE FROM seller_expenses`)
	assert.Error(t, err)

	rows, err := expenses.ListByOrderID(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(-2000), rows[0].AmountCents)

	all, err := expenses.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestShipmentItemAndEventRepositories(t *testing.T) {
	db := newTestDB(t)
	seedOrderAndShipment(t, db)
	mustExec(t, db, `INSERT INTO shipment_items (id, shipment_id, product_id, quantity, status) VALUES (1, 9, 100, 2, 'PENDING'), (2, 9, 101, 1, 'DELIVERED')`)
	mustExec(t, db, `INSERT INTO shipment_events (id, shipment_id, location, status) VALUES (5, 9, 'Depot', 'CREATED')`)
	items := NewShipmentItemRepository(db, zap.NewNop())
	events := NewShipmentEventRepository(db, zap.NewNop())
	ctx := context.Background()

	list, err := items.ListByShipmentID(ctx, 9)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, workflow.ItemPending, list[0].Status)
	assert.Equal(t, 2, list[0].Quantity)

	require.NoError(t, items.UpdateStatus(ctx, 1, 0, workflow.ItemShipped))
	assert.ErrorIs(t, items.UpdateStatus(ctx, 1, 0, workflow.ItemDelivered), port.ErrStaleVersion)

	item, err := items.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, workflow.ItemShipped, item.Status)
	assert.Equal(t, int64(1), item.Version)

	require.NoError(t, events.UpdateStatus(ctx, 5, 0, workflow.EventInTransit))
	ev, err := events.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, workflow.EventInTransit, ev.Status)
	assert.Equal(t, "Depot", ev.Location)

	evs, err := events.ListByShipmentID(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, evs, 1)

	none, err := items.GetByID(ctx, 77)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestIncidentRepository_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewIncidentRepository(db, zap.NewNop())
	ctx := context.Background()

	march := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	incident := &entity.Incident{EmployeeID: 3, Description: "broken scanner", CostCents: 5000, Date: march}
	require.NoError(t, repo.Create(ctx, incident))
	assert.Equal(t, workflow.FinanceOpen, incident.Status)

	incident.Status = workflow.FinanceAwaitingFinanceReview
	require.NoError(t, repo.Update(ctx, incident))
	assert.Equal(t, int64(1), incident.Version)

	got, err := repo.GetByID(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.FinanceAwaitingFinanceReview, got.Status)
	assert.WithinDuration(t, march, got.Date, time.Second)

	unpaid, err := repo.ListUnpaid(ctx, 3, march.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, unpaid, 1)

	before, err := repo.ListUnpaid(ctx, 3, march.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Empty(t, before)

	ok, err := repo.MarkAddressed(ctx, incident.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkAddressed(ctx, incident.ID)
	require.NoError(t, err)
	assert.False(t, ok, "already addressed")

	assert.ErrorIs(t, repo.SoftDelete(ctx, incident.ID, 1), port.ErrStaleVersion)
	require.NoError(t, repo.SoftDelete(ctx, incident.ID, 2))

	got, err = repo.GetByID(ctx, incident.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	got.Description = "edited after delete"
	assert.ErrorIs(t, repo.Update(ctx, got), port.ErrStaleVersion)

	listed, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestReimbursementRepository_ListByEmployee(t *testing.T) {
	db := newTestDB(t)
	incidents := NewIncidentRepository(db, zap.NewNop())
	repo := NewReimbursementRepository(db, zap.NewNop())
	ctx := context.Background()

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	mine := &entity.Incident{EmployeeID: 3, Description: "a", CostCents: 100, Date: day}
	other := &entity.Incident{EmployeeID: 4, Description: "b", CostCents: 100, Date: day}
	require.NoError(t, incidents.Create(ctx, mine))
	require.NoError(t, incidents.Create(ctx, other))

	amount := int64(1500)
	r1 := &entity.Reimbursement{IncidentID: mine.ID, Description: "partial", AmountApprovedCents: &amount}
	r2 := &entity.Reimbursement{IncidentID: mine.ID, Description: "no amount"}
	r3 := &entity.Reimbursement{IncidentID: other.ID, Description: "other"}
	for _, r := range []*entity.Reimbursement{r1, r2, r3} {
		require.NoError(t, repo.Create(ctx, r))
		assert.Equal(t, workflow.FinancePending, r.Status)
	}

	got, err := repo.GetByID(ctx, r1.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AmountApprovedCents)
	assert.Equal(t, int64(1500), *got.AmountApprovedCents)

	got2, err := repo.GetByID(ctx, r2.ID)
	require.NoError(t, err)
	assert.Nil(t, got2.AmountApprovedCents)

	require.NoError(t, repo.SoftDelete(ctx, r2.ID, 0))

	list, err := repo.ListByEmployee(ctx, 3, day)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r1.ID, list[0].ID)

	byIncident, err := repo.ListByIncidentID(ctx, mine.ID)
	require.NoError(t, err)
	assert.Len(t, byIncident, 1)

	got.Response = "ok"
	got.Status = workflow.FinanceApproved
	require.NoError(t, repo.Update(ctx, got))

	ok, err := repo.MarkAddressed(ctx, r1.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkAddressed(ctx, r2.ID)
	require.NoError(t, err)
	assert.False(t, ok, "deleted rows are skipped")
}

func TestPayrollRepository(t *testing.T) {
	db := newTestDB(t)
	mustExec(t, db, `INSERT INTO employees (id, name, email, hourly_rate_cents) VALUES (3, 'Lin', 'lin@example.com', 2000)`)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	mustExec(t, db, `INSERT INTO shifts (employee_id, start_time, end_time, deleted) VALUES (?, ?, ?, 0), (?, ?, ?, 1), (?, ?, ?, 0), (?, ?, ?, 0)`,
		3, start.Add(9*time.Hour), start.Add(17*time.Hour),
		3, start.Add(33*time.Hour), start.Add(41*time.Hour),
		3, lastDay.Add(9*time.Hour), lastDay.Add(13*time.Hour),
		3, end, end.Add(time.Hour))
	mustExec(t, db, `INSERT INTO pto (employee_id, start_date, end_date, status) VALUES (?, ?, ?, 'approved'), (?, ?, ?, 'taken')`,
		3, start.AddDate(0, 0, -2), start.AddDate(0, 0, 1),
		3, start.AddDate(0, 2, 0), start.AddDate(0, 2, 1))
	mustExec(t, db, `INSERT INTO bonuses (employee_id, amount_cents, paid_on) VALUES (?, 1000, ?), (?, 500, ?), (?, 250, ?), (?, 75, ?)`,
		3, start.AddDate(0, 0, 14),
		3, start.AddDate(0, 0, -1),
		3, lastDay.Add(12*time.Hour),
		3, end)

	repo := NewPayrollRepository(db, zap.NewNop())
	ctx := context.Background()

	emp, err := repo.GetEmployee(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, emp)
	assert.Equal(t, int64(2000), emp.HourlyRateCents)

	shifts, err := repo.ListShifts(ctx, 3, start, end)
	require.NoError(t, err)
	require.Len(t, shifts, 2, "the shift on the exclusive end is left out")
	assert.Equal(t, 8.0, shifts[0].Hours())
	assert.Equal(t, 4.0, shifts[1].Hours())

	ptos, err := repo.ListPTO(ctx, 3, start, end)
	require.NoError(t, err)
	require.Len(t, ptos, 1)
	assert.Equal(t, entity.PTOApproved, ptos[0].Status)

	bonuses, err := repo.ListBonuses(ctx, 3, start, end)
	require.NoError(t, err)
	require.Len(t, bonuses, 2)
	assert.Equal(t, int64(1000), bonuses[0].AmountCents)
	assert.Equal(t, int64(250), bonuses[1].AmountCents)

	none, err := repo.GetEmployee(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestOutboxRepository_PendingLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepository(db, zap.NewNop())
	ctx := context.Background()

	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"n-2", "n-1", "n-3"} {
		require.NoError(t, repo.Enqueue(ctx, &entity.Notification{
			ID:            id,
			Recipient:     "ada@example.com",
			Subject:       "Refund approved",
			Template:      entity.TemplateRefundApproved,
			AggregateType: entity.AggregateRefund,
			AggregateID:   int64(i + 1),
			CreatedAt:     t0.Add(time.Duration(i) * time.Minute),
		}))
	}

	pending, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []string{"n-2", "n-1", "n-3"}, []string{pending[0].ID, pending[1].ID, pending[2].ID})
	assert.Equal(t, "{}", pending[0].Data)
	assert.Nil(t, pending[0].SentAt)

	require.NoError(t, repo.MarkSent(ctx, "n-2", 1, t0.Add(time.Hour)))
	require.NoError(t, repo.MarkFailed(ctx, "n-1", 5, "smtp: connection refused"))

	pending, err = repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "n-3", pending[0].ID)

	var status, lastError string
	var attempts int
	require.NoError(t, db.QueryRow(`SELECT status, attempts, last_error FROM notifications WHERE id = 'n-1'`).Scan(&status, &attempts, &lastError))
	assert.Equal(t, entity.NotificationFailed, status)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, "smtp: connection refused", lastError)

	assert.Error(t, repo.Enqueue(ctx, &entity.Notification{ID: "n-3", Recipient: "x", Subject: "s", Template: "t"}), "duplicate id")
}
