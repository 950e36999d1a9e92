package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/event"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type recordingBus struct {
	mu     sync.Mutex
	events []*event.Event
}

func (b *recordingBus) DispatchAsync(ctx context.Context, evt *event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *recordingBus) types() []event.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.Type, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingRecorder struct {
	mu       sync.Mutex
	applied  []string
	rejected []string
	ledger   []int64
}

func (r *recordingRecorder) TransitionApplied(machine, from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, machine+":"+from+"->"+to)
}

func (r *recordingRecorder) TransitionRejected(machine, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, machine+":"+reason)
}

func (r *recordingRecorder) LedgerAppended(ledger, action string, amountCents int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger = append(r.ledger, amountCents)
}

func (r *recordingRecorder) NotificationEnqueued(template string) {}

// refunds

type fakeRefundRepo struct {
	mu       sync.Mutex
	rows     map[int64]*entity.RefundRequest
	nextID   int64
	writes   int
	afterGet func()
}

func newFakeRefundRepo(rows ...*entity.RefundRequest) *fakeRefundRepo {
	r := &fakeRefundRepo{rows: make(map[int64]*entity.RefundRequest)}
	for _, row := range rows {
		r.rows[row.ID] = row
		if row.ID > r.nextID {
			r.nextID = row.ID
		}
	}
	return r
}

func (r *fakeRefundRepo) Create(ctx context.Context, refund *entity.RefundRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	refund.ID = r.nextID
	cp := *refund
	r.rows[refund.ID] = &cp
	return nil
}

func (r *fakeRefundRepo) GetByID(ctx context.Context, id int64) (*entity.RefundRequest, error) {
	r.mu.Lock()
	row, ok := r.rows[id]
	var cp entity.RefundRequest
	if ok {
		cp = *row
	}
	r.mu.Unlock()

	if r.afterGet != nil {
		r.afterGet()
	}
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (r *fakeRefundRepo) UpdateStatus(ctx context.Context, id, expectedVersion int64, status workflow.RefundStatus, description *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Version != expectedVersion {
		return port.ErrStaleVersion
	}
	row.Status = status
	row.Version++
	if description != nil {
		row.Description = *description
	}
	r.writes++
	return nil
}

func (r *fakeRefundRepo) get(id int64) entity.RefundRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

type fakeLedgerRepo struct {
	mu        sync.Mutex
	entries   []*entity.RefundLedgerEntry
	appendErr error
}

func (l *fakeLedgerRepo) Append(ctx context.Context, entry *entity.RefundLedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	for _, e := range l.entries {
		if e.RefundID == entry.RefundID {
			return errors.New("UNIQUE constraint failed: refund_ledger.refund_id")
		}
	}
	entry.ID = int64(len(l.entries) + 1)
	cp := *entry
	l.entries = append(l.entries, &cp)
	return nil
}

func (l *fakeLedgerRepo) ListByRefundID(ctx context.Context, refundID int64) ([]*entity.RefundLedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*entity.RefundLedgerEntry
	for _, e := range l.entries {
		if e.RefundID == refundID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *fakeLedgerRepo) List(ctx context.Context, limit, offset int) ([]*entity.RefundLedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*entity.RefundLedgerEntry(nil), l.entries...), nil
}

func (l *fakeLedgerRepo) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type fakeOrderRepo struct {
	orders map[int64]*entity.Order
	err    error
}

func (o *fakeOrderRepo) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.orders[id], nil
}

type fakeOutboxRepo struct {
	mu         sync.Mutex
	rows       []*entity.Notification
	enqueueErr error
}

func (o *fakeOutboxRepo) Enqueue(ctx context.Context, n *entity.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.enqueueErr != nil {
		return o.enqueueErr
	}
	cp := *n
	o.rows = append(o.rows, &cp)
	return nil
}

func (o *fakeOutboxRepo) FetchPending(ctx context.Context, limit int) ([]*entity.Notification, error) {
	return nil, nil
}

func (o *fakeOutboxRepo) MarkSent(ctx context.Context, id string, attempts int, sentAt time.Time) error {
	return nil
}

func (o *fakeOutboxRepo) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	return nil
}

func (o *fakeOutboxRepo) templates() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.rows))
	for _, n := range o.rows {
		out = append(out, n.Template)
	}
	return out
}

// shipments

type fakeShipmentRepo struct {
	shipments map[int64]*entity.Shipment
}

func (s *fakeShipmentRepo) GetByID(ctx context.Context, id int64) (*entity.Shipment, error) {
	return s.shipments[id], nil
}

type fakeIssueRepo struct {
	mu     sync.Mutex
	rows   map[int64]*entity.ShipmentIssue
	nextID int64
}

func newFakeIssueRepo(rows ...*entity.ShipmentIssue) *fakeIssueRepo {
	r := &fakeIssueRepo{rows: make(map[int64]*entity.ShipmentIssue)}
	for _, row := range rows {
		r.rows[row.ID] = row
		if row.ID > r.nextID {
			r.nextID = row.ID
		}
	}
	return r
}

func (r *fakeIssueRepo) Create(ctx context.Context, issue *entity.ShipmentIssue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	issue.ID = r.nextID
	cp := *issue
	r.rows[issue.ID] = &cp
	return nil
}

func (r *fakeIssueRepo) GetByID(ctx context.Context, id int64) (*entity.ShipmentIssue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *fakeIssueRepo) Update(ctx context.Context, issue *entity.ShipmentIssue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[issue.ID]
	if !ok || row.Version != issue.Version {
		return port.ErrStaleVersion
	}
	issue.Version++
	cp := *issue
	r.rows[issue.ID] = &cp
	return nil
}

type fakeExpenseRepo struct {
	mu       sync.Mutex
	expenses []*entity.SellerExpense
}

func (r *fakeExpenseRepo) Append(ctx context.Context, e *entity.SellerExpense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = int64(len(r.expenses) + 1)
	cp := *e
	r.expenses = append(r.expenses, &cp)
	return nil
}

func (r *fakeExpenseRepo) ListByOrderID(ctx context.Context, orderID int64) ([]*entity.SellerExpense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.SellerExpense
	for _, e := range r.expenses {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeExpenseRepo) List(ctx context.Context, limit, offset int) ([]*entity.SellerExpense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.SellerExpense(nil), r.expenses...), nil
}

type fakeItemRepo struct {
	mu     sync.Mutex
	rows   map[int64]*entity.ShipmentItem
	writes int
}

func newFakeItemRepo(rows ...*entity.ShipmentItem) *fakeItemRepo {
	r := &fakeItemRepo{rows: make(map[int64]*entity.ShipmentItem)}
	for _, row := range rows {
		r.rows[row.ID] = row
	}
	return r
}

func (r *fakeItemRepo) GetByID(ctx context.Context, id int64) (*entity.ShipmentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *fakeItemRepo) ListByShipmentID(ctx context.Context, shipmentID int64) ([]*entity.ShipmentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ShipmentItem
	for _, row := range r.rows {
		if row.ShipmentID == shipmentID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeItemRepo) UpdateStatus(ctx context.Context, id, expectedVersion int64, status workflow.ShipmentItemStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Version != expectedVersion {
		return port.ErrStaleVersion
	}
	row.Status = status
	row.Version++
	r.writes++
	return nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	rows   map[int64]*entity.ShipmentEvent
	writes int
}

func newFakeEventRepo(rows ...*entity.ShipmentEvent) *fakeEventRepo {
	r := &fakeEventRepo{rows: make(map[int64]*entity.ShipmentEvent)}
	for _, row := range rows {
		r.rows[row.ID] = row
	}
	return r
}

func (r *fakeEventRepo) GetByID(ctx context.Context, id int64) (*entity.ShipmentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *fakeEventRepo) ListByShipmentID(ctx context.Context, shipmentID int64) ([]*entity.ShipmentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ShipmentEvent
	for _, row := range r.rows {
		if row.ShipmentID == shipmentID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeEventRepo) UpdateStatus(ctx context.Context, id, expectedVersion int64, status workflow.ShipmentEventStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Version != expectedVersion {
		return port.ErrStaleVersion
	}
	row.Status = status
	row.Version++
	r.writes++
	return nil
}

// finance

type fakeIncidentRepo struct {
	mu        sync.Mutex
	rows      map[int64]*entity.Incident
	nextID    int64
	writes    int
	updateErr error
}

func newFakeIncidentRepo(rows ...*entity.Incident) *fakeIncidentRepo {
	r := &fakeIncidentRepo{rows: make(map[int64]*entity.Incident)}
	for _, row := range rows {
		r.rows[row.ID] = row
		if row.ID > r.nextID {
			r.nextID = row.ID
		}
	}
	return r
}

func (r *fakeIncidentRepo) Create(ctx context.Context, incident *entity.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	incident.ID = r.nextID
	cp := *incident
	r.rows[incident.ID] = &cp
	return nil
}

func (r *fakeIncidentRepo) GetByID(ctx context.Context, id int64) (*entity.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *fakeIncidentRepo) List(ctx context.Context, limit, offset int) ([]*entity.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Incident
	for _, row := range r.rows {
		if !row.Deleted {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeIncidentRepo) Update(ctx context.Context, incident *entity.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	row, ok := r.rows[incident.ID]
	if !ok || row.Version != incident.Version {
		return port.ErrStaleVersion
	}
	incident.Version++
	cp := *incident
	r.rows[incident.ID] = &cp
	r.writes++
	return nil
}

func (r *fakeIncidentRepo) SoftDelete(ctx context.Context, id, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Version != expectedVersion {
		return port.ErrStaleVersion
	}
	row.Deleted = true
	row.Version++
	r.writes++
	return nil
}

func (r *fakeIncidentRepo) ListUnpaid(ctx context.Context, employeeID int64, until time.Time) ([]*entity.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Incident
	for _, row := range r.rows {
		if row.EmployeeID == employeeID && !row.Deleted && !row.PaidAll && !row.Date.After(until) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeIncidentRepo) MarkAddressed(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Deleted || row.StatusAddressed {
		return false, nil
	}
	row.StatusAddressed = true
	return true, nil
}

func (r *fakeIncidentRepo) get(id int64) entity.Incident {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

type fakeReimbursementRepo struct {
	mu        sync.Mutex
	rows      map[int64]*entity.Reimbursement
	nextID    int64
	writes    int
	incidents *fakeIncidentRepo
}

func newFakeReimbursementRepo(incidents *fakeIncidentRepo, rows ...*entity.Reimbursement) *fakeReimbursementRepo {
	r := &fakeReimbursementRepo{rows: make(map[int64]*entity.Reimbursement), incidents: incidents}
	for _, row := range rows {
		r.rows[row.ID] = row
		if row.ID > r.nextID {
			r.nextID = row.ID
		}
	}
	return r
}

func (r *fakeReimbursementRepo) Create(ctx context.Context, reimb *entity.Reimbursement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	reimb.ID = r.nextID
	cp := *reimb
	r.rows[reimb.ID] = &cp
	return nil
}

func (r *fakeReimbursementRepo) GetByID(ctx context.Context, id int64) (*entity.Reimbursement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *fakeReimbursementRepo) ListByIncidentID(ctx context.Context, incidentID int64) ([]*entity.Reimbursement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Reimbursement
	for _, row := range r.rows {
		if row.IncidentID == incidentID && !row.Deleted {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeReimbursementRepo) ListByEmployee(ctx context.Context, employeeID int64, until time.Time) ([]*entity.Reimbursement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Reimbursement
	for _, row := range r.rows {
		if row.Deleted {
			continue
		}
		inc := r.incidents.get(row.IncidentID)
		if inc.EmployeeID != employeeID || inc.Deleted || inc.Date.After(until) {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeReimbursementRepo) Update(ctx context.Context, reimb *entity.Reimbursement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[reimb.ID]
	if !ok || row.Version != reimb.Version {
		return port.ErrStaleVersion
	}
	reimb.Version++
	cp := *reimb
	r.rows[reimb.ID] = &cp
	r.writes++
	return nil
}

func (r *fakeReimbursementRepo) SoftDelete(ctx context.Context, id, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Version != expectedVersion {
		return port.ErrStaleVersion
	}
	row.Deleted = true
	row.Version++
	r.writes++
	return nil
}

func (r *fakeReimbursementRepo) MarkAddressed(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Deleted || row.StatusAddressed {
		return false, nil
	}
	row.StatusAddressed = true
	return true, nil
}

func (r *fakeReimbursementRepo) get(id int64) entity.Reimbursement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

type fakePayrollRepo struct {
	employees map[int64]*entity.Employee
	shifts    []*entity.Shift
	ptos      []*entity.PTO
	bonuses   []*entity.Bonus

	lastStart, lastEnd time.Time
}

func (p *fakePayrollRepo) GetEmployee(ctx context.Context, id int64) (*entity.Employee, error) {
	return p.employees[id], nil
}

func (p *fakePayrollRepo) ListShifts(ctx context.Context, employeeID int64, start, end time.Time) ([]*entity.Shift, error) {
	p.lastStart, p.lastEnd = start, end
	return p.shifts, nil
}

func (p *fakePayrollRepo) ListPTO(ctx context.Context, employeeID int64, start, end time.Time) ([]*entity.PTO, error) {
	return p.ptos, nil
}

func (p *fakePayrollRepo) ListBonuses(ctx context.Context, employeeID int64, start, end time.Time) ([]*entity.Bonus, error) {
	return p.bonuses, nil
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

var testActor = entity.Actor{ID: "agent-1", Role: "support"}
