package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/application/service"
	"github.com/garyjia/order-resolution/internal/domain/entity"
)

// Sheet names
const (
	SheetRefundLedger   = "Refund Ledger"
	SheetSellerExpenses = "Seller Expenses"
	SheetPayroll        = "Payroll"
)

const pageSize = 500

var (
	ledgerHeader  = []interface{}{"ID", "Refund ID", "Action", "Amount", "Actor", "Role", "Event ID", "Created At"}
	expenseHeader = []interface{}{"ID", "Order ID", "Issue ID", "Amount", "Reason", "Actor", "Created At"}
	payrollHeader = []interface{}{
		"Employee ID", "Start", "End", "Hours Worked", "PTO Hours", "Wages", "PTO Pay", "Bonuses",
		"Unpaid Incidents", "Outstanding Reimbursements", "Addressed Reimbursements", "Total",
	}
)

// LedgerExporter writes the refund ledger and the seller expense ledger into
// one workbook
type LedgerExporter struct {
	ledger   port.RefundLedgerRepository
	expenses port.SellerExpenseRepository
	logger   *zap.Logger
}

// NewLedgerExporter creates a ledger exporter
func NewLedgerExporter(ledger port.RefundLedgerRepository, expenses port.SellerExpenseRepository, logger *zap.Logger) *LedgerExporter {
	return &LedgerExporter{ledger: ledger, expenses: expenses, logger: logger}
}

// Export reads both ledgers in full and writes an .xlsx workbook to w
func (e *LedgerExporter) Export(ctx context.Context, w io.Writer) error {
	var entries []*entity.RefundLedgerEntry
	for offset := 0; ; offset += pageSize {
		page, err := e.ledger.List(ctx, pageSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list refund ledger: %w", err)
		}
		entries = append(entries, page...)
		if len(page) < pageSize {
			break
		}
	}

	var expenses []*entity.SellerExpense
	for offset := 0; ; offset += pageSize {
		page, err := e.expenses.List(ctx, pageSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list seller expenses: %w", err)
		}
		expenses = append(expenses, page...)
		if len(page) < pageSize {
			break
		}
	}

	if err := WriteLedger(w, entries, expenses); err != nil {
		return err
	}
	e.logger.Info("Ledger exported",
		zap.Int("refund_rows", len(entries)),
		zap.Int("expense_rows", len(expenses)))
	return nil
}

// WriteLedger writes the given rows as a two sheet workbook
func WriteLedger(w io.Writer, entries []*entity.RefundLedgerEntry, expenses []*entity.SellerExpense) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRefundLedger); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSellerExpenses); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	ledgerRows := make([][]interface{}, 0, len(entries))
	for _, en := range entries {
		ledgerRows = append(ledgerRows, []interface{}{
			en.ID, en.RefundID, en.Action, dollars(en.AmountCents),
			en.ActorID, en.ActorRole, en.EventID, en.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := writeTable(f, SheetRefundLedger, ledgerHeader, ledgerRows); err != nil {
		return err
	}

	expenseRows := make([][]interface{}, 0, len(expenses))
	for _, ex := range expenses {
		expenseRows = append(expenseRows, []interface{}{
			ex.ID, ex.OrderID, ex.IssueID, dollars(ex.AmountCents),
			ex.Reason, ex.ActorID, ex.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := writeTable(f, SheetSellerExpenses, expenseHeader, expenseRows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WritePayroll writes one row per payment summary
func WritePayroll(w io.Writer, summaries []*service.PaymentSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetPayroll); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	rows := make([][]interface{}, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []interface{}{
			s.EmployeeID,
			s.Start.Format(time.DateOnly),
			s.End.Format(time.DateOnly),
			s.HoursWorked,
			s.PTOHours,
			dollars(s.WagesCents),
			dollars(s.PTOCents),
			dollars(s.BonusCents),
			dollars(s.UnpaidIncidentCents),
			dollars(s.OutstandingReimbursementCents),
			dollars(s.AddressedReimbursementCents),
			dollars(s.TotalCents),
		})
	}
	if err := writeTable(f, SheetPayroll, payrollHeader, rows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func dollars(cents int64) float64 {
	return float64(cents) / 100
}
