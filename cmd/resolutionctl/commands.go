package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyjia/order-resolution/internal/application/service"
	"github.com/garyjia/order-resolution/internal/infrastructure/export"
)

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer closeContainer(c)
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func replayFallbackCmd(open opener) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "replay-fallback",
		Short: "Re-enqueue notifications recorded in the fallback file",
		Long: `Reads every record from the notification fallback file and enqueues it
again as a fresh PENDING outbox row. The file is truncated afterwards
unless --keep is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer closeContainer(c)

			ctx := cmd.Context()
			records, err := c.Fallback().ReadAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to read fallback file: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to replay")
				return nil
			}

			n, err := c.Services().Notification.Replay(ctx, records)
			if err != nil {
				return fmt.Errorf("replay failed: %w", err)
			}
			if !keep {
				if err := c.Fallback().Truncate(ctx); err != nil {
					return fmt.Errorf("failed to truncate fallback file: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d notifications from %s\n", n, c.Fallback().Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "leave the fallback file untouched")
	return cmd
}

func exportLedgerCmd(open opener) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "export-ledger",
		Short: "Write the refund ledger and seller expenses to an xlsx report",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer closeContainer(c)

			if name == "" {
				name = fmt.Sprintf("ledger-%s.xlsx", time.Now().Format("20060102-150405"))
			}
			var buf bytes.Buffer
			if err := c.LedgerExporter().Export(cmd.Context(), &buf); err != nil {
				return err
			}
			path, err := c.Reports().Save(cmd.Context(), name, buf.Bytes())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "report file name (default ledger-<timestamp>.xlsx)")
	return cmd
}

func payrollCmd(open opener) *cobra.Command {
	var (
		employees  string
		start, end string
		xlsxName   string
	)

	cmd := &cobra.Command{
		Use:   "payroll",
		Short: "Calculate the payment for one or more employees over a pay period",
		Example: `  resolutionctl payroll --employee 4 --start 2026-02-01 --end 2026-02-14
  resolutionctl payroll --employee 4,5 --start 2026-02-01 --end 2026-02-14 --xlsx feb.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseEmployeeIDs(employees)
			if err != nil {
				return err
			}
			from, to, err := parsePeriod(start, end)
			if err != nil {
				return err
			}

			c, err := open()
			if err != nil {
				return err
			}
			defer closeContainer(c)

			summaries := make([]*service.PaymentSummary, 0, len(ids))
			for _, id := range ids {
				summary, err := c.Services().Finance.CalculateTotalPayment(cmd.Context(), id, from, to)
				if err != nil {
					return fmt.Errorf("employee %d: %w", id, err)
				}
				summaries = append(summaries, summary)
			}

			if xlsxName != "" {
				var buf bytes.Buffer
				if err := export.WritePayroll(&buf, summaries); err != nil {
					return err
				}
				path, err := c.Reports().Save(cmd.Context(), xlsxName, buf.Bytes())
				if err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, "wrote", path)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		},
	}
	cmd.Flags().StringVarP(&employees, "employee", "e", "", "employee id, or a comma separated list")
	cmd.Flags().StringVar(&start, "start", "", "period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "period end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&xlsxName, "xlsx", "", "also save an xlsx report under this name")
	_ = cmd.MarkFlagRequired("employee")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func parseEmployeeIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid employee id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one employee id is required")
	}
	return ids, nil
}

func parsePeriod(start, end string) (time.Time, time.Time, error) {
	from, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q: want YYYY-MM-DD", start)
	}
	to, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q: want YYYY-MM-DD", end)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end %s is before --start %s", end, start)
	}
	return from, to, nil
}
