package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmehra2102/payment-engine/internal/payment/domain"
	reconapp "github.com/dmehra2102/payment-engine/internal/reconciliation/application"
)

func reconcileCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Settle completed payments that have no commission recorded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.connect(cmd.Context()); err != nil {
				return err
			}
			batch, _ := cmd.Flags().GetInt("batch")
			report, err := reconapp.NewSweeper(rt.log, rt.repo, rt.engine).WithBatch(batch).SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("scanned=%d settled=%d skipped=%d failed=%d\n",
				report.Scanned, report.Settled, report.Skipped, len(report.Failed))
			if !report.Clean() {
				return fmt.Errorf("settlement failed for %v", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().IntP("batch", "b", 500, "Maximum payments to settle in this run")
	return cmd
}

func statsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [recipient-id]",
		Short: "Show commission totals for a recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.connect(cmd.Context()); err != nil {
				return err
			}
			st, err := rt.engine.GetCommissionStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "recipient\t%s\n", st.RecipientID)
			fmt.Fprintf(w, "total sales\t%s\n", domain.FormatMinor(st.TotalSales))
			fmt.Fprintf(w, "total commission\t%s\n", domain.FormatMinor(st.TotalCommission))
			fmt.Fprintf(w, "total earned\t%s\n", domain.FormatMinor(st.TotalEarned))
			fmt.Fprintf(w, "commission rate\t%s\n", st.CommissionRate.String())
			return w.Flush()
		},
	}
}

func showCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [payment-id]",
		Short: "Print one payment record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.connect(cmd.Context()); err != nil {
				return err
			}
			p, err := rt.repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "id\t%s\n", p.ID)
			fmt.Fprintf(w, "order\t%s\n", p.OrderID)
			fmt.Fprintf(w, "payer\t%s\n", p.PayerID)
			fmt.Fprintf(w, "recipient\t%s\n", p.RecipientID)
			fmt.Fprintf(w, "amount\t%s %s\n", domain.FormatMinor(p.AmountMinor), p.Currency)
			fmt.Fprintf(w, "status\t%s\n", p.Status)
			if p.CommissionMinor != nil && p.NetMinor != nil {
				fmt.Fprintf(w, "commission / net\t%s / %s\n", domain.FormatMinor(*p.CommissionMinor), domain.FormatMinor(*p.NetMinor))
			}
			if p.RefundedMinor > 0 {
				fmt.Fprintf(w, "refunded\t%s (%s)\n", domain.FormatMinor(p.RefundedMinor), p.RefundStatus)
			}
			fmt.Fprintf(w, "created\t%s\n", p.CreatedAt.Format(time.RFC3339))
			return w.Flush()
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}
