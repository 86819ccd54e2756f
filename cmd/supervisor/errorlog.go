// cmd/supervisor/errorlog.go
package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/safety-supervisor/internal/hardfault"
	"github.com/tamzrod/safety-supervisor/internal/store"
)

func newLogCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Print the hard error log and the non-volatile last error",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			st, err := openStores(c.Supervisor.Store, newLogger(opts, os.Stderr))
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.log.List()
			if err != nil {
				return err
			}
			last, err := st.nv.Get(hardfault.SlotLastError)
			if err != nil {
				return err
			}
			cause, err := st.nv.ResetCause()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nv last error: %s\n", hardfault.Code(last))
			fmt.Fprintf(out, "reset cause: %s\n", causeString(cause))
			return printRecords(out, records)
		},
	}
}

func newPowerCycleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "power-cycle",
		Short: "Simulate a power loss: clear non-volatile registers and acknowledge permanent errors",
		Long: `Clears what a power cycle clears on the device: all non-volatile
registers and the reset cause. Permanent hard errors are acknowledged so that
the next boot no longer re-enters them. The error log itself is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			st, err := openStores(c.Supervisor.Store, newLogger(opts, os.Stderr))
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.nv.PowerLoss(); err != nil {
				return fmt.Errorf("clear nv: %w", err)
			}
			if err := st.log.AcknowledgePermanent(); err != nil {
				return fmt.Errorf("acknowledge permanent errors: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "power cycled")
			return nil
		},
	}
}

func printRecords(w io.Writer, records []store.Record) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "error log empty")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tCHANNEL\tCODE\tVALUE\tBOOT")
	for _, r := range records {
		ch := "transient"
		if r.Permanent {
			ch = "permanent"
		}
		code := "-"
		if c, ok := r.HardErrorCode(); ok {
			code = c.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t0x%08x\t%s\n",
			r.Seq, r.At.UTC().Format(time.RFC3339), ch, code, r.Value, r.BootID)
	}
	return tw.Flush()
}

func causeString(c hardfault.ResetCause) string {
	switch {
	case c.Watchdog():
		return "watchdog"
	case c&hardfault.ResetSoftware != 0:
		return "software"
	case c&hardfault.ResetPin != 0:
		return "pin"
	case c&hardfault.ResetPowerOn != 0:
		return "power_on"
	default:
		return fmt.Sprintf("0x%08x", uint32(c))
	}
}
