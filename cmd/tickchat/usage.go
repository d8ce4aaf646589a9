package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmedigital/tickchat/pkg/config"
	"github.com/getmedigital/tickchat/pkg/identity"
	"github.com/getmedigital/tickchat/pkg/ledger"
)

func newUsageCmd() *cobra.Command {
	var (
		configPath string
		period     string
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show metered usage for an accounting period",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			l := ledger.Open(cfg.UsageFile())
			defer func() { _ = l.Close() }()

			if period == "" {
				period = identity.Period(time.Now())
			}

			snap := l.SnapshotFor(period)
			if len(snap.Usage) == 0 {
				fmt.Printf("No usage recorded for %s.\n", period)
				return nil
			}

			identities := make([]string, 0, len(snap.Usage))
			for id := range snap.Usage {
				identities = append(identities, id)
			}
			sort.Strings(identities)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTITY\tPERIOD\tREQUESTS")
			for _, id := range identities {
				fmt.Fprintf(w, "%s\t%s\t%d\n", id, period, snap.Usage[id])
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "tickchat.yaml", "path to config file")
	cmd.Flags().StringVar(&period, "period", "", "accounting period (YYYY-MM, default current)")
	return cmd
}
