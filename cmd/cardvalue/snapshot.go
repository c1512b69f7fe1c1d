package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Record today's portfolio value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.Snapshots.TakeSnapshot()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: $%.2f across %d cards (avg $%.2f)\n",
				snap.Date, snap.Mode, snap.TotalValue, snap.CardCount, snap.AverageValue)
			return nil
		},
	}
}
