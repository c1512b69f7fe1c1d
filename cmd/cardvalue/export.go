package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write summary.csv (and summary.xlsx) from the catalog",
		RunE:  runExport,
	}
	cmd.Flags().Bool("xlsx", false, "also write summary.xlsx")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Catalog.LatestResults(a.Filter())
	if err != nil {
		return err
	}

	if err := a.Store.WriteSummary(results); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %d rows to %s\n", len(results), filepath.Join(a.Store.Dir(), "summary.csv"))

	xlsx, _ := cmd.Flags().GetBool("xlsx")
	if xlsx || a.Config.XLSX {
		if err := a.Store.WriteSummaryXLSX(results); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", filepath.Join(a.Store.Dir(), "summary.xlsx"))
	}
	return nil
}
