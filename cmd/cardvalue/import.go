package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codyseavey/card-valuer/internal/models"
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <catalog.json|catalog.csv>",
		Short: "Import catalog entries",
		Long: `Upsert cards into the catalog from a JSON array or a CSV file with a header row.

Recognized columns: id, identifier, season, category, set_name, player, card_number.
Entries without an identifier get one built from season, set, number and player.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	entries, err := readCatalogFile(args[0])
	if err != nil {
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Catalog.Import(entries)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries: %d added, %d updated, %d skipped\n",
		len(entries), res.Added, res.Updated, res.Skipped)
	return nil
}

func readCatalogFile(path string) ([]models.CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var entries []models.CatalogEntry
		if err := json.NewDecoder(f).Decode(&entries); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return entries, nil
	case ".csv":
		return readCatalogCSV(f)
	default:
		return nil, fmt.Errorf("unsupported catalog file %s: want .json or .csv", path)
	}
}

func readCatalogCSV(r io.Reader) ([]models.CatalogEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["identifier"]; !ok {
		if _, ok := cols["player"]; !ok {
			return nil, errors.New("csv needs an identifier or player column")
		}
	}

	var entries []models.CatalogEntry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		field := func(name string) string {
			if i, ok := cols[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		entries = append(entries, models.CatalogEntry{
			ID:         field("id"),
			Identifier: field("identifier"),
			Season:     field("season"),
			Category:   field("category"),
			SetName:    field("set_name"),
			Player:     field("player"),
			CardNumber: field("card_number"),
		})
	}
	return entries, nil
}
