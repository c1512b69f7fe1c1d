package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/card-valuer/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCatalogFile(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		path := writeFile(t, "catalog.json", `[
			{"id": "wemby", "identifier": "2023 Panini Prizm - #136 - Victor Wembanyama", "season": "2023"},
			{"player": "Scoot Henderson", "set_name": "Panini Select", "card_number": "12"}
		]`)
		entries, err := readCatalogFile(path)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "wemby", entries[0].ID)
		assert.Equal(t, "Panini Select - #12 - Scoot Henderson", entries[1].BuildIdentifier())
	})

	t.Run("csv", func(t *testing.T) {
		path := writeFile(t, "catalog.CSV", "ID, Identifier ,season,category\n"+
			"wemby,\"2023 Panini Prizm - #136 - Victor Wembanyama\",2023,basketball\n"+
			"short,2021 Prizm - #1 - Player\n")
		entries, err := readCatalogFile(path)
		require.NoError(t, err)
		assert.Equal(t, []models.CatalogEntry{
			{ID: "wemby", Identifier: "2023 Panini Prizm - #136 - Victor Wembanyama", Season: "2023", Category: "basketball"},
			{ID: "short", Identifier: "2021 Prizm - #1 - Player"},
		}, entries)
	})

	t.Run("csv without identifier columns", func(t *testing.T) {
		path := writeFile(t, "catalog.csv", "id,season\na,2023\n")
		_, err := readCatalogFile(path)
		assert.Error(t, err)
	})

	t.Run("empty csv", func(t *testing.T) {
		entries, err := readCatalogFile(writeFile(t, "catalog.csv", ""))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := readCatalogFile(writeFile(t, "catalog.txt", "x"))
		assert.Error(t, err)
	})
}
