package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exercisehub/internal/editorial"
	"exercisehub/internal/exercise"
	"exercisehub/internal/index"
	"exercisehub/pkg/models"
)

func sampleSheets() []exercise.Sheet {
	return []exercise.Sheet{
		{
			ExerciseRecord: models.ExerciseRecord{
				Code: "S1-01", Series: "S1", Title: "Squat, goblet", Level: "L1",
				Dosage: "3x10", Image: "/exercises/S1/S1-01.webp",
			},
			Origin:          exercise.OriginBase,
			Overridden:      true,
			EditorialSource: editorial.Master,
		},
		{
			ExerciseRecord:  models.ExerciseRecord{Code: "S2-04", Series: "S2", Title: "Pont fessier"},
			Origin:          exercise.OriginCustom,
			EditorialSource: editorial.Fallback,
		},
	}
}

func TestWriteExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "exercises.csv")
	require.NoError(t, writeExport(path, "", sampleSheets()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "S1-01", rows[1][0])
	assert.Equal(t, "Squat, goblet", rows[1][2])
	assert.Equal(t, "true", rows[1][10])
	assert.Equal(t, "master", rows[1][11])
	assert.Equal(t, "custom", rows[2][9])
}

func TestWriteExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exercises.json")
	require.NoError(t, writeExport(path, "", sampleSheets()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []exercise.Sheet
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Pont fessier", got[1].Title)
	assert.Equal(t, exercise.OriginCustom, got[1].Origin)
}

func TestWriteExportUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exercises.xml")
	err := writeExport(path, "", sampleSheets())
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPrintIndex(t *testing.T) {
	ix, err := index.New([]models.IndexEntry{
		{Code: "S1-01", Title: "Squat", Series: "S1"},
		{Code: "S3-07", Title: "Gainage", Series: "S3"},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printIndex(&buf, ix, false))
	out := buf.String()
	assert.Contains(t, out, "S3-07")
	assert.Contains(t, out, "2 entries, S1: 1, S2: 0, S3: 1")

	buf.Reset()
	require.NoError(t, printIndex(&buf, ix, true))
	assert.True(t, strings.HasPrefix(buf.String(), "["))
}
