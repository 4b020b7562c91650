package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Pland4r/project-ai/internal/config"
)

func setupCLI(t *testing.T, content string) string {
	t.Helper()

	logger = zap.NewNop()
	cfg = config.Default()
	ceiling, withSummary, outputPath = 0, false, ""
	t.Cleanup(func() { ceiling, withSummary, outputPath = 0, false, "" })

	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunAnalyze(t *testing.T) {
	path := setupCLI(t, "date,total_users,churned_users\n2023-01-01,100,40\n")

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, runAnalyze(cmd, []string{path}))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "per_period_aggregate", resp["schema"])
	assert.Equal(t, "", resp["ai_summary"])

	metrics := resp["metrics"].(map[string]interface{})
	assert.Equal(t, 60.0, metrics["active_users"])
	assert.Equal(t, 0.6, metrics["conversion_rate"])
}

func TestRunAnalyzeSummaryDisabled(t *testing.T) {
	path := setupCLI(t, "user_id,status\n1,active\n")
	withSummary = true

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, runAnalyze(cmd, []string{path}))
	assert.Contains(t, out.String(), "AI summary unavailable")
}

func TestRunAnalyzeMissingFile(t *testing.T) {
	setupCLI(t, "")
	err := runAnalyze(&cobra.Command{}, []string{filepath.Join(t.TempDir(), "nope.csv")})
	assert.Error(t, err)
}

func TestRunClean(t *testing.T) {
	path := setupCLI(t, "Date,Total Users,Active Users\n2023-01-02,120,\n2023-01-01,100,60\n")
	outputPath = filepath.Join(t.TempDir(), "clean.csv")

	require.NoError(t, runClean(&cobra.Command{}, []string{path}))

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,total_users,active_users,churned_users,new_users", lines[0])
	assert.Equal(t, "2023-01-01,100,60,40,0", lines[1])
	assert.Equal(t, "2023-01-02,120,0,0,20", lines[2])
}

func TestRunCleanCeiling(t *testing.T) {
	path := setupCLI(t, "user_id,sessions_count\n1,5000\n")
	ceiling = 1000

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, runClean(cmd, []string{path}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "1,active,0,0,0,"), lines[1])
}

func TestWriteCSVFileReportsFailures(t *testing.T) {
	err := writeCSVFile(filepath.Join(t.TempDir(), "missing", "out.csv"), []string{"a"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create output")

	if _, statErr := os.Stat("/dev/full"); statErr != nil {
		t.Skip("/dev/full not available")
	}
	records := make([][]string, 2000)
	for i := range records {
		records[i] = []string{strings.Repeat("x", 16)}
	}
	err = writeCSVFile("/dev/full", []string{"a"}, records)
	assert.Error(t, err)
}
