package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericksa/lexiguard/internal/pipeline"
	"github.com/ericksa/lexiguard/internal/store"
	apperrors "github.com/ericksa/lexiguard/pkg/errors"
)

const contractText = "The Provider shall indemnify the Client against all losses. " +
	"Payment is due within thirty days of invoice. The warranty period is twelve months."

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "store:\n" +
		"  driver: sqlite\n" +
		"  dsn: " + filepath.Join(dir, "lexiguard.db") + "\n" +
		"analysis:\n" +
		"  sentence_detector: rules\n" +
		"  model_enabled: false\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func analyzeJSON(t *testing.T, cfgPath string, args ...string) pipeline.Outcome {
	t.Helper()
	out, err := run(t, "", append([]string{"-c", cfgPath, "-o", "json", "analyze"}, args...)...)
	require.NoError(t, err)
	var outcome pipeline.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	return outcome
}

func TestAnalyze_Text(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "", "-c", cfg, "analyze", "--text", contractText, "--name", "msa.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "Risk score: 55")
	assert.Contains(t, out, "Summary: Found 1 high-risk clauses.")
	assert.Contains(t, out, "High")
	assert.NotContains(t, out, "Duplicate of")
}

func TestAnalyze_FileThenDuplicateFromStdin(t *testing.T) {
	cfg := writeConfig(t)
	path := filepath.Join(t.TempDir(), "nda.txt")
	require.NoError(t, os.WriteFile(path, []byte(contractText), 0o644))

	first := analyzeJSON(t, cfg, path)
	assert.False(t, first.Duplicate)
	assert.Equal(t, "nda.txt", first.Record.Filename)
	assert.Equal(t, "cli", first.Record.Source)

	out, err := run(t, contractText, "-c", cfg, "-o", "json", "analyze", "-")
	require.NoError(t, err)
	var second pipeline.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Record.ID, second.Record.ID)
}

func TestAnalyze_Errors(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "", "-c", cfg, "analyze")
	assert.Error(t, err)

	_, err = run(t, "", "-c", cfg, "analyze", "--text", "   ")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	path := filepath.Join(t.TempDir(), "sheet.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("cells"), 0o644))
	_, err = run(t, "", "-c", cfg, "analyze", path)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedFormat))

	_, err = run(t, "", "-c", cfg, "-o", "yaml", "history")
	assert.Error(t, err)
}

func TestHistoryAndShow(t *testing.T) {
	cfg := writeConfig(t)
	outcome := analyzeJSON(t, cfg, "--text", contractText, "--name", "msa.txt")

	out, err := run(t, "", "-c", cfg, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "FILENAME")
	assert.Contains(t, out, outcome.Record.ID)
	assert.Contains(t, out, "msa.txt")

	out, err = run(t, "", "-c", cfg, "-o", "json", "show", outcome.Record.ID)
	require.NoError(t, err)
	var rec store.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, 55, rec.RiskScore)

	_, err = run(t, "", "-c", cfg, "show", "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestReport(t *testing.T) {
	cfg := writeConfig(t)
	outcome := analyzeJSON(t, cfg, "--text", contractText, "--name", "msa.txt")

	out, err := run(t, "", "-c", cfg, "report", outcome.Record.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Contract Risk Analysis Report")
	assert.Contains(t, out, "File: msa.txt")

	dest := filepath.Join(t.TempDir(), "report.txt")
	out, err = run(t, "", "-c", cfg, "report", outcome.Record.ID, "--out", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "Report written to")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Overall Risk Score: 55")
}

func TestAudit(t *testing.T) {
	cfg := writeConfig(t)
	analyzeJSON(t, cfg, "--text", contractText)
	analyzeJSON(t, cfg, "--text", contractText)

	out, err := run(t, "", "-c", cfg, "-o", "json", "audit", "--limit", "1")
	require.NoError(t, err)
	var events []store.AuditEvent
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "duplicate_detected", events[0].Action)
	assert.Equal(t, "cli", events[0].User)
}

func TestKeywords(t *testing.T) {
	out, err := run(t, "", "-c", writeConfig(t), "keywords")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "High"))
	assert.Contains(t, lines[1], "indemnify")
	assert.True(t, strings.HasPrefix(lines[3], "Low"))
}
