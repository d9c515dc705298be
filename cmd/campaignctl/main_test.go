package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaignhq-backend/internal/importer"
	"github.com/unclebandit/campaignhq-backend/internal/service"
)

func useSQLite(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:"+filepath.Join(t.TempDir(), "ctl.db")+"?_pragma=foreign_keys(1)")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestProfilesTable(t *testing.T) {
	useSQLite(t)
	out, err := execute(t, "profiles")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "union")
	assert.Contains(t, out, "senior")
}

func TestMigrateIsRepeatable(t *testing.T) {
	useSQLite(t)
	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	_, err = execute(t, "migrate")
	require.NoError(t, err)
}

func TestImportResults(t *testing.T) {
	useSQLite(t)
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(path, []byte("fips,year,dem,rep,other\n6037,2020,1,2,3\n,2020,1,1,1\n"), 0o600))

	out, err := execute(t, "import", "results", path, "--json")
	require.NoError(t, err)

	var report importer.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, importer.FormatLong, report.Format)
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 1, report.Upserted)
	assert.Len(t, report.Errors, 1)

	_, err = execute(t, "import", "results", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSeedPromptAndPublishDue(t *testing.T) {
	useSQLite(t)

	out, err := execute(t, "seed", "--json")
	require.NoError(t, err)
	var seeded map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &seeded))
	require.NotEmpty(t, seeded["campaign_id"])

	out, err = execute(t, "prompt", "--campaign", seeded["campaign_id"], "--profile", "senior")
	require.NoError(t, err)
	assert.Contains(t, out, "Jane Doe")

	_, err = execute(t, "prompt", "--campaign", seeded["campaign_id"])
	assert.Error(t, err, "profile flag is required")

	out, err = execute(t, "publish-due", "--json")
	require.NoError(t, err)
	var report service.DueReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, service.DueReport{}, report)

	_, err = execute(t, "publish-due", "--at", "tomorrow")
	assert.Error(t, err)
}
