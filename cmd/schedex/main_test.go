package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/schedex/core"
)

const sampleSchedule = "../../schedule/testdata/sample.xml"

// run executes the CLI against a fresh data dir with the embedding provider
// disabled and returns stdout.
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	full := append([]string{"schedex", "--log-level", "error", "--data-dir", dataDir, "--no-ai"}, args...)
	err := app.Run(full)
	return out.String(), err
}

func TestSetupLogger(t *testing.T) {
	newLoggerApp := func() *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Value: "info"},
			},
			Before: setupLogger,
			Action: func(*cli.Context) error { return nil },
		}
	}

	for _, level := range []string{"debug", "INFO", "WaRn", "error"} {
		t.Run(level, func(t *testing.T) {
			require.NoError(t, newLoggerApp().Run([]string{"test", "--log-level", level}))
		})
	}

	t.Run("invalid level", func(t *testing.T) {
		err := newLoggerApp().Run([]string{"test", "--log-level", "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestCommandFlags(t *testing.T) {
	app := newApp()

	find := func(name string) *cli.Command {
		for _, cmd := range app.Commands {
			if cmd.Name == name {
				return cmd
			}
		}
		return nil
	}

	for _, name := range []string{"serve", "ingest", "embed", "search", "jobs"} {
		assert.NotNil(t, find(name), name)
	}

	ingest := find("ingest")
	require.NotNil(t, ingest)
	var source *cli.StringFlag
	for _, f := range ingest.Flags {
		if sf, ok := f.(*cli.StringFlag); ok && sf.Name == "source" {
			source = sf
		}
	}
	require.NotNil(t, source)
	assert.True(t, source.Required)
}

func TestParseItemNumbers(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    []core.ItemNumber
		wantErr bool
	}{
		{"empty", nil, nil, false},
		{"repeated flags", []string{"23", "30071"}, []core.ItemNumber{23, 30071}, false},
		{"comma separated", []string{"23, 0104,"}, []core.ItemNumber{23, 104}, false},
		{"invalid", []string{"23,abc"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseItemNumbers(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIngestAndSearch(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "db")

	out, err := run(t, dataDir, "ingest", "--source", sampleSchedule)
	require.NoError(t, err)
	assert.Contains(t, out, "created=3")
	assert.Contains(t, out, "failed=1")

	out, err = run(t, dataDir, "search", "--mode", "text", "biopsy")
	require.NoError(t, err)
	assert.Contains(t, out, "mode=text")
	assert.Contains(t, out, "30071")

	out, err = run(t, dataDir, "search", "--smart", "23")
	require.NoError(t, err)
	assert.Contains(t, out, "intent=exact_item_number")
	assert.Contains(t, out, "[exact] 0: 23")

	out, err = run(t, dataDir, "jobs", "logs")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 1")

	out, err = run(t, dataDir, "jobs", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "total=0")
}

func TestCommandErrors(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "db")

	_, err := run(t, dataDir, "search")
	assert.ErrorContains(t, err, "query is required")

	_, err = run(t, dataDir, "jobs", "status")
	assert.ErrorContains(t, err, "job id is required")

	_, err = run(t, dataDir, "jobs", "status", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = run(t, dataDir, "embed")
	assert.ErrorIs(t, err, core.ErrUnavailable)

	_, err = run(t, dataDir, "ingest", "--source", "missing.xml")
	assert.ErrorContains(t, err, "ingestion failed")
}
