package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestSetup_RoutesByLevel(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	var console bytes.Buffer

	closeLogs, err := Setup(Options{
		Dir:          dir,
		Level:        zerolog.DebugLevel,
		ConsoleLevel: zerolog.WarnLevel,
		Console:      &console,
		Now:          func() time.Time { return day },
	})
	require.NoError(t, err)

	log.Debug().Msg("debug line")
	log.Warn().Msg("warn line")
	log.Error().Msg("error line")
	require.NoError(t, closeLogs())

	daily, err := os.ReadFile(filepath.Join(dir, "pipeline_20240517.log"))
	require.NoError(t, err)
	require.Contains(t, string(daily), "debug line")
	require.Contains(t, string(daily), "error line")

	errs, err := os.ReadFile(filepath.Join(dir, ErrorLogName))
	require.NoError(t, err)
	require.NotContains(t, string(errs), "warn line")
	require.Contains(t, string(errs), "error line")

	require.NotContains(t, console.String(), "debug line")
	require.Contains(t, console.String(), "warn line")
}

func TestTailErrors(t *testing.T) {
	dir := t.TempDir()
	body := strings.Repeat("x", 50) + "TAIL"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ErrorLogName), []byte(body), 0o644))

	tail, err := TailErrors(dir, 4)
	require.NoError(t, err)
	require.Equal(t, "TAIL", tail)

	all, err := TailErrors(dir, 1000)
	require.NoError(t, err)
	require.Equal(t, body, all)

	_, err = TailErrors(t.TempDir(), 10)
	require.Error(t, err)
}
