package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Format: "json", Out: &buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Debug().Msg("hidden")
	log.Info().Str("market", "GC").Msg("market done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "GC", entry["market"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetupVerbose(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Verbose: true, Format: "json", Out: &buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}
