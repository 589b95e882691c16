package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/SscSPs/general_ledger/internal/adapters/events"
	"github.com/SscSPs/general_ledger/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestNewPublisher_DefaultsToLog(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := newPublisher(&config.Config{EventDriver: config.EventDriverLog}, logger)
	require.NoError(t, err)
	assert.IsType(t, &events.LogPublisher{}, p)

	p, err = newPublisher(&config.Config{EventDriver: config.EventDriverKafka, KafkaBrokers: []string{"localhost:9092"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &events.KafkaPublisher{}, p)
	assert.NoError(t, p.Close())
}
