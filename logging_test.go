package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1000, "1.0 kB"},
		{1500, "1.5 kB"},
		{1_500_000, "1.5 MB"},
		{2_000_000_000, "2.0 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, humanReadableSize(tt.in))
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer

	cfg := testConfig()
	log := newLogger(cfg, &buf)
	log.Debug().Msg("hidden")
	log.Info().Str("component", "start").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "component=start")

	buf.Reset()
	cfg.verbose = true
	log = newLogger(cfg, &buf)
	log.Debug().Msg("visible")

	assert.Contains(t, buf.String(), "visible")
}

func TestNewPage(t *testing.T) {
	page := newPage("Title", "<p>body</p>")

	assert.Contains(t, page, "<title>Title</title>")
	assert.Contains(t, page, "<main><p>body</p></main>")
}
