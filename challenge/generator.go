/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package challenge produces truth and dare text. It asks an external
// provider once and falls back to a curated local pool on any failure, so
// Generate always returns text.
package challenge

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/Seednode/truthordare/domain"
	"github.com/rs/zerolog"
)

const DefaultTimeout = 5 * time.Second

// lastResort is only reachable if a caller passes values outside the
// closed enums.
const lastResort = "Tell the group something nobody here knows about you."

type Generator struct {
	provider Provider
	timeout  time.Duration
	log      zerolog.Logger
	pick     func(n int) int
}

type Option func(*Generator)

func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) {
		g.log = l
	}
}

// WithPicker replaces the uniform random index source used by the fallback.
func WithPicker(pick func(n int) int) Option {
	return func(g *Generator) {
		g.pick = pick
	}
}

// New builds a Generator. provider may be nil, in which case every call is
// served from the fallback pool.
func New(provider Provider, opts ...Option) *Generator {
	g := &Generator{
		provider: provider,
		timeout:  DefaultTimeout,
		log:      zerolog.Nop(),
		pick:     rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns challenge text and where it came from. It never fails.
func (g *Generator) Generate(ctx context.Context, kind domain.Kind, mode domain.Mode, tier domain.Tier) (string, domain.Provenance) {
	if g.provider != nil && g.provider.Available() {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		startTime := time.Now()
		text, err := g.provider.Complete(callCtx, Request{
			Kind:     kind,
			Mode:     mode,
			Tier:     tier,
			Guidance: Guidance(kind, mode, tier),
		})
		if err == nil && text != "" {
			g.log.Debug().
				Str("kind", string(kind)).
				Str("mode", string(mode)).
				Str("tier", string(tier)).
				Dur("took", time.Since(startTime)).
				Msg("generated challenge")

			return text, domain.ProvenanceGenerated
		}

		g.log.Warn().
			Err(err).
			Str("kind", string(kind)).
			Str("mode", string(mode)).
			Str("tier", string(tier)).
			Msg("provider failed, using fallback pool")
	}

	return g.Fallback(kind, mode, tier), domain.ProvenanceFallback
}

// Fallback picks one curated entry for the combination.
func (g *Generator) Fallback(kind domain.Kind, mode domain.Mode, tier domain.Tier) string {
	entries := fallbackPool[kind][mode][tier]
	if len(entries) == 0 {
		return lastResort
	}
	return entries[g.pick(len(entries))]
}
