/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/truthordare/challenge"
	"github.com/Seednode/truthordare/gateway"
	"github.com/Seednode/truthordare/repository"
	"github.com/Seednode/truthordare/session"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

const (
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

// app wires the game components together for one process.
type app struct {
	cfg     *Config
	log     zerolog.Logger
	store   *repository.Store
	coord   *session.Coordinator
	manager *gateway.Manager
	ws      *gateway.Server
}

func newApp(cfg *Config, log zerolog.Logger) *app {
	store := repository.New()

	gen := challenge.New(
		challenge.NewGeminiProvider(cfg.gemini()),
		challenge.WithTimeout(cfg.generatorTimeout),
		challenge.WithLogger(log.With().Str("component", "generator").Logger()),
	)

	manager := gateway.NewManager(log.With().Str("component", "gateway").Logger())

	coord := session.New(store, gen, manager,
		session.WithLogger(log.With().Str("component", "games").Logger()),
		session.WithReservationTTL(cfg.reservationTTL()),
	)

	ws := gateway.NewServer(manager, coord,
		gateway.WithLogger(log),
		gateway.WithRateLimit(cfg.rateLimit, cfg.rateBurst),
	)

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		coord:   coord,
		manager: manager,
		ws:      ws,
	}
}

func (a *app) close() {
	a.ws.Close()
	a.coord.Close()
}

// reapLoop ends rooms that have been idle longer than the session timeout
// and purges them on a later pass.
func (a *app) reapLoop(ctx context.Context) {
	if a.cfg.sessionTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(a.cfg.sessionTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-a.cfg.sessionTimeout)
			if n := a.coord.ReapIdle(ctx, cutoff); n > 0 {
				a.log.Info().Str("component", "games").Int("rooms", n).Msg("reaped idle rooms")
			}
		}
	}
}

func serveVersion(cfg *Config, log zerolog.Logger, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("truthordare v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		log.Debug().
			Str("component", "serve").
			Str("size", humanReadableSize(int64(written))).
			Str("remote", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("version page")
	}
}

func newRouter(a *app, errs chan<- error) *httprouter.Router {
	cfg := a.cfg

	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		a.log.Error().Str("component", "serve").Interface("panic", i).Str("path", r.URL.Path).Msg("handler panicked")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, errs))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, a.log, errs))

	mux.GET(cfg.prefix+"/ws", a.ws.Handle())

	registerAPI(a, mux, errs)

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}

func ServePage(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log := newLogger(cfg, os.Stdout)

	log.Info().Str("component", "start").Msgf("truthordare v%s", releaseVersion)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	a := newApp(cfg, log)
	defer a.close()

	errs := make(chan error, 64)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				log.Debug().Str("component", "serve").Err(err).Msg("write failed")
			}
		}
	}()

	go a.reapLoop(ctx)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(a, errs),
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: timeout,
	}

	go func() {
		var err error

		log.Info().Str("component", "serve").Msgf("listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)

		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Str("component", "serve").Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
