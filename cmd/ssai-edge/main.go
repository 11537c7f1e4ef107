// Command ssai-edge serves SSAI/SGAI-rewritten HLS manifests for a set of
// live channels: it reads channel config from SQLite, watches each
// channel for SCTE-35 with the monitor loop, and answers manifest,
// segment, cue, health, and metrics requests over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liveadsvc/ssai-edge/internal/beacon"
	"github.com/liveadsvc/ssai-edge/internal/channelstore"
	"github.com/liveadsvc/ssai-edge/internal/config"
	"github.com/liveadsvc/ssai-edge/internal/cue"
	"github.com/liveadsvc/ssai-edge/internal/decision"
	"github.com/liveadsvc/ssai-edge/internal/health"
	"github.com/liveadsvc/ssai-edge/internal/kvstore"
	"github.com/liveadsvc/ssai-edge/internal/monitor"
	"github.com/liveadsvc/ssai-edge/internal/originfetch"
	"github.com/liveadsvc/ssai-edge/internal/pipeline"
	"github.com/liveadsvc/ssai-edge/internal/serializer"
	"github.com/liveadsvc/ssai-edge/internal/telemetry"
)

// shutdownTimeout bounds how long run waits for in-flight requests to
// drain once the process receives a termination signal.
const shutdownTimeout = 15 * time.Second

func main() {
	dsn := flag.String("channel-store", "", "path to the channel config SQLite database (overrides CHANNEL_STORE_DSN)")
	flag.Parse()

	cfg := config.Load()
	if *dsn != "" {
		cfg.ChannelStoreDSN = *dsn
	}
	if cfg.ChannelStoreDSN == "" {
		cfg.ChannelStoreDSN = "channels.db"
	}

	if err := run(cfg, cfg.ChannelStoreDSN); err != nil {
		log.Fatalf("ssai-edge: %v", err)
	}
}

func run(cfg *config.Config, dsn string) error {
	channels, err := channelstore.OpenSQLiteStore(dsn)
	if err != nil {
		return err
	}
	defer channels.Close()

	metrics := telemetry.New()
	kv := kvstore.NewMemoryStore()
	fetcher := originfetch.New()
	dec := decision.NewClient(cfg.DecisionURL, 20)
	dec.Metrics = metrics
	pub := beacon.New(cfg.BeaconURL)
	ser := serializer.New()
	auth := &pipeline.Authenticator{
		PublicKey:      []byte(cfg.JWTPublicKey),
		Algorithm:      cfg.JWTAlgorithm,
		DevAllowNoAuth: cfg.DevAllowNoAuth,
	}

	ph := pipeline.New(channels, kv, dec, pub, fetcher, auth, ser)
	ph.Metrics = metrics
	ph.OnMasterBitrates = func(ctx context.Context, channelID string, bitratesBps []int) {
		log.Printf("pipeline: channel %s bitrate ladder detected: %v", channelID, bitratesBps)
	}

	cueHandler := &cue.Handler{Pipeline: ph, Auth: auth}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := monitor.New(monitor.Config{
		PollInterval: cfg.SctePollInterval,
		StartDelay:   2 * time.Second,
	}, channels, fetcher, dec, kv)
	mon.Metrics = metrics

	ids, err := channels.ListIDs(ctx)
	if err != nil {
		log.Printf("ssai-edge: list channel ids: %v", err)
	}
	for _, id := range ids {
		mon.Watch(ctx, id)
	}
	log.Printf("ssai-edge: monitor loop watching %d channels", len(ids))

	mux := http.NewServeMux()
	mux.Handle("/cue", cueHandler)
	ph.RegisterMetaRoutes(mux, http.HandlerFunc(health.Handler), metrics.Handler())

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: logRequests(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("ssai-edge: listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sig:
		log.Println("ssai-edge: shutting down")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// logRequests wraps mux with a request-line log line, matching the
// teacher's gateway logging convention at the outermost handler layer.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
