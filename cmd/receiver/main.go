package main

import (
	"context"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"tvcast/receiver/internal/api"
	"tvcast/receiver/internal/config"
	"tvcast/receiver/internal/render"
	sigclient "tvcast/receiver/internal/signal"
	"tvcast/receiver/internal/viewer"
	"tvcast/receiver/internal/webrtc"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	// stdout may carry the video stream
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatal().Err(err).Str("module", "main").Msg("config")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 1: Media output
	out, closeOut, err := openOutput(cfg.Output)
	if err != nil {
		log.Fatal().Err(err).Str("module", "main").Msg("open output")
	}
	defer closeOut()
	sink := render.NewSink(out)

	// Step 2: Engine factory, one peer connection per offer
	engines, err := webrtc.NewFactory(webrtc.Config{
		ICEServers:    cfg.ICEServers,
		LoggerFactory: webrtc.LoggerFactory{Level: cfg.EngineLogLevel},
	})
	if err != nil {
		log.Fatal().Err(err).Str("module", "main").Msg("create engine factory")
	}

	// Step 3: Create viewer (implements domain.Handler and domain.EngineEvents)
	v := viewer.New(engines, sink)

	// Step 4: Create signal client with viewer as handler
	sc := sigclient.NewClient(sigclient.Config{
		URL:          cfg.SignalURL,
		Identity:     cfg.Identity,
		PingInterval: cfg.PingInterval,
	}, v)

	// Step 5: Complete the circular dependency
	v.SetSignaler(sc)

	// Step 6: Optional status endpoint
	var status *api.Server
	if cfg.StatusAddr != "" {
		status = api.NewServer(cfg.StatusAddr, v)
		status.Start()
	}

	// Step 7: Connect signaling and keep it up per policy. Run only errors
	// when the first dial fails with reconnect disabled or when reconnect
	// attempts are exhausted; both end the process.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		err := sc.Run(runCtx, sigclient.ReconnectPolicy{
			Delay:       cfg.ReconnectDelay,
			MaxAttempts: cfg.ReconnectAttempts,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("module", "main").Msg("control channel")
			cancel()
		}
	}()

	log.Info().
		Str("module", "main").
		Str("id", cfg.Identity.ID).
		Str("signal", cfg.SignalURL).
		Msg("receiver started")

	<-runCtx.Done()
	log.Info().Str("module", "main").Msg("shutting down")

	v.Shutdown()
	if status != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		if err := status.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Str("module", "main").Msg("status endpoint")
		}
		done()
	}
	sink.Wait()

	log.Info().Str("module", "main").Msg("done")
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, path)
	}
	return f, func() { _ = f.Close() }, nil
}
