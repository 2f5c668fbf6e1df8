// Package server runs the long-lived processor: the HTTP batch endpoint and,
// when configured, the Kafka change-feed consumer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sensoralarm/internal/config"
	"sensoralarm/internal/handlers"
	"sensoralarm/internal/kafka"
	"sensoralarm/internal/logger"
	"sensoralarm/internal/middleware"
	"sensoralarm/internal/pipeline"
)

// Server is the high-level coordinator for the HTTP surface and the change feed.
type Server struct {
	cfg        *config.Config
	pipeline   *pipeline.Pipeline
	consumer   *kafka.Consumer
	httpServer *http.Server
	started    time.Time
	wg         sync.WaitGroup
}

// New constructs a Server around an already built pipeline.
func New(cfg *config.Config, p *pipeline.Pipeline) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		started:  time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	return s
}

// Run starts background goroutines and blocks until context cancelled.
func (s *Server) Run(ctx context.Context) error {
	log := logger.WithComponent("server")
	log.Info().Msg("server starting")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.cfg.Kafka.Enabled() {
		consumer, err := kafka.NewConsumer(s.cfg.Kafka, s.pipeline.Handler)
		if err != nil {
			return fmt.Errorf("failed to initialize consumer: %w", err)
		}
		s.consumer = consumer
		log.Info().
			Strs("brokers", s.cfg.Kafka.Brokers).
			Str("topic", s.cfg.Kafka.Topic).
			Str("group_id", s.cfg.Kafka.GroupID).
			Msg("kafka change feed consumer initialized")

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.consumer.Run(ctx); err != nil {
				log.Error().Err(err).Msg("change feed consumer stopped")
				cancel()
			}
		}()
	}

	serveErr := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.HTTP.Addr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
			serveErr <- err
			cancel()
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportStats(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	s.shutdown()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	batchHandler := handlers.NewBatchHandler(handlers.BatchConfig{
		Processor:   s.pipeline.Handler,
		MaxBodySize: s.cfg.HTTP.MaxBodySize,
	})
	mux.Handle("/batch", middleware.Chain(
		batchHandler,
		middleware.RequestID,
		middleware.Recovery,
		middleware.Logging,
	))

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// shutdown performs graceful shutdown
func (s *Server) shutdown() {
	log := logger.WithComponent("server")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop accepting new HTTP requests; in-flight batches finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Wait for the consumer and stats loops (with timeout)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("background loops stopped")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("shutdown timeout - forcing exit")
	}

	// 3. Close the reader and the dead letter producer
	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			log.Error().Err(err).Msg("consumer close error")
		}
	}
	if err := s.pipeline.Close(); err != nil {
		log.Error().Err(err).Msg("pipeline close error")
	}

	log.Info().Msg("server stopped gracefully")
}

// reportStats periodically logs statistics
func (s *Server) reportStats(ctx context.Context) {
	log := logger.WithComponent("server")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.snapshot()
			ev := log.Info().
				Uint64("records_processed", stats.Batch.Processed).
				Uint64("records_failed", stats.Batch.Failed)
			if stats.DeadLetters != nil {
				ev = ev.
					Uint64("dead_letters_sent", stats.DeadLetters.Sent).
					Uint64("dead_letters_failed", stats.DeadLetters.Failed)
			}
			ev.Msg("stats")
		}
	}
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Batch struct {
		Processed uint64 `json:"processed"`
		Failed    uint64 `json:"failed"`
	} `json:"batch"`
	DeadLetters *struct {
		Sent   uint64 `json:"sent"`
		Failed uint64 `json:"failed"`
	} `json:"dead_letters,omitempty"`
	ChangeFeed bool   `json:"change_feed"`
	Uptime     string `json:"uptime"`
}

func (s *Server) snapshot() StatsResponse {
	var resp StatsResponse

	batch := s.pipeline.Handler.Stats()
	resp.Batch.Processed = batch.Processed
	resp.Batch.Failed = batch.Failed

	if s.pipeline.DeadLetters != nil {
		dl := s.pipeline.DeadLetters.Stats()
		resp.DeadLetters = &struct {
			Sent   uint64 `json:"sent"`
			Failed uint64 `json:"failed"`
		}{dl.MessagesSent, dl.MessagesFailed}
	}

	resp.ChangeFeed = s.cfg.Kafka.Enabled()
	resp.Uptime = time.Since(s.started).Round(time.Second).String()
	return resp
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// statsHandler returns current statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.snapshot())
}
