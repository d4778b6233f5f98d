// Command framepump drives an encoder pipeline from a capture source at the
// source's frame rate, then stops it and reports the counts.
//
//	framepump -config streamcore.yaml -duration 10s -source tone
//
// Without -config, settings come from STREAMCORE_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/streamcore/av/video"
	"github.com/opd-ai/streamcore/config"
	"github.com/opd-ai/streamcore/metrics"
	"github.com/opd-ai/streamcore/pipeline"
	"github.com/opd-ai/streamcore/source"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	duration := flag.Duration("duration", 0, "How long to pump frames (overrides config)")
	sourceKind := flag.String("source", "", fmt.Sprintf("Capture source %v (overrides config)", source.Default().Names()))
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "framepump: %v\n", err)
		os.Exit(1)
	}
	if *duration > 0 {
		cfg.Source.Duration = *duration
	}
	if *sourceKind != "" {
		cfg.Source.Kind = *sourceKind
	}
	if err := cfg.Logging.ConfigureLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "framepump: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if _, err := run(ctx, cfg, os.Stdout); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("framepump failed")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

// run pumps frames until cfg.Source.Duration elapses or ctx ends, stops the
// pipeline and writes a summary to out.
func run(ctx context.Context, cfg *config.Config, out io.Writer) (pipeline.Stats, error) {
	opts, err := cfg.Pipeline.ToOptions()
	if err != nil {
		return pipeline.Stats{}, err
	}

	src, err := source.Default().Open(cfg.Source.Kind, source.Params{
		Stream:     cfg.Pipeline.ToConfig(),
		FrameBytes: cfg.Source.BytesPerFrame,
	})
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer src.Close()

	encoder := video.NewPassthroughEncoder(nil, 0)
	opts.Processor = encoder
	opts.Diagnostics = func(d pipeline.Diagnostic) {
		logrus.WithFields(logrus.Fields{
			"function":    "run",
			"pipeline_id": d.PipelineID,
			"timestamp":   d.FrameTimestamp,
			"error":       d.Err,
		}).Log(d.Level, d.Message)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	opts.Observer = metrics.NewPipelineMetrics(reg, cfg.Metrics.Namespace, "framepump")

	p, err := pipeline.New(cfg.Pipeline.ToConfig(), opts)
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer p.Close()

	if cfg.Metrics.Enabled {
		srv := serveMetrics(cfg.Metrics.Address, reg)
		defer srv.Close()
	}

	if err := p.Start(); err != nil {
		return pipeline.Stats{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Source.Duration)
	defer cancel()

	pool := pipeline.NewBufferPool(src.FrameSize())
	pump(runCtx, p, src, pool, cfg.Source.Producers)

	stopErr := p.Stop()
	stats := p.Stats()

	fmt.Fprintf(out, "pipeline %s: source=%s submitted=%d processed=%d failed=%d dropped=%d encoded_bytes=%d buffer_allocs=%d\n",
		stats.ID, src.Name(), stats.Submitted, stats.Processed, stats.Failed, stats.Dropped,
		encoder.EncodedBytes(), pool.Allocs())

	if stopErr != nil {
		return stats, fmt.Errorf("stop pipeline: %w", stopErr)
	}
	return stats, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "serveMetrics",
				"addr":     addr,
				"error":    err.Error(),
			}).Error("Metrics server failed")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"function": "serveMetrics",
		"addr":     addr,
	}).Info("Serving metrics")

	return srv
}

// pump runs producers that read from src until ctx ends, the source fails
// or the pipeline stops accepting frames. Each frame is copied into a buffer
// from pool, which the pipeline hands back once the encoder is done with it.
func pump(ctx context.Context, p *pipeline.Pipeline, src source.Source, pool *pipeline.BufferPool, producers int) {
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(producer int) {
			defer wg.Done()
			buf := make([]byte, src.FrameSize())
			for {
				n, ts, err := src.ReadFrame(ctx, buf)
				if err != nil {
					logrus.WithFields(logrus.Fields{
						"function": "pump",
						"producer": producer,
						"source":   src.Name(),
						"error":    err.Error(),
					}).Debug("Source read ended")
					return
				}
				frame := pipeline.NewPooledFrameRecord(pool, buf[:n], ts)
				if err := p.SubmitContext(ctx, frame); err != nil {
					frame.Release()
					logrus.WithFields(logrus.Fields{
						"function":  "pump",
						"producer":  producer,
						"timestamp": ts,
						"error":     err.Error(),
					}).Debug("Producer stopping")
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
