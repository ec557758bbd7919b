// Command rfthreat runs the automotive RF threat-detection pipeline:
// IQ stream -> Analyzer -> Signal History -> Threat Engine -> Proximity
// Correlator -> Event Emitter, with optional dashboard/MQTT bridges and
// Prometheus export.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/cwsl/rfthreat/internal/alert"
	"github.com/cwsl/rfthreat/internal/analyzer"
	"github.com/cwsl/rfthreat/internal/config"
	"github.com/cwsl/rfthreat/internal/correlate"
	"github.com/cwsl/rfthreat/internal/dashboard"
	"github.com/cwsl/rfthreat/internal/detect"
	"github.com/cwsl/rfthreat/internal/emit"
	"github.com/cwsl/rfthreat/internal/history"
	"github.com/cwsl/rfthreat/internal/iq"
	"github.com/cwsl/rfthreat/internal/metrics"
	"github.com/cwsl/rfthreat/internal/proximity"
	"github.com/cwsl/rfthreat/internal/threat"
)

// Exit codes per the error-handling design: 0 normal, 1 configuration
// error, 2 I/O failure, 3 internal invariant violation.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitIOFailure      = 2
	exitInvariantError = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := pflag.StringP("config", "c", "", "path to YAML config file (defaults built in if omitted)")
	listenAddr := pflag.String("listen", "", "TCP address to accept the inbound IQ sample stream on (default: read stdin)")
	proximityAddr := pflag.String("proximity-listen", "", "TCP address to accept the inbound proximity-tag line stream on (default: disabled)")
	dashboardListen := pflag.String("dashboard-listen", "", "override dashboard.listen from the config file and enable the dashboard bridge")
	pflag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rfthreat: %v\n", err)
		return exitConfigError
	}
	if *dashboardListen != "" {
		cfg.Dashboard.Enabled = true
		cfg.Dashboard.Listen = *dashboardListen
		if cfg.Dashboard.Path == "" {
			cfg.Dashboard.Path = "/ws"
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := correlate.NewRealClock()

	counters := metrics.New()
	if cfg.Prometheus.Enabled {
		reg := prometheus.NewRegistry()
		counters = metrics.NewWithPrometheus(reg)
		mux := http.NewServeMux()
		path := cfg.Prometheus.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go serveHTTP(ctx, "prometheus", cfg.Prometheus.Listen, mux)
	}

	source, closeSource, err := openIQSource(ctx, *listenAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rfthreat: open IQ source: %v\n", err)
		return exitIOFailure
	}
	defer closeSource()

	demux := iq.New(source, cfg.Demux.SampleRateHz, cfg.Demux.CenterFreqHz, cfg.Demux.FrameSamples(), clock, cfg.Demux.QueueCapacity)
	stopChan := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stopChan)
	}()
	go func() {
		if err := demux.Run(stopChan); err != nil {
			logf("ERROR: demux stopped: %v", err)
		}
	}()

	hist := history.New(cfg.History.MaxSize, cfg.History.RetentionSecs, clock.Now)
	engine := threat.New(
		detect.NewReplayDetector(cfg.Replay),
		detect.NewJammingDetector(cfg.Jamming),
		detect.NewBruteForceDetector(cfg.BruteForce),
		hist,
	)
	analyzerInst := analyzer.New(cfg.Analyzer)

	correlator := correlate.New(cfg.Correlation, clock)
	go correlator.Run(ctx)

	if *proximityAddr != "" {
		reader, err := proximity.Listen(ctx, *proximityAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rfthreat: open proximity source: %v\n", err)
			return exitIOFailure
		}
		go reader.Run(ctx, correlator.SubmitProximity)
	}

	emitter := emit.New(os.Stdout, cfg.Outbound.QueueCapacity)
	go func() {
		if err := emitter.Run(ctx); err != nil {
			logf("ERROR: emitter stopped: %v", err)
		}
	}()

	var dash *dashboard.Handler
	if cfg.Dashboard.Enabled {
		dash = dashboard.New()
		mux := http.NewServeMux()
		path := cfg.Dashboard.Path
		if path == "" {
			path = "/ws"
		}
		mux.Handle(path, dash)
		go serveHTTP(ctx, "dashboard", cfg.Dashboard.Listen, mux)
	}

	var alertBridge *alert.Bridge
	if cfg.MQTT.Enabled {
		alertBridge, err = alert.New(cfg.MQTT)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rfthreat: %v\n", err)
			return exitIOFailure
		}
		defer alertBridge.Close()
	}

	go fanOutCorrelatedEvents(correlator, emitter, dash, alertBridge, counters)

	analyzePipeline(ctx, demux, analyzerInst, cfg.Analyzer.WorkerDeadline(), engine, correlator, counters)

	drained, err := emitter.Drain(cfg.Outbound.ShutdownDrainDeadline())
	if err != nil {
		logf("WARN: shutdown drain incomplete after flushing %d events: %v", drained, err)
	}

	return exitOK
}

// loadConfig returns built-in defaults when path is empty, matching the
// "minimal CLI, runnable without a config file" scope decision.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// openIQSource resolves the inbound IQ byte stream: a single accepted
// TCP connection when --listen is set, otherwise stdin.
func openIQSource(ctx context.Context, listenAddr string) (source io.Reader, closeFn func(), err error) {
	if listenAddr == "" {
		return os.Stdin, func() {}, nil
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", listenAddr, err)
	}
	logf("rfthreat: waiting for IQ stream connection on %s", listenAddr)

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept()
		accepted <- acceptResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		ln.Close()
		return nil, nil, errors.New("shutdown before IQ source connected")
	case r := <-accepted:
		ln.Close()
		if r.err != nil {
			return nil, nil, fmt.Errorf("accept: %w", r.err)
		}
		logf("rfthreat: IQ stream connected from %s", r.conn.RemoteAddr())
		return r.conn, func() { r.conn.Close() }, nil
	}
}

func serveHTTP(ctx context.Context, name, addr string, handler http.Handler) {
	if addr == "" {
		logf("WARN: %s: no listen address configured, bridge disabled", name)
		return
	}
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logf("ERROR: %s: listen on %s: %v", name, addr, err)
	}
}

func logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// analyzePipeline drives the sequential per-frame pipeline stage
// (Demux -> Analyzer -> Threat Engine -> Correlator), the "Pipeline
// task" of §5. Feature extraction runs on an offloaded goroutine bounded
// by workerDeadline; a frame whose analysis exceeds the deadline is
// dropped with a warning rather than stalling subsequent frames (§5:
// "Hung FFT workers are bounded by a per-call deadline").
func analyzePipeline(
	ctx context.Context,
	demux *iq.Demux,
	analyzerInst *analyzer.Analyzer,
	workerDeadline time.Duration,
	engine *threat.Engine,
	correlator *correlate.Correlator,
	counters *metrics.Counters,
) {
	for frame := range demux.Frames() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		signal, err := analyzeWithDeadline(analyzerInst, frame, workerDeadline)
		if err != nil {
			logf("WARN: analyzer: %v", err)
			counters.IncFramesDropped()
			continue
		}
		counters.IncFramesProcessed()

		if signal == nil {
			continue
		}
		counters.IncSignalsDetected()

		event, ok := engine.Process(*signal)
		if !ok {
			continue
		}
		for _, v := range event.Verdicts {
			counters.IncVerdict(string(v.Kind))
		}
		correlator.SubmitRF(*event)
	}
}

// analyzeWithDeadline runs analyzerInst.Analyze on a worker goroutine and
// reports a timeout error if it does not complete within deadline.
func analyzeWithDeadline(analyzerInst *analyzer.Analyzer, frame iq.Frame, deadline time.Duration) (*analyzer.DetectedSignal, error) {
	if deadline <= 0 {
		return analyzerInst.Analyze(frame)
	}

	type result struct {
		signal *analyzer.DetectedSignal
		err    error
	}
	done := make(chan result, 1)
	go func() {
		signal, err := analyzerInst.Analyze(frame)
		done <- result{signal, err}
	}()

	select {
	case r := <-done:
		return r.signal, r.err
	case <-time.After(deadline):
		return nil, fmt.Errorf("analyzer: frame at ts=%.6f exceeded %s worker deadline", frame.Timestamp, deadline)
	}
}

// fanOutCorrelatedEvents drains the Correlator's output (pass-through RF
// events, CorrelationActivated/Timeout, and escalated Correlated events)
// to the Event Emitter and the optional dashboard/alert bridges.
func fanOutCorrelatedEvents(
	correlator *correlate.Correlator,
	emitter *emit.Emitter,
	dash *dashboard.Handler,
	alertBridge *alert.Bridge,
	counters *metrics.Counters,
) {
	for event := range correlator.Events() {
		emitter.Push(event)
		counters.IncEventsEmitted()
		if event.ThreatLevel == threat.LevelCritical {
			counters.IncCorrelatedEvents()
		}
		if dash != nil {
			dash.Broadcast(event)
		}
		if alertBridge != nil {
			alertBridge.Publish(event)
		}
	}
}
