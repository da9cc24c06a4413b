package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"
	"logcourier/src/internal/filter"
	"logcourier/src/internal/format"
	"logcourier/src/internal/netsend"
	"logcourier/src/internal/route"
	"logcourier/src/internal/source"
	"logcourier/src/internal/target"

	"github.com/lixenwraith/log"
)

// Service owns the whole relay: ingest sources, the route table and
// every target stack behind it. It is built once from validated
// configuration and torn down by Shutdown.
type Service struct {
	cfg     *config.Config
	sources []source.Source
	table   *route.Table

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *log.Logger

	// Statistics
	totalDispatched     atomic.Uint64
	totalDeliveryErrors atomic.Uint64
}

// New builds the service from configuration: targets with their
// wrapper stacks, the per-level route table, and the ingest sources.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)
	s := &Service{
		cfg:    cfg,
		ctx:    serviceCtx,
		cancel: cancel,
		logger: logger,
	}

	targets := make(map[string]target.Target, len(cfg.Targets))
	chains := make(map[string]*filter.Chain, len(cfg.Targets))
	for i := range cfg.Targets {
		tc := &cfg.Targets[i]
		tgt, chain, err := s.buildTarget(tc)
		if err != nil {
			cancel()
			s.closeTargets(targets)
			return nil, fmt.Errorf("target %q: %w", tc.Name, err)
		}
		targets[tc.Name] = tgt
		chains[tc.Name] = chain
	}

	table, err := s.buildTable(targets, chains)
	if err != nil {
		cancel()
		s.closeTargets(targets)
		return nil, err
	}
	s.table = table

	for i := range cfg.Sources {
		src, err := s.createSource(&cfg.Sources[i])
		if err != nil {
			cancel()
			table.CloseAll()
			return nil, fmt.Errorf("source[%d]: %w", i, err)
		}
		s.sources = append(s.sources, src)
	}

	return s, nil
}

// Start begins ingesting and dispatching entries.
func (s *Service) Start() error {
	for _, src := range s.sources {
		entries := src.Subscribe()
		s.wg.Add(1)
		go s.pump(src, entries)
	}
	for _, src := range s.sources {
		if err := src.Start(); err != nil {
			return fmt.Errorf("failed to start %s source: %w", src.GetStats().Type, err)
		}
	}
	s.logger.Info("msg", "Service started",
		"component", "service",
		"sources", len(s.sources),
		"targets", len(s.table.Targets()))
	return nil
}

// pump dispatches entries from one source until its channel closes.
func (s *Service) pump(src source.Source, entries <-chan core.LogEntry) {
	defer s.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("msg", "Panic in dispatch loop",
				"component", "service",
				"source", src.GetStats().Type,
				"panic", r)
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case entry, ok := <-entries:
			if !ok {
				return
			}
			s.totalDispatched.Add(1)
			done := core.NewContinuation(func(err error) {
				if err != nil {
					s.totalDeliveryErrors.Add(1)
					s.logger.Debug("msg", "Entry delivery failed",
						"component", "service",
						"source", entry.Source,
						"error", err)
				}
			})
			s.table.Dispatch(entry, done)
		}
	}
}

// Shutdown stops ingest, flushes every target within the timeout, then
// closes them. Safe to call once.
func (s *Service) Shutdown(timeout time.Duration) {
	s.logger.Info("msg", "Service shutdown initiated")

	for _, src := range s.sources {
		src.Stop()
	}
	s.wg.Wait()
	s.cancel()

	flushed := make(chan struct{})
	s.table.FlushAll(core.NewContinuation(func(error) {
		close(flushed)
	}))
	select {
	case <-flushed:
	case <-time.After(timeout):
		s.logger.Warn("msg", "Flush timed out during shutdown",
			"component", "service",
			"timeout", timeout)
	}

	s.table.CloseAll()

	s.logger.Info("msg", "Service shutdown complete",
		"total_dispatched", s.totalDispatched.Load(),
		"delivery_errors", s.totalDeliveryErrors.Load())
}

// GetStats returns statistics for the whole relay.
func (s *Service) GetStats() map[string]any {
	sourceStats := make([]source.SourceStats, 0, len(s.sources))
	for _, src := range s.sources {
		sourceStats = append(sourceStats, src.GetStats())
	}
	return map[string]any{
		"total_dispatched": s.totalDispatched.Load(),
		"delivery_errors":  s.totalDeliveryErrors.Load(),
		"double_resolves":  core.DoubleResolveCount(),
		"sources":          sourceStats,
		"targets":          s.table.Stats(),
	}
}

// buildTarget assembles one target stack from the inside out: the
// concrete destination, post-filtering rules around it, and the async
// wrapper in front. The returned chain guards the target in the route
// table; nil means accept everything.
func (s *Service) buildTarget(tc *config.TargetConfig) (target.Target, *filter.Chain, error) {
	formatter, err := format.New(tc, s.logger)
	if err != nil {
		return nil, nil, err
	}

	var tgt target.Target
	switch tc.Type {
	case "console":
		snk, err := target.NewConsoleSink(tc.Console, formatter, s.logger)
		if err != nil {
			return nil, nil, err
		}
		tgt = target.FromSink("console", snk, s.logger)

	case "file":
		snk, err := target.NewFileSink(tc.File, formatter, s.logger)
		if err != nil {
			return nil, nil, err
		}
		tgt = target.FromSink("file", snk, s.logger)

	case "network":
		transport, err := netsend.NewTransport(tc.Network, s.logger)
		if err != nil {
			return nil, nil, err
		}
		senderCfg, err := netsend.SenderConfigFromOptions(tc.Network)
		if err != nil {
			return nil, nil, err
		}
		sender, err := netsend.NewSender(transport, senderCfg, s.logger)
		if err != nil {
			return nil, nil, err
		}
		tgt, err = target.NewNetworkTarget(sender, formatter, s.logger)
		if err != nil {
			sender.Close()
			return nil, nil, err
		}

	default:
		return nil, nil, fmt.Errorf("unknown target type: %s", tc.Type)
	}

	if len(tc.Rules) > 0 {
		tgt, err = target.NewPostFilter(tgt, tc.Rules, nil, s.logger)
		if err != nil {
			return nil, nil, err
		}
	}

	if tc.Async != nil && tc.Async.Enabled {
		asyncCfg, err := target.AsyncConfigFromOptions(tc.Async)
		if err != nil {
			return nil, nil, err
		}
		tgt, err = target.NewAsync(tgt, asyncCfg, s.logger)
		if err != nil {
			return nil, nil, err
		}
	}

	var chain *filter.Chain
	if len(tc.Filters) > 0 || tc.DefaultAction != "" {
		chain, err = filter.NewChain(tc.Filters, tc.DefaultAction, s.logger)
		if err != nil {
			return nil, nil, err
		}
	}

	return tgt, chain, nil
}

// buildTable turns route configurations into the per-level dispatch
// lists, preserving target order within each route.
func (s *Service) buildTable(targets map[string]target.Target, chains map[string]*filter.Chain) (*route.Table, error) {
	builder := route.NewBuilder(s.logger)

	for i := range s.cfg.Routes {
		rc := &s.cfg.Routes[i]
		levels, err := routeLevels(rc)
		if err != nil {
			return nil, fmt.Errorf("route[%d]: %w", i, err)
		}
		for _, name := range rc.Targets {
			tgt, ok := targets[name]
			if !ok {
				return nil, fmt.Errorf("route[%d]: unknown target %q", i, name)
			}
			builder.Add(levels, tgt, chains[name])
		}
	}

	return builder.Build(), nil
}

// routeLevels resolves a route's level set: min_level expands to that
// level and above.
func routeLevels(rc *config.RouteConfig) ([]core.Level, error) {
	if rc.MinLevel != "" {
		min, err := core.ParseLevel(rc.MinLevel)
		if err != nil {
			return nil, err
		}
		var levels []core.Level
		for l := min; l <= core.LevelFatal; l++ {
			levels = append(levels, l)
		}
		return levels, nil
	}

	levels := make([]core.Level, 0, len(rc.Levels))
	for _, name := range rc.Levels {
		l, err := core.ParseLevel(name)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, nil
}

// createSource is a factory for one ingest source.
func (s *Service) createSource(cfg *config.SourceConfig) (source.Source, error) {
	switch cfg.Type {
	case "stdin":
		return source.NewStdinSource(cfg.BufferSize, s.logger)
	case "tcp":
		return source.NewTCPSource(cfg.TCP, cfg.BufferSize, s.logger)
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}

func (s *Service) closeTargets(targets map[string]target.Target) {
	for _, tgt := range targets {
		tgt.Close()
	}
}
