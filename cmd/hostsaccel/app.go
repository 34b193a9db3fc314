package main

import (
	"context"
	"errors"

	"github.com/cuemby/hostsaccel/pkg/benchmark"
	"github.com/cuemby/hostsaccel/pkg/config"
	"github.com/cuemby/hostsaccel/pkg/events"
	"github.com/cuemby/hostsaccel/pkg/hosts"
	"github.com/cuemby/hostsaccel/pkg/log"
	"github.com/cuemby/hostsaccel/pkg/metrics"
	"github.com/cuemby/hostsaccel/pkg/probe"
	"github.com/cuemby/hostsaccel/pkg/session"
	"github.com/cuemby/hostsaccel/pkg/sources"
	"github.com/cuemby/hostsaccel/pkg/state"
	"github.com/cuemby/hostsaccel/pkg/watchdog"
)

// app holds every component a command needs, built from cfg
type app struct {
	cfg        *config.Config
	hosts      *hosts.Store
	store      *state.BoltStore
	events     *events.Broker
	prober     *probe.Prober
	aggregator *sources.Aggregator
	engine     *benchmark.Engine
	session    *session.Session
}

func newApp(cfg *config.Config) *app {
	a := &app{
		cfg:    cfg,
		hosts:  hosts.NewStore(cfg.HostsFile),
		events: events.NewBroker(),
	}
	a.events.Start()

	// the state store only adds crash recovery and history, so a second
	// instance holding the lock does not stop this one
	store, err := state.NewBoltStore(cfg.StateDir)
	if err != nil {
		logger := log.WithComponent("state")
		logger.Warn().
			Err(err).
			Str("state_dir", cfg.StateDir).
			Msg("state store unavailable, continuing without it")
	} else {
		a.store = store
	}

	a.prober = newProber(cfg)
	a.aggregator = newAggregator(cfg, a.events)

	a.engine = benchmark.NewEngine(a.prober)
	a.engine.Concurrency = cfg.Benchmark.Concurrency
	a.engine.TopN = cfg.Benchmark.TopN
	a.engine.Weights = cfg.Benchmark.Weights

	sessionCfg := session.Config{
		Hosts:   a.hosts,
		Flusher: hosts.NewCommandFlusher(),
		Events:  a.events,
	}
	if a.store != nil {
		sessionCfg.Journal = a.store
	}
	a.session = session.New(sessionCfg)

	return a
}

func newProber(cfg *config.Config) *probe.Prober {
	p := probe.NewProber()
	p.Port = cfg.Probe.Port
	p.TCPTimeout = cfg.Probe.TCPTimeout
	p.HTTPTimeout = cfg.Probe.HTTPTimeout
	p.ValidateTimeout = cfg.Probe.TLSTimeout
	p.Weights = cfg.Benchmark.Weights
	p.InsecureSkipVerify = cfg.Probe.InsecureSkipVerify
	p.Pinger = &probe.ICMPPinger{
		Count:   cfg.Probe.PingCount,
		Timeout: cfg.Probe.PingTimeout,
	}
	return p
}

func newAggregator(cfg *config.Config, broker *events.Broker) *sources.Aggregator {
	general := make([]sources.Source, 0, len(cfg.Sources.General))
	for _, s := range cfg.Sources.General {
		general = append(general, newHTTPSource(cfg, s))
	}

	cache := sources.NewEmergencyCache(cfg.CacheFile, cfg.Sources.CacheMaxAge)
	agg := sources.NewAggregator(general, cache)
	agg.Exclude = []string{cfg.Watchdog.Target}
	agg.Events = broker

	for _, s := range cfg.Sources.Remediation {
		agg.Remediation = append(agg.Remediation, newHTTPSource(cfg, s))
	}
	if len(cfg.Sources.DNSUpstreams) > 0 {
		dns := sources.NewDNSSource(cfg.Sources.DNSUpstreams)
		dns.Timeout = cfg.Sources.Timeout
		agg.Resolvers = append(agg.Resolvers, dns)
	}
	return agg
}

func newHTTPSource(cfg *config.Config, s config.Source) *sources.HTTPSource {
	src := sources.NewHTTPSource(s.Name, s.URL, cfg.Sources.Keyword)
	src.Timeout = cfg.Sources.Timeout
	return src
}

// watchdog builds the remediation loop around the session. The rate limit
// is shared with other processes only while the state store is open.
func (a *app) watchdog() *watchdog.Watchdog {
	w := watchdog.New(a.cfg.Watchdog.Target, a.aggregator, a.prober, a.session)
	w.Interval = a.cfg.Watchdog.Interval
	w.Events = a.events
	if a.store != nil {
		w.Store = a.store
	}
	return w
}

// prepareWrite checks privilege and restores any override left behind by a
// killed run before this process touches the hosts file
func (a *app) prepareWrite(ctx context.Context) error {
	if err := a.hosts.CheckWritable(); err != nil {
		if errors.Is(err, hosts.ErrPermission) {
			log.Error("hostsaccel needs root or administrator rights to modify " + a.hosts.Location())
		}
		return err
	}

	recovered, err := a.session.RecoverPending(ctx)
	if err != nil {
		return err
	}
	if recovered {
		log.Warn("recovered the hosts file from an interrupted run")
	}
	return nil
}

func (a *app) close() {
	a.events.Stop()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger := log.WithComponent("state")
			logger.Warn().Err(err).Msg("failed to close state store")
		}
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil {
		logger := log.WithComponent("metrics")
		logger.Warn().Err(err).Msg("failed to write metrics textfile")
	}
}
