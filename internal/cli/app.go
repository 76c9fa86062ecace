package cli

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/wilson323/zk-agent-sub004/internal/cache"
	"github.com/wilson323/zk-agent-sub004/internal/config"
	"github.com/wilson323/zk-agent-sub004/internal/logging"
	"github.com/wilson323/zk-agent-sub004/internal/notify"
	"github.com/wilson323/zk-agent-sub004/internal/orchestrator"
	"github.com/wilson323/zk-agent-sub004/internal/review"
	"github.com/wilson323/zk-agent-sub004/internal/rulecheck"
	"github.com/wilson323/zk-agent-sub004/internal/rules"
	"github.com/wilson323/zk-agent-sub004/internal/scanner"
	"github.com/wilson323/zk-agent-sub004/internal/threat"
)

// App wires the engine's services for one command invocation.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Cache        cache.Store
	Validator    *rulecheck.Validator
	Catalog      *rules.Catalog
	Scanner      *scanner.Scanner
	Threat       *threat.Engine
	Orchestrator *orchestrator.Orchestrator
	Tracker      *review.Tracker
	Notifier     *notify.Dispatcher
}

// buildApp constructs the full service stack. Redis is optional: when the
// endpoint is absent or unreachable the in-memory cache takes over.
func buildApp(configPath string, rulesPath string, verbose bool) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(verbose)
	if err != nil {
		return nil, err
	}

	var store cache.Store
	if cfg.Cache.RedisAddr != "" {
		if rc, err := cache.NewRedis(cfg.Cache.RedisAddr, logger); err == nil {
			store = rc
		}
	}
	if store == nil {
		store = cache.NewMemory()
	}

	notifier := notify.NewDispatcher(logger)
	for _, ch := range cfg.Notify {
		notifier.Register(notify.NewWebhook(ch.Name, ch.URL, &http.Client{}))
	}

	engine := threat.NewEngine(threat.Config{
		HistoryWindow: cfg.Threat.HistoryWindow.Std(),
		Retention:     cfg.Threat.Retention.Std(),
		BlockTTL:      cfg.Threat.BlockTTL.Std(),
		AlertCooldown: cfg.Threat.AlertCooldown.Std(),
		AlertChannels: cfg.Threat.AlertChannels,
	}, notifier, store, logger)

	validator := rulecheck.New()
	catalog := rules.NewCatalog(validator.AdmitFunc(), logger)
	if _, errs := catalog.LoadBuiltin(); len(errs) > 0 {
		for _, e := range errs {
			logger.Warn("builtin rule rejected", zap.Error(e))
		}
	}
	customPath := rulesPath
	if customPath == "" {
		customPath = cfg.Scan.RulesPath
	}
	if customPath != "" {
		if _, errs := catalog.LoadPath(customPath); len(errs) > 0 {
			for _, e := range errs {
				logger.Warn("custom rule rejected", zap.Error(e))
			}
		}
	}

	sc := scanner.New(catalog, store, engine, logger)
	orch := orchestrator.New(sc, notifier, engine, logger)
	orch.Workers = cfg.Scan.Workers
	orch.PerFileTimeout = cfg.Scan.PerFileTimeout.Std()

	audit := review.NewAuditLog(store, logger)
	tracker := review.NewTracker(audit, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Cache:        store,
		Validator:    validator,
		Catalog:      catalog,
		Scanner:      sc,
		Threat:       engine,
		Orchestrator: orch,
		Tracker:      tracker,
		Notifier:     notifier,
	}, nil
}

func (a *App) Close() {
	_ = a.Logger.Sync()
}
