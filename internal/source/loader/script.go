package loader

import (
	"context"

	"github.com/GriffinCanCode/microhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/microhost/internal/source"
	"go.uber.org/zap"
)

// ItemFunc receives one successfully retrieved script
type ItemFunc func(url string, info *source.ScriptInfo, code string)

// Options configures a ScriptLoader
type Options struct {
	Retriever source.Retriever
	Cache     *source.GlobalCache
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
	// Concurrency bounds in-flight retrievals per run, 0 = unbounded
	Concurrency int
}

// ScriptLoader retrieves the external scripts an app needs before it can
// start executing.
type ScriptLoader struct {
	retriever   source.Retriever
	cache       *source.GlobalCache
	metrics     *monitoring.Metrics
	logger      *zap.Logger
	concurrency int
}

// New creates a ScriptLoader. opts.Retriever is required.
func New(opts Options) *ScriptLoader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := opts.Cache
	if cache == nil {
		cache = source.NewGlobalCache()
	}
	return &ScriptLoader{
		retriever:   opts.Retriever,
		cache:       cache,
		metrics:     opts.Metrics,
		logger:      logger.Named("scripts"),
		concurrency: opts.Concurrency,
	}
}

// Run retrieves the registered scripts of app.
//
// Inline scripts are ignored. A script already in the global cache gets its
// code from there and produces no onItemSuccess call. Remaining scripts are
// fetched when they are neither async nor deferred, or when app is
// prefetching; the rest are left for whoever executes them.
//
// Retrievals run concurrently. onItemSuccess is called for each success, in
// the order they settle; failures are logged. onBatchDone is called once
// after all of them, or before Run returns when nothing was fetched.
func (l *ScriptLoader) Run(ctx context.Context, app source.App, onItemSuccess ItemFunc, onBatchDone func()) {
	tasks := l.selectScripts(app)
	name := app.Name()

	source.Stream(ctx, l.concurrency, tasks,
		func(ctx context.Context, url string) (string, error) {
			timer := monitoring.NewTimer(l.metrics, monitoring.KindScript)
			code, err := l.retriever.Fetch(ctx, url, name)
			timer.Stop(err)
			return code, err
		},
		func(t source.Task[*source.ScriptInfo], code string) {
			onItemSuccess(t.URL, t.Info, code)
		},
		func(t source.Task[*source.ScriptInfo], err error) {
			l.logger.Error("failed to fetch script",
				zap.String("app", name),
				zap.String("url", t.URL),
				zap.Error(err),
			)
		},
		onBatchDone,
	)
}

func (l *ScriptLoader) selectScripts(app source.App) []source.Task[*source.ScriptInfo] {
	var tasks []source.Task[*source.ScriptInfo]

	for _, e := range app.Source().Scripts.Entries() {
		info := e.Info
		if !info.IsExternal {
			continue
		}

		// an empty cached text counts as a miss
		if code, ok := l.cache.Scripts.Get(e.URL); ok && code != "" {
			l.metrics.RecordCacheLookup(monitoring.KindScript, monitoring.TierGlobal, true)
			info.SetCode(code)
			continue
		}
		l.metrics.RecordCacheLookup(monitoring.KindScript, monitoring.TierGlobal, false)

		if (!info.Defer && !info.Async) || app.IsPrefetch() {
			tasks = append(tasks, source.Task[*source.ScriptInfo]{URL: e.URL, Info: info})
		}
	}

	l.logger.Debug("selected scripts",
		zap.String("app", app.Name()),
		zap.Int("registered", app.Source().Scripts.Len()),
		zap.Int("fetching", len(tasks)),
	)
	return tasks
}
