package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/deposit-watcher/internal/core/config"
	"github.com/vietddude/deposit-watcher/internal/core/cursor"
	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/indexing/emitter"
	"github.com/vietddude/deposit-watcher/internal/indexing/filter"
	"github.com/vietddude/deposit-watcher/internal/indexing/health"
	"github.com/vietddude/deposit-watcher/internal/indexing/indexer"
	"github.com/vietddude/deposit-watcher/internal/indexing/recovery"
	"github.com/vietddude/deposit-watcher/internal/indexing/reorg"
	"github.com/vietddude/deposit-watcher/internal/infra/chain"
	"github.com/vietddude/deposit-watcher/internal/infra/chain/evm"
	"github.com/vietddude/deposit-watcher/internal/infra/kafka"
	"github.com/vietddude/deposit-watcher/internal/infra/rpc/provider"
	"github.com/vietddude/deposit-watcher/internal/infra/rpc/routing"
	"github.com/vietddude/deposit-watcher/internal/infra/telegram"
)

// Watcher is the main application struct that manages the indexer lifecycle.
type Watcher struct {
	cfg          *config.AppConfig
	store        *Storage
	rpc          provider.RPCProvider
	reader       chain.Reader
	tracker      *cursor.Tracker
	pipeline     *indexer.Pipeline
	emitters     *emitter.Multi
	kafkaOut     emitter.Emitter
	publisher    *kafka.Publisher
	listener     *telegram.Listener
	healthMon    *health.Monitor
	healthServer *health.Server
	log          *slog.Logger
}

// Options replaces parts of the wiring, mostly for tests.
type Options struct {
	// Reader overrides the JSON-RPC chain reader built from chain.rpc_url.
	Reader chain.Reader
	// Storage overrides OpenStorage.
	Storage *Storage
}

// NewWatcher creates a new Watcher instance with all dependencies initialized.
// Storage failures are returned; the caller treats them as fatal.
func NewWatcher(ctx context.Context, cfg *config.AppConfig, opts Options) (*Watcher, error) {
	w := &Watcher{cfg: cfg, log: slog.Default()}

	// 1. Storage
	w.store = opts.Storage
	if w.store == nil {
		store, err := OpenStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		w.store = store
	}

	// 2. Chain reader
	w.reader = opts.Reader
	if w.reader == nil {
		w.rpc = provider.NewHTTPProvider(cfg.Chain.Name, cfg.Chain.RPCURL, cfg.Chain.RPCTimeout)
		retry := routing.DefaultRetryConfig
		retry.MaxAttempts = cfg.Chain.MaxAttempts
		w.reader = evm.NewEVMAdapter(w.rpc, retry)
	}

	contracts, err := filter.NewContractFilter(cfg.Chain.DepositContract)
	if err != nil {
		w.closeStore()
		return nil, fmt.Errorf("deposit contract: %w", err)
	}

	// 3. Outputs
	dispatchCfg := emitter.DispatcherConfig{
		QueueSize: cfg.Notifications.QueueSize,
		Workers:   cfg.Notifications.Workers,
	}

	var outputs []emitter.Emitter
	if cfg.Telegram.Enabled() {
		bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.APIURL, cfg.Telegram.HTTPTimeout)
		if err != nil {
			w.closeStore()
			return nil, err
		}
		slog.Info("telegram bot connected", "username", bot.Username())
		notifier := emitter.NewNotifier(bot, w.store.Subscriptions, "telegram", cfg.Notifications.SendTimeout)
		outputs = append(outputs, emitter.NewDispatcher(notifier, dispatchCfg))
		w.listener = telegram.NewListener(
			bot,
			emitter.NewSubscriptions(w.store.Subscriptions, bot),
			cfg.Telegram.PollTimeout,
		)
	} else {
		slog.Warn("telegram.token not set, notifications disabled")
	}

	if cfg.KafkaEnabled() {
		publisher, err := kafka.NewPublisher(cfg.Kafka)
		if err != nil {
			w.closeOutputs(outputs)
			w.closeStore()
			return nil, err
		}
		w.publisher = publisher
		w.kafkaOut = emitter.NewDispatcher(publisher, dispatchCfg)
		outputs = append(outputs, w.kafkaOut)
	}
	w.emitters = emitter.NewMulti(outputs...)

	// 4. Indexing components
	w.tracker = cursor.NewTracker(w.store.Blocks, cfg.Tracker.Lookback)

	var out emitter.Emitter
	if w.emitters.Len() > 0 {
		out = w.emitters
	}
	processor := indexer.NewProcessor(indexer.ProcessorConfig{
		Reader:          w.reader,
		Filter:          contracts,
		Deposits:        w.store.Deposits,
		Cursor:          w.tracker,
		Emitter:         out,
		SuppressReplays: cfg.Tracker.SuppressReplays,
	})

	detector := reorg.NewDetector(
		reorg.Config{CheckDepth: cfg.Tracker.CheckDepth},
		w.reader,
		w.store.Deposits,
		processor.Replay,
	)
	if w.kafkaOut != nil {
		detector.SetInvalidateCallback(w.publishInvalidation)
	}

	recoveryHandler := recovery.NewHandler(
		w.store.Failed,
		func(ctx context.Context, blockNum uint64) error {
			_, err := processor.ProcessBlock(ctx, blockNum)
			return err
		},
		recovery.DefaultBackoff(recovery.RPCClassifier),
	)

	w.pipeline = indexer.NewPipeline(indexer.Config{
		Reader:       w.reader,
		Cursor:       w.tracker,
		Processor:    processor,
		Reorg:        detector,
		Recovery:     recoveryHandler,
		PollInterval: cfg.Tracker.PollInterval,
		ErrorBackoff: cfg.Tracker.ErrorBackoff,
	})
	w.pipeline.SetTransitionCallback(func(t indexer.Transition) {
		if t.To == indexer.StateBackoff {
			w.log.Warn("pipeline backing off", "from", t.From, "for", cfg.Tracker.ErrorBackoff)
		}
	})

	// 5. Health
	w.healthMon = health.NewMonitor(w.tracker, recoveryHandler, w.reader)
	if db := w.store.DB(); db != nil {
		w.healthMon.AddCheck("database", db.Health)
	}
	if rc := w.store.Redis(); rc != nil {
		w.healthMon.AddCheck("redis", rc.Ping)
	}
	w.healthServer = health.NewServer(w.healthMon, cfg.Server.Port)

	w.log.Info("Watcher initialized",
		"chain", cfg.Chain.Name,
		"contracts", contracts.Addresses(),
		"storage", w.store.Backend,
		"failed_blocks", w.store.FailedBackend,
		"outputs", w.emitters.Len(),
	)
	return w, nil
}

// Pipeline exposes the poll loop.
func (w *Watcher) Pipeline() *indexer.Pipeline { return w.pipeline }

// Storage exposes the repositories.
func (w *Watcher) Storage() *Storage { return w.store }

// Run starts every component and blocks until ctx is cancelled or one of
// them fails, then shuts everything down.
func (w *Watcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if db := w.store.DB(); db != nil {
		db.StartMetricsCollector(gctx)
	}

	g.Go(func() error {
		return w.healthServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.healthServer.Stop(shutdownCtx)
	})

	g.Go(func() error {
		return w.pipeline.Start(gctx)
	})

	if w.listener != nil {
		g.Go(func() error {
			return w.listener.Run(gctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(err, w.Close())
}

// Close drains the dispatchers and releases connections. Safe after Run.
func (w *Watcher) Close() error {
	w.log.Info("Stopping Watcher...")
	_ = w.pipeline.Stop()

	var errs []error
	// dispatchers first so queued events still reach the producer
	errs = append(errs, w.emitters.Close())
	if w.publisher != nil {
		errs = append(errs, w.publisher.Close())
	}
	if w.rpc != nil {
		errs = append(errs, w.rpc.Close())
	}
	errs = append(errs, w.store.Close())
	return errors.Join(errs...)
}

func (w *Watcher) publishInvalidation(ctx context.Context, d *domain.Deposit) {
	event := domain.NewDepositEvent(domain.EventTypeDepositInvalidated, d)
	if err := w.kafkaOut.Emit(ctx, event); err != nil {
		w.log.Warn("invalidation not published", "hash", d.Hash, "error", err)
	}
}

func (w *Watcher) closeOutputs(outputs []emitter.Emitter) {
	for _, o := range outputs {
		_ = o.Close()
	}
}

func (w *Watcher) closeStore() {
	if w.store != nil {
		_ = w.store.Close()
	}
}
