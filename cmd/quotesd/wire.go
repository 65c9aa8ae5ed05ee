package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/quotation-intake/internal/blob"
	"github.com/joseph-ayodele/quotation-intake/internal/checkpoint"
	"github.com/joseph-ayodele/quotation-intake/internal/common"
	"github.com/joseph-ayodele/quotation-intake/internal/downstream"
	"github.com/joseph-ayodele/quotation-intake/internal/extract"
	"github.com/joseph-ayodele/quotation-intake/internal/ingest"
	"github.com/joseph-ayodele/quotation-intake/internal/llm"
	"github.com/joseph-ayodele/quotation-intake/internal/llm/langchain"
	"github.com/joseph-ayodele/quotation-intake/internal/llm/openai"
	"github.com/joseph-ayodele/quotation-intake/internal/lock"
	"github.com/joseph-ayodele/quotation-intake/internal/mail"
	"github.com/joseph-ayodele/quotation-intake/internal/mail/graph"
	"github.com/joseph-ayodele/quotation-intake/internal/mail/maildrop"
	"github.com/joseph-ayodele/quotation-intake/internal/ocr"
	"github.com/joseph-ayodele/quotation-intake/internal/pipeline"
	"github.com/joseph-ayodele/quotation-intake/internal/repository"
	"github.com/joseph-ayodele/quotation-intake/internal/retry"
	"github.com/joseph-ayodele/quotation-intake/internal/state"
)

// components is everything a pass needs, built once per process.
type components struct {
	cfg      *common.Config
	store    blob.Store
	locks    *lock.Manager
	coord    *ingest.Coordinator
	maildrop *maildrop.Transport
	closers  []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func openStore(cfg *common.Config, logger *slog.Logger) (blob.Store, error) {
	store, err := blob.OpenFromDSN(cfg.Store.DSN, logger)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "open object store", err)
	}
	return store, nil
}

func buildTransport(cfg *common.Config, logger *slog.Logger) (mail.Transport, *maildrop.Transport, error) {
	switch cfg.Mail.Provider {
	case "maildrop":
		t, err := maildrop.New(cfg.Mail.Maildrop.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	default:
		g := cfg.Mail.Graph
		var tokens graph.TokenSource
		if g.AccessToken != "" {
			tokens = graph.StaticToken(g.AccessToken)
		} else {
			tokens = graph.NewClientCredentials(g.AuthorityURL, g.TenantID, g.ClientID, g.ClientSecret, g.Scopes, nil, logger)
		}
		client := graph.NewClient(graph.Config{
			BaseURL:  g.BaseURL,
			Mailbox:  g.Mailbox,
			PageSize: g.PageSize,
			MaxPages: g.MaxPages,
		}, tokens, nil, logger)
		return client, nil, nil
	}
}

func buildAnalyzer(cfg *common.Config, logger *slog.Logger) ocr.Analyzer {
	o := cfg.OCR
	if o.Provider == "remote" {
		return ocr.NewRemoteAnalyzer(ocr.RemoteConfig{
			Endpoint:      o.Endpoint,
			APIKey:        o.APIKey,
			Namespace:     o.Namespace,
			Bucket:        o.Bucket,
			CompartmentID: o.CompartmentID,
			Timeout:       o.Timeout,
		}, nil, logger)
	}
	return ocr.NewTesseract(ocr.Config{
		TesseractLang: o.TesseractLang,
		TessdataDir:   o.TessdataDir,
		PSM:           6,
	}, ocr.ExecRunner{Logger: logger}, logger)
}

func buildExtractor(cfg *common.Config, logger *slog.Logger) (llm.Extractor, error) {
	l := cfg.LLM
	if l.Provider == "langchain" {
		return langchain.New(langchain.Config{
			BaseURL:     l.BaseURL,
			Token:       l.APIKey,
			Model:       l.Model,
			Temperature: float64(l.Temperature),
		}, logger)
	}
	return openai.NewClient(openai.Config{
		APIKey:      l.APIKey,
		BaseURL:     l.BaseURL,
		Model:       l.Model,
		Temperature: l.Temperature,
		Timeout:     l.Timeout,
	}, nil, logger), nil
}

// systemOfRecord takes submissions and answers order lookups.
type systemOfRecord interface {
	downstream.Submitter
	downstream.OrderLookup
}

func buildDownstream(ctx context.Context, cfg *common.Config, logger *slog.Logger) (systemOfRecord, func(), error) {
	d := cfg.Downstream
	switch d.Kind {
	case "postgres", "sqlite":
		var (
			db  *repository.DB
			err error
		)
		if d.Kind == "postgres" {
			db, err = repository.Open(ctx, repository.Config{
				DSN:              d.Database.DSN,
				MaxConns:         d.Database.MaxConns,
				MinConns:         d.Database.MinConns,
				MaxConnLifetime:  d.Database.MaxConnLifetime,
				MaxConnIdleTime:  d.Database.MaxConnIdleTime,
				DialTimeout:      d.Database.DialTimeout,
				StatementTimeout: d.Database.StatementTimeout,
			}, logger)
		} else {
			db, err = repository.OpenSQLite(d.Database.DSN, logger)
		}
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() { db.Close(logger) }
		if err := db.HealthCheck(ctx, d.Database.DialTimeout, logger); err != nil {
			closeDB()
			return nil, nil, err
		}
		repo := repository.NewSubmissionRepository(db, logger)
		if err := repo.Migrate(ctx); err != nil {
			closeDB()
			return nil, nil, err
		}
		return repo, closeDB, nil
	default:
		return downstream.NewHTTPClient(d.URL, d.Token, nil, logger), func() {}, nil
	}
}

func policy(name string, attempts int, cfg *common.Config, logger *slog.Logger) retry.Policy {
	return retry.Policy{
		Name:        name,
		MaxAttempts: attempts,
		BackoffBase: cfg.Retry.BackoffBase,
		Logger:      logger,
	}
}

func build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Info("config.loaded", "config", cfg.String())

	c := &components{cfg: cfg}
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.store = store
	c.closers = append(c.closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("store.close.error", "error", err)
		}
	})

	transport, drop, err := buildTransport(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.maildrop = drop

	extractor, err := buildExtractor(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	sink, closeSink, err := buildDownstream(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.closers = append(c.closers, closeSink)

	classifier := extract.NewClassifier("pdftotext", ocr.ExecRunner{Logger: logger}, logger)
	text := pipeline.NewTextStage(classifier, buildAnalyzer(cfg, logger),
		policy("ocr.analyze", cfg.Retry.OCRMaxAttempts, cfg, logger), logger)
	parse := pipeline.NewParseStage(extractor,
		policy("llm.extract", cfg.Retry.ExtractMaxAttempts, cfg, logger), logger)
	proc := pipeline.NewProcessor(store, text, parse, cfg.Scheduler.FileConcurrency, logger)

	c.locks = lock.NewManager(store, logger)
	machine := state.NewMachine(store, c.locks, logger)
	checkpoints := checkpoint.NewStore(store, cfg.Checkpoint.MaxIDs, logger)

	opts := []ingest.Option{
		ingest.WithLogger(logger),
		ingest.WithItemConcurrency(cfg.Scheduler.ItemConcurrency),
	}
	if cfg.Downstream.RequireKnownOrder {
		opts = append(opts, ingest.WithOrderLookup(sink))
	}
	coord, err := ingest.NewCoordinator(store, transport, checkpoints, machine, proc, sink, opts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	c.coord = coord
	c.closers = append(c.closers, coord.Release)

	logger.Info("components.ready",
		"mail", cfg.Mail.Provider,
		"ocr", cfg.OCR.Provider,
		"llm", cfg.LLM.Provider,
		"downstream", cfg.Downstream.Kind,
		"lock_owner", c.locks.Owner(),
	)
	return c, nil
}
