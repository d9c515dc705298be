// Package app assembles the object graph shared by the server, the worker and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/campaignhq-backend/internal/audience"
	"github.com/unclebandit/campaignhq-backend/internal/authz"
	"github.com/unclebandit/campaignhq-backend/internal/cache"
	"github.com/unclebandit/campaignhq-backend/internal/config"
	"github.com/unclebandit/campaignhq-backend/internal/controller"
	"github.com/unclebandit/campaignhq-backend/internal/db"
	"github.com/unclebandit/campaignhq-backend/internal/events"
	"github.com/unclebandit/campaignhq-backend/internal/generation"
	"github.com/unclebandit/campaignhq-backend/internal/importer"
	"github.com/unclebandit/campaignhq-backend/internal/lifecycle"
	"github.com/unclebandit/campaignhq-backend/internal/prompt"
	"github.com/unclebandit/campaignhq-backend/internal/provider"
	"github.com/unclebandit/campaignhq-backend/internal/queue"
	"github.com/unclebandit/campaignhq-backend/internal/repository"
	"github.com/unclebandit/campaignhq-backend/internal/service"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sql.DB

	Profiles   *audience.Registry
	Elections  *repository.ElectionRepository
	Campaigns  *service.CampaignService
	Messages   *service.MessageService
	Dispatcher *service.Dispatcher
	Events     events.Publisher
	Queue      queue.Queue

	closers []func() error
}

// New opens the database, applies migrations and builds every service. The publish
// queue is left unset; call OpenQueue when the process needs it.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: log}

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.DB = conn
	a.closers = append(a.closers, conn.Close)

	if err := db.Migrate(ctx, conn, cfg.Database.Driver); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg, log := a.Config, a.Logger

	profiles, err := audience.FromFile(cfg.Audience.CatalogPath)
	if err != nil {
		return fmt.Errorf("audience catalog: %w", err)
	}
	a.Profiles = profiles

	az, err := authz.New()
	if err != nil {
		return err
	}

	profileCache, err := cache.New(cfg.Cache.RedisURL)
	if err != nil {
		return err
	}
	if c, ok := profileCache.(*cache.Redis); ok {
		a.closers = append(a.closers, c.Close)
	}

	a.Events = events.NewFromConfig(cfg.Events, log)
	a.closers = append(a.closers, a.Events.Close)

	driver := cfg.Database.Driver
	campaignRepo := repository.NewCampaignRepository(a.DB, driver)
	messageRepo := repository.NewMessageRepository(a.DB, driver)
	a.Elections = repository.NewElectionRepository(a.DB, driver)

	compiler := prompt.NewCompiler(profiles)
	machine := lifecycle.New()

	a.Campaigns = &service.CampaignService{
		CampaignRepo: campaignRepo,
		Authz:        az,
		Compiler:     compiler,
		Cache:        profileCache,
		ProfileTTL:   cfg.Cache.ProfileTTL,
		Logger:       log.Named("campaigns"),
	}
	a.Messages = &service.MessageService{
		Repo:            messageRepo,
		Campaigns:       a.Campaigns,
		Authz:           az,
		Machine:         machine,
		Compiler:        compiler,
		Generator:       generation.FromConfig(cfg.Generation),
		Events:          a.Events,
		Logger:          log.Named("messages"),
		BulkConcurrency: cfg.Publish.BulkConcurrency,
	}
	a.Dispatcher = &service.Dispatcher{
		Repo:         messageRepo,
		Providers:    provider.FromConfig(cfg.Providers),
		Authz:        az,
		Machine:      machine,
		Events:       a.Events,
		Topic:        cfg.Queue.PublishTopic,
		Timeout:      cfg.Publish.ProviderTimeout,
		DueBatchSize: cfg.Publish.DueBatchSize,
		Logger:       log.Named("dispatcher"),
	}
	return nil
}

// OpenQueue connects the configured queue backend and hands it to the dispatcher.
// With the memory backend the publish worker runs in this process.
func (a *App) OpenQueue() (queue.Queue, error) {
	if a.Queue != nil {
		return a.Queue, nil
	}
	log := a.Logger.Named("queue")

	switch a.Config.Queue.Backend {
	case "amqp":
		q, err := queue.DialAMQP(a.Config.Queue.AMQPURL, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, q.Close)
		a.Queue = q
	default:
		q := queue.NewInMemoryQueue(log)
		if err := a.NewWorker().Start(q, a.Config.Queue.PublishTopic); err != nil {
			return nil, err
		}
		a.Queue = q
	}
	a.Dispatcher.Queue = a.Queue
	return a.Queue, nil
}

func (a *App) NewWorker() *service.PublishWorker {
	return service.NewPublishWorker(a.Dispatcher, a.Logger.Named("worker"))
}

func (a *App) Importer() *importer.Importer {
	return importer.New(a.Elections, a.Logger.Named("importer"))
}

func (a *App) Router() chi.Router {
	return controller.NewRouter(controller.Controllers{
		Campaigns: &controller.CampaignController{CampaignService: a.Campaigns, Profiles: a.Profiles, Logger: a.Logger},
		Messages:  &controller.MessageController{Messages: a.Messages, Dispatcher: a.Dispatcher, Logger: a.Logger},
		Elections: &controller.ElectionController{Repo: a.Elections, Logger: a.Logger},
		Logger:    a.Logger.Named("http"),
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
