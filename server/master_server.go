package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hhzhhzhhz/mirror-master/api"
	"github.com/hhzhhzhhz/mirror-master/client"
	"github.com/hhzhhzhhz/mirror-master/config"
	"github.com/hhzhhzhhz/mirror-master/infrastructure"
	"github.com/hhzhhzhhz/mirror-master/infrastructure/storage"
	"github.com/hhzhhzhhz/mirror-master/log"
	"github.com/hhzhhzhhz/mirror-master/orchestrator"
	"github.com/hhzhhzhhz/mirror-master/pkg/protocol"
	"github.com/hhzhhzhhz/mirror-master/pkg/utils"
	"github.com/hhzhhzhhz/mirror-master/recipient"
	"github.com/hhzhhzhhz/mirror-master/rsync"
	"github.com/hhzhhzhhz/mirror-master/scheduler"
	"github.com/hhzhhzhhz/mirror-master/version"
	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"
)

const startTimeout = 30 * time.Second

// MasterServer wires storage, the scheduler and the http surfaces together.
type MasterServer struct {
	cfg       *config.Config
	db        *sqlx.DB
	store     storage.Factory
	mq        infrastructure.EventMq
	sched     *scheduler.Scheduler
	recipient *recipient.Recipient
	app       *AppServer
	metrics   *http.Server
	defaults  rsync.Defaults
	sw        utils.WaitGroupWrapper
}

func (s *MasterServer) Init() error {
	if err := config.Init(); err != nil {
		return err
	}
	return s.init(config.GetCfg())
}

func (s *MasterServer) init(cfg *config.Config) error {
	s.cfg = cfg
	if err := log.Init(log.Options{File: cfg.Log.File, Level: cfg.Log.Level, MaxSizeMB: cfg.Log.MaxSizeMB}); err != nil {
		return err
	}
	db, err := storage.Open(cfg.DbDriver, cfg.Dsn)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("MasterServer.Init migrate failed cause=%s", err.Error())
	}
	s.db = db
	s.store = storage.NewFactory(db)
	if cfg.AmqpUrl != "" {
		s.mq = infrastructure.NewAmqpEventMq(cfg.AmqpUrl)
	} else if s.mq, err = infrastructure.NewEventMq(cfg.NsqdAddr); err != nil {
		db.Close()
		return err
	}

	hostname := cfg.MasterHostname
	if hostname == "" {
		hostname = utils.Hostname()
		log.Logger().Info("MasterServer.Init master_hostname not set, slaves pull from %s", hostname)
	}
	s.defaults = rsync.Defaults{Options: cfg.RsyncDefaultOptions, Delete: cfg.RsyncDeleteOption}
	orc := orchestrator.NewOrchestrator(
		orchestrator.Options{MasterHostname: hostname, MasterPassword: cfg.MasterRsyncdPassword, RunEventTopic: cfg.RunEventTopic},
		rsync.NewInvoker(cfg.RsyncBinary),
		s.store,
		client.NewSlaveClient(cfg.SlaveTimeout, cfg.SlaveApiPath),
		s.store,
		s.mq,
	)
	s.sched = scheduler.NewScheduler(s.store, orc, scheduler.Options{
		Workers:        cfg.Workers,
		QueueSize:      cfg.QueueSize,
		MaxInstances:   cfg.MaxInstances,
		TickInterval:   cfg.TickInterval,
		RunMaxDuration: cfg.RunMaxDuration,
		Location:       cfg.Location(),
		Defaults:       s.defaults,
	})
	s.recipient = recipient.NewRecipient(s.store, s.mq, cfg.SlaveEventTopic)
	a := api.NewApi(api.Options{Defaults: s.defaults}, s.sched, s.store, s.recipient)
	s.app = NewAppServer(cfg.ApiPort, a, cfg.RootUser, cfg.RootPass)
	s.metrics = protocol.NewPprofMetricServer(cfg.PprofPort)
	return nil
}

func (s *MasterServer) Start() error {
	log.Logger().Info("server starting env=%s", s.cfg.Env)
	log.Logger().Info("version info: %+v", version.Version)
	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := s.sched.Start(ctx); err != nil {
		return err
	}
	if s.cfg.JobsFile != "" {
		n, err := seedJobs(ctx, s.sched, s.cfg.JobsFile, s.defaults)
		if err != nil {
			return err
		}
		log.Logger().Info("MasterServer.Start seeded jobs=%d file=%s", n, s.cfg.JobsFile)
	}
	s.sw.Wrap(func() {
		log.Logger().Info("pprof/metrics service start addr=%s", s.cfg.PprofPort)
		if err := s.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger().Error("MasterServer.Start NewPprofMetricServer error cause=%s", err.Error())
		}
	})
	s.sw.Wrap(func() {
		log.Logger().Info("http api service start addr=%s", s.cfg.ApiPort)
		if err := s.app.Run(); err != nil {
			log.Logger().Error("MasterServer.Start AppServer error cause=%s", err.Error())
		}
	})
	log.Logger().Info("server started")
	return nil
}

func (s *MasterServer) Stop() error {
	log.Logger().Info("server ready to close")
	var errs error
	errs = multierr.Append(errs, s.app.Close())
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	errs = multierr.Append(errs, s.metrics.Shutdown(ctx))
	cancel()
	s.sw.Wait()
	errs = multierr.Append(errs, s.sched.Close())
	errs = multierr.Append(errs, s.recipient.Close())
	errs = multierr.Append(errs, s.mq.Close())
	errs = multierr.Append(errs, s.db.Close())
	log.Logger().Info("server is closed")
	log.Logger().Close()
	return errs
}
