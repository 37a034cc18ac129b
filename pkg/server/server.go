/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/authority"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/blueprint"
	commonconfig "github.com/AMD-AIG-AIMA/cloudlab/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/handlers"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/mailer"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/options"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/pollers"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/runner"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/scheduler"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/services"
	klogutil "github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/klog"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	opts       *options.Options
	store      *dbclient.Client
	catalog    *services.Catalog
	runner     *runner.Runner
	scheduler  *scheduler.Scheduler
	pollers    *pollers.Manager
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	isInited   bool
}

// NewServer builds a fully wired server: flags, logging, config, store with
// migrations, catalog, runner, scheduler, pollers and the HTTP surface.
func NewServer() (*Server, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	s := &Server{
		opts:   &options.Options{},
		ctx:    ctx,
		cancel: cancel,
	}
	if err := s.init(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Server) init() error {
	gin.SetMode(gin.ReleaseMode)
	var err error
	if err = s.opts.InitFlags(); err != nil {
		klog.ErrorS(err, "failed to parse flags")
		return err
	}
	if err = klogutil.Init(s.opts.LogfilePath, s.opts.LogFileSize); err != nil {
		klog.ErrorS(err, "failed to init logs")
		return err
	}
	if err = s.initConfig(); err != nil {
		klog.ErrorS(err, "failed to init config")
		return err
	}
	if err = s.initStore(); err != nil {
		klog.ErrorS(err, "failed to init store")
		return err
	}
	if err = s.initComponents(); err != nil {
		klog.ErrorS(err, "failed to init components")
		return err
	}
	s.isInited = true
	return nil
}

func (s *Server) initConfig() error {
	fullPath, err := filepath.Abs(s.opts.Config)
	if err != nil {
		return err
	}
	if err = commonconfig.LoadConfig(fullPath); err != nil {
		return fmt.Errorf("config path: %s, err: %v", fullPath, err)
	}
	if s.opts.ServicesDir != "" {
		commonconfig.SetValue("services.dir", s.opts.ServicesDir)
	}
	return nil
}

func (s *Server) initStore() error {
	store, err := dbclient.NewClient()
	if err != nil {
		return err
	}
	if err = store.Migrate(); err != nil {
		return err
	}
	s.store = store
	return nil
}

func (s *Server) initComponents() error {
	s.catalog = services.NewCatalog(commonconfig.GetServicesDir())
	if err := s.catalog.Reload(); err != nil {
		return err
	}

	s.runner = runner.NewRunner(s.store, s.catalog)
	if err := s.runner.FailOrphans(s.ctx); err != nil {
		return err
	}

	auth := authority.NewAuthority(s.store)
	deployer := blueprint.NewOrchestrator(s.store, s.runner, s.catalog)
	sender := mailer.NewSender()
	s.pollers = pollers.NewManager(s.store, s.runner, sender)

	if err := scheduler.SeedSystemSchedules(s.ctx, s.store); err != nil {
		return err
	}
	s.scheduler = scheduler.NewScheduler(s.store, s.runner, s.pollers)

	handler := handlers.NewHandler(s.store, s.runner, s.catalog, auth, deployer)
	addr := fmt.Sprintf(":%d", commonconfig.GetServerPort())
	s.httpServer = &http.Server{Addr: addr, Handler: handlers.NewEngine(handler)}
	return nil
}

// Start runs every component and blocks until a termination signal arrives.
func (s *Server) Start() {
	if !s.isInited {
		klog.Errorf("please init the server first")
		return
	}
	klog.Infof("starting cloudlab manager")

	s.pollers.Start()
	s.scheduler.Start()

	go func() {
		klog.Infof("http-server listen addr: %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "failed to start http server")
			os.Exit(-1)
		}
	}()

	<-s.ctx.Done()
	s.Stop()
}

// Stop shuts the components down in reverse order: no new requests, then no
// new scheduled work, then the background loops.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	klog.Info("shutting down http server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		klog.ErrorS(err, "failed to shutdown http server")
	}
	s.scheduler.Stop()
	s.pollers.Stop()
	s.cancel()
	klog.Info("cloudlab manager is stopped")
	klog.Flush()
}
