// Copyright 2024 The Perfil Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"context"
	"database/sql"
	"io"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"
	"github.com/kardianos/minwinsvc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/catalogo-app/perfil/internal"
	"github.com/catalogo-app/perfil/internal/caching"
	"github.com/catalogo-app/perfil/internal/httputil"
	"github.com/catalogo-app/perfil/internal/sqlutil"
	"github.com/catalogo-app/perfil/setup/config"
	"github.com/catalogo-app/perfil/setup/jetstream"
	"github.com/catalogo-app/perfil/setup/process"
)

// BasePerfil is a base for creating new instances of perfil. It exposes the
// resources shared by the components. All errors are handled by logging
// then exiting, so all methods should only be used during start up.
// Must be closed when shutting down.
type BasePerfil struct {
	*process.ProcessContext
	componentName     string
	tracerCloser      io.Closer
	PublicPerfilMux   *mux.Router
	NATS              *jetstream.NATSInstance
	Cfg               *config.Perfil
	Caches            *caching.Caches
	ConnectionManager *sqlutil.Connections
	EnableMetrics     bool
}

const HTTPServerTimeout = time.Minute * 5

type BasePerfilOptions int

const (
	DisableMetrics BasePerfilOptions = iota
)

// NewBasePerfil creates a new instance to be used by a component.
// The componentName is used for logging purposes, and should be a friendly
// name of the component running, e.g. "ProfileAPI".
func NewBasePerfil(cfg *config.Perfil, componentName string, options ...BasePerfilOptions) *BasePerfil {
	platformSanityChecks()
	enableMetrics := true
	for _, opt := range options {
		switch opt {
		case DisableMetrics:
			enableMetrics = false
		}
	}

	configErrors := &config.ConfigErrors{}
	cfg.Verify(configErrors)
	if len(*configErrors) > 0 {
		for _, err := range *configErrors {
			logrus.Errorf("Configuration error: %s", err)
		}
		logrus.Fatalf("Failed to start due to configuration errors")
	}

	internal.SetupStdLogging()
	internal.SetupHookLogging(cfg.Logging, componentName)

	logrus.Infof("Perfil version %s", internal.VersionString())

	closer, err := cfg.SetupTracing("Perfil" + componentName)
	if err != nil {
		logrus.WithError(err).Panicf("failed to start opentracing")
	}

	if cfg.Global.Sentry.Enabled {
		logrus.Info("Setting up Sentry for debugging...")
		err = sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Global.Sentry.DSN,
			Environment:      cfg.Global.Sentry.Environment,
			Debug:            true,
			ServerName:       cfg.Global.Origin,
			Release:          "perfil@" + internal.VersionString(),
			AttachStacktrace: true,
		})
		if err != nil {
			logrus.WithError(err).Panic("failed to start Sentry")
		}
	}

	caches, err := caching.NewRistrettoCache(caching.CacheSize(cfg.Global.Cache.EstimatedMaxSize), cfg.Global.Cache.MaxAge, enableMetrics)
	if err != nil {
		logrus.WithError(err).Panic("failed to create caches")
	}

	processCtx := process.NewProcessContext()
	return &BasePerfil{
		ProcessContext:    processCtx,
		componentName:     componentName,
		tracerCloser:      closer,
		Cfg:               cfg,
		Caches:            caches,
		ConnectionManager: sqlutil.NewConnectionManager(processCtx, cfg.Global.DatabaseOptions),
		PublicPerfilMux:   mux.NewRouter().PathPrefix(httputil.PublicPerfilPathPrefix).Subrouter(),
		NATS:              &jetstream.NATSInstance{},
		EnableMetrics:     enableMetrics,
	}
}

// Close implements io.Closer
func (b *BasePerfil) Close() error {
	return b.tracerCloser.Close()
}

// Database returns the connection the profile API uses, for health checks.
func (b *BasePerfil) Database() *sql.DB {
	db, _, err := b.ConnectionManager.Connection(&b.Cfg.ProfileAPI.Database)
	if err != nil {
		logrus.WithError(err).Panic("failed to connect to profile db")
	}
	return db
}

// SetupAndServeHTTP serves the endpoints registered on PublicPerfilMux
// under /_perfil/, a health check under /health and, when enabled, a
// prometheus handler under /metrics. It blocks until the process shuts down.
func (b *BasePerfil) SetupAndServeHTTP(listenAddr string, certFile, keyFile *string) {
	router := mux.NewRouter()
	serv := &http.Server{
		Addr:         listenAddr,
		WriteTimeout: HTTPServerTimeout,
		Handler:      router,
		BaseContext: func(_ net.Listener) context.Context {
			return b.ProcessContext.Context()
		},
	}

	if b.Cfg.Global.Metrics.Enabled {
		router.Handle("/metrics", httputil.WrapHandlerInBasicAuth(promhttp.Handler(), httputil.BasicAuth(b.Cfg.Global.Metrics.BasicAuth)))
	}
	router.Handle("/health", httputil.HealthCheckHandler(b.ProcessContext, b.Database()))

	var perfilHandler http.Handler = b.PublicPerfilMux
	if b.Cfg.Global.Sentry.Enabled {
		sentryHandler := sentryhttp.New(sentryhttp.Options{
			Repanic: true,
		})
		perfilHandler = sentryHandler.Handle(perfilHandler)
	}
	router.PathPrefix(httputil.PublicPerfilPathPrefix).Handler(perfilHandler)

	go func() {
		var shutdown atomic.Bool // RegisterOnShutdown can be called more than once
		logrus.Infof("Starting %s listener on %s", b.componentName, serv.Addr)
		b.ProcessContext.ComponentStarted()
		serv.RegisterOnShutdown(func() {
			if shutdown.CompareAndSwap(false, true) {
				b.ProcessContext.ComponentFinished()
				logrus.Infof("Stopped HTTP listener")
			}
		})
		if certFile != nil && keyFile != nil {
			if err := serv.ListenAndServeTLS(*certFile, *keyFile); err != nil {
				if err != http.ErrServerClosed {
					logrus.WithError(err).Fatal("failed to serve HTTPS")
				}
			}
		} else {
			if err := serv.ListenAndServe(); err != nil {
				if err != http.ErrServerClosed {
					logrus.WithError(err).Fatal("failed to serve HTTP")
				}
			}
		}
		logrus.Infof("Stopped %s listener on %s", b.componentName, serv.Addr)
	}()

	minwinsvc.SetOnExit(b.ProcessContext.Shutdown)
	<-b.ProcessContext.WaitForShutdown()

	logrus.Infof("Stopping HTTP listeners")
	_ = serv.Shutdown(context.Background())
	logrus.Infof("Stopped HTTP listeners")
}

func (b *BasePerfil) WaitForShutdown() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
	case <-b.ProcessContext.WaitForShutdown():
	}
	signal.Reset(syscall.SIGINT, syscall.SIGTERM)

	logrus.Warnf("Shutdown signal received")

	b.ProcessContext.Shutdown()
	b.ProcessContext.WaitForComponentsToFinish()
	if b.Cfg.Global.Sentry.Enabled {
		if !sentry.Flush(time.Second * 5) {
			logrus.Warnf("failed to flush all Sentry events!")
		}
	}

	logrus.Warnf("Perfil is exiting now")
}
