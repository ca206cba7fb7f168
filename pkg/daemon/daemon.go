// Package daemon is the long-running side of leptond: it owns the engine,
// serves the HTTP API over a unix socket, and runs scheduled
// recalibrations.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/eqft-lab/leptond/pkg/calibrate"
	"github.com/eqft-lab/leptond/pkg/config"
	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/events"
)

var (
	conf  config.Config
	hub   *events.EventHub
	sched *Scheduler

	// stateMu guards the engine/searcher pair, which rebuildEngine swaps
	// out from under concurrent handlers on variant changes and SIGHUP.
	stateMu  sync.RWMutex
	g2       *engine.Engine
	searcher *calibrate.Searcher
)

// engineState snapshots the current engine/searcher pair. Handlers must go
// through this instead of reading the package variables directly.
func engineState() (*engine.Engine, *calibrate.Searcher) {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return g2, searcher
}

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/config", getConfig)
	router.GET("/version", getVersion)
	router.GET("/variant", getVariant)
	router.PUT("/variant", setVariant)
	router.PUT("/phases", setPhases)
	router.GET("/predict/:lepton", getPrediction)
	router.GET("/evaluate", getEvaluations)
	router.GET("/evaluate/:lepton", getEvaluation)
	router.POST("/calibrate/:lepton", runCalibration)
	router.POST("/calibrate/:lepton/apply", applyCalibration)
	router.GET("/verify", getVerification)
	router.GET("/schedule", getSchedule)
	router.PUT("/schedule", setSchedule)
	router.GET("/events", streamEvents)

	return router
}

// rebuildEngine materializes a fresh engine (and searcher) from the current
// config. Called at startup and whenever config-level engine inputs change.
func rebuildEngine() error {
	e, err := engine.New(conf.EngineParams())
	if err != nil {
		return err
	}

	stateMu.Lock()
	g2 = e
	searcher = calibrate.New(e)
	stateMu.Unlock()
	return nil
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	if err := rebuildEngine(); err != nil {
		logrus.Fatalf("failed to build engine from config: %v", err)
	}

	hub = events.NewEventHub()

	sched = NewScheduler(recalibrateAll, func(err error) {
		logrus.Errorf("scheduled recalibration failed: %v", err)
	})
	if expr := conf.RecalibrateSchedule(); expr != "" {
		if err := sched.Schedule(expr); err != nil {
			logrus.Errorf("invalid recalibration schedule %q: %v", expr, err)
		}
	}
	sched.Start()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			if err := rebuildEngine(); err != nil {
				logrus.Errorf("failed to rebuild engine after reload: %v", err)
				continue
			}
			logrus.Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("stopping scheduler")
	sched.Stop()

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("exiting")
	return nil
}

// recalibrateAll is the scheduled task: every lepton is searched over its
// configured target range and the winner is applied and persisted.
func recalibrateAll() error {
	_, s := engineState()

	vs, err := s.VerifyTargets()
	if err != nil {
		return err
	}

	for _, v := range vs {
		if v.OK {
			logrus.WithField("lepton", v.Lepton).Debug("calibration still within tolerance, skipping")
			continue
		}

		best, candidates, err := s.SearchTarget(v.Lepton)
		if err != nil {
			return err
		}
		if err := applyAndPersist(v.Lepton, best); err != nil {
			return err
		}
		hub.Publish(events.CalibrationFinished, events.CalibrationEvent{
			Lepton:   string(v.Lepton),
			DeltaANF: best,
			Score:    candidates[0].Score,
			Ts:       time.Now().Unix(),
		})
	}
	return nil
}
