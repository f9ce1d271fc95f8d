package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swoga/mt5-worker/collector"
	"github.com/swoga/mt5-worker/config"
	"github.com/swoga/mt5-worker/gateway"
	"github.com/swoga/mt5-worker/server"
	"github.com/swoga/mt5-worker/terminal"
	"github.com/swoga/mt5-worker/version"
	"go.uber.org/zap"
)

var log *zap.Logger

func main() {
	// parse command line args
	configFile := flag.String("config.file", "", "")
	envFile := flag.String("env.file", ".env", "")
	debug := flag.Bool("debug", false, "")
	flag.Parse()

	level := zap.InfoLevel
	if *debug {
		level = zap.DebugLevel
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	log, _ = zapConfig.Build()
	defer log.Sync()
	log.Info("starting mt5-worker", zap.String("version", version.Version), zap.String("revision", version.Revision))

	if err := godotenv.Load(*envFile); err != nil {
		log.Debug("no env file loaded", zap.String("file", *envFile), zap.Error(err))
	}

	// inital config load
	sc := config.New(*configFile)
	err := sc.LoadConfig()
	if err != nil {
		log.Fatal("error loading config", zap.Error(err))
	}
	if sc.APIKey() == config.DefaultAPIKey {
		log.Warn("using the default api key, set " + config.APIKeyEnv)
	}

	metrics := collector.New(prometheus.DefaultRegisterer)
	binding := terminal.Load(log, sc.Get().Terminal)
	if _, err := binding.Get(); err != nil {
		log.Warn("terminal binding not available", zap.Error(err))
	}
	gw := gateway.New(log, binding, metrics)

	reload := func() error {
		if err := sc.LoadConfig(); err != nil {
			return err
		}
		gw.SetBinding(terminal.Load(log, sc.Get().Terminal))
		return nil
	}

	// setup config reload
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	reloadRequest := make(chan chan error)
	go func() {
		for {
			var err error
			select {
			case <-hup:
				log.Debug("config reload triggerd by SIGHUP")
				err = reload()
			case reloadResult := <-reloadRequest:
				log.Debug("config reload triggerd by API")
				err = reload()
				reloadResult <- err
			}
			if err != nil {
				log.Error("error reloading config", zap.Error(err))
			} else {
				log.Info("reloaded config file")
			}
		}
	}()

	requestReload := func() error {
		reloadResult := make(chan error)
		reloadRequest <- reloadResult
		return <-reloadResult
	}

	// start http server
	c := sc.Get()
	srv := server.New(log, sc, gw, promhttp.Handler(), requestReload)
	httpServer := &http.Server{
		Addr:              c.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-stop
		log.Info("shutting down http server")
		ctx, cancel := context.WithTimeout(context.Background(), c.Terminal.TimeoutDuration())
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error("error shutting down http server", zap.Error(err))
		}
	}()

	log.Info("starting http server", zap.String("login_path", c.LoginPath), zap.String("metrics_path", c.MetricsPath), zap.String("listen", c.Listen))

	err = httpServer.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("error starting http server", zap.Error(err))
	}
	<-stopped
}
