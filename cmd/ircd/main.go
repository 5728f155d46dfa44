// Command ircd is the daemon's entry point: it loads the configuration,
// assembles an internal/server.Server, and mounts the optional metrics,
// web portal, and admin API listeners alongside it. Grounded on
// _examples/presbrey-pkg/irc/ircd/main.go's flag/Load/NewServer/Start/
// signal-wait/Stop shape, generalized from a single HTTP bind to this
// core's several independently-configurable listeners.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/presbrey/ircd/internal/adminapi"
	"github.com/presbrey/ircd/internal/config"
	"github.com/presbrey/ircd/internal/metrics"
	"github.com/presbrey/ircd/internal/server"
	"github.com/presbrey/ircd/internal/webportal"
)

func main() {
	configPath := flag.String("config", "ircd.toml", "path to configuration file")
	flag.Parse()

	log := logrus.New()

	mgr, err := config.NewManager(*configPath)
	if err != nil {
		log.WithError(err).Fatal("ircd: failed to load configuration")
	}
	applyLogging(log, mgr.Get().Logging)
	mgr.OnReload(func(cfg *config.Config) { applyLogging(log, cfg.Logging) })

	motd, err := config.LoadMOTD(mgr.Get().Server.MOTDFile)
	if err != nil {
		log.WithError(err).Warn("ircd: failed to load motd file")
	}

	srv := server.New(mgr, motd, log)
	srv.Deps.Reload = mgr.Reload
	mgr.OnReload(func(cfg *config.Config) {
		lines, err := config.LoadMOTD(cfg.Server.MOTDFile)
		if err != nil {
			log.WithError(err).Warn("ircd: failed to reload motd file")
			return
		}
		srv.Deps.MOTD = lines
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Fatal("ircd: failed to start")
	}
	log.WithField("server", mgr.Get().Server.Name).Info("ircd: started")

	stop := make(chan struct{})
	if err := mgr.Watch(stop); err != nil {
		log.WithError(err).Warn("ircd: config file watch disabled")
	}
	defer close(stop)

	metricsSrv := startMetrics(mgr.Get(), log)
	portal := startWebPortal(mgr.Get(), srv, log)
	adminSrv, adminLn := startAdminAPI(mgr.Get(), srv, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("ircd: shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(); err != nil {
		log.WithError(err).Error("ircd: error stopping server")
	}
	if metricsSrv != nil {
		metricsSrv.Shutdown(shutdownCtx)
	}
	if portal != nil {
		portal.Shutdown(shutdownCtx)
	}
	if adminSrv != nil {
		adminSrv.GracefulStop()
		adminLn.Close()
	}
}

func applyLogging(log *logrus.Logger, cfg config.LoggingConfig) {
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
}

func startMetrics(cfg *config.Config, log *logrus.Logger) *http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(metrics.Registry))
	hs := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
	go func() {
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("ircd: metrics listener stopped")
		}
	}()
	log.WithField("address", cfg.Metrics.Address).Info("ircd: metrics listening")
	return hs
}

func startWebPortal(cfg *config.Config, srv *server.Server, log *logrus.Logger) *webportal.Portal {
	if !cfg.WebPortal.Enabled {
		return nil
	}
	p := webportal.New(&webportal.Portal{
		Store:      srv.Store,
		Bans:       srv.Bans,
		Peers:      srv.Peers,
		Metrics:    srv.Metrics,
		ServerName: cfg.Server.Name,
		Network:    cfg.Server.Network,
		Token:      cfg.AdminAPI.BearerToken,
	})
	go func() {
		if err := p.Start(cfg.WebPortal.Address); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("ircd: web portal stopped")
		}
	}()
	log.WithField("address", cfg.WebPortal.Address).Info("ircd: web portal listening")
	return p
}

func startAdminAPI(cfg *config.Config, srv *server.Server, log *logrus.Logger) (*grpc.Server, net.Listener) {
	if !cfg.AdminAPI.Enabled {
		return nil, nil
	}
	ln, err := net.Listen("tcp", cfg.AdminAPI.Address)
	if err != nil {
		log.WithError(err).Error("ircd: admin api listen failed")
		return nil, nil
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(adminapi.UnaryServerAuth(cfg.AdminAPI.BearerToken)))
	adminapi.Register(gs, &adminapi.Server{
		Store:      srv.Store,
		Bans:       srv.Bans,
		Broadcast:  srv.Broadcast,
		Peers:      srv.Peers,
		Metrics:    srv.Metrics,
		ServerName: cfg.Server.Name,
		Network:    cfg.Server.Network,
	})
	go func() {
		if err := gs.Serve(ln); err != nil {
			log.WithError(err).Warn("ircd: admin api stopped")
		}
	}()
	log.WithField("address", cfg.AdminAPI.Address).Info("ircd: admin api listening")
	return gs, ln
}
