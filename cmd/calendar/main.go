package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/lomoval/sked/internal/app"
	"github.com/lomoval/sked/internal/form"
	"github.com/lomoval/sked/internal/logger"
	internalgrpc "github.com/lomoval/sked/internal/server/grpc"
	internalhttp "github.com/lomoval/sked/internal/server/http"
	"github.com/lomoval/sked/internal/storagebuilder"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

	if flag.Arg(0) == "version" {
		printVersion()
		return
	}

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	var fields form.Source
	if config.Fields != "" {
		table, err := form.Load(config.Fields)
		if err != nil {
			log.Errorf("failed to start %v", err)
			return
		}
		fields = form.Static(table)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	stor, err := storagebuilder.New(ctx, config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		if err := stor.Close(ctx); err != nil {
			log.Errorf("failed to close storage: %v", err)
		}
	}()

	calendar := app.New(stor, fields)
	httpServer := internalhttp.NewServer(config.HTTPServer, calendar)
	grpcServer := internalgrpc.NewServer(config.GrpcServer, calendar)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpServer.Start(gctx, runtime.NewServeMux())
	})
	g.Go(func() error {
		return grpcServer.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()

		if err := httpServer.Stop(ctx); err != nil {
			log.Error("failed to stop http server: " + err.Error())
		}
		return grpcServer.Stop(ctx)
	})

	log.Info("calendar is running...")

	if err := g.Wait(); err != nil {
		log.Errorf("calendar stopped: %v", err)
	}
}
