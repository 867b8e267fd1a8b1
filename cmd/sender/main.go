package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/lomoval/sked/internal/logger"
	"github.com/lomoval/sked/internal/rabbit"
	"github.com/lomoval/sked/internal/sender"
	log "github.com/sirupsen/logrus"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/sender_config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

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

	sinks := []sender.Sink{sender.LogSink{}}
	if config.Telegram.Token != "" {
		tg, err := sender.NewTelegramSink(config.Telegram)
		if err != nil {
			log.Errorf("failed to start %v", err)
			return
		}
		sinks = append(sinks, tg)
	}
	s, err := sender.New(sinks...)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer r.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	log.Info("sender is running...")
	if err := r.Consume(ctx, s.Process); err != nil {
		log.Errorf("sender stopped: %v", err)
	}
}
