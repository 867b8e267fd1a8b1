package main

import (
	"github.com/lomoval/sked/internal/config"
	"github.com/lomoval/sked/internal/logger"
	"github.com/lomoval/sked/internal/rabbit"
	"github.com/lomoval/sked/internal/scheduler"
	"github.com/lomoval/sked/internal/storagebuilder"
)

type Config struct {
	Logger    logger.Config
	Rabbit    rabbit.Config
	Storage   storagebuilder.Config
	Scheduler scheduler.Config
}

func NewConfig(configFile string) (Config, error) {
	c := Config{}
	err := config.Load(configFile, map[string]interface{}{
		"rabbit.host":            "127.0.0.1",
		"rabbit.port":            "5672",
		"rabbit.user":            "user",
		"rabbit.password":        "pass",
		"rabbit.queue":           "calendar.notify",
		"logger.level":           "WARN",
		"storage.storageType":    "memory",
		"scheduler.reminderSpec": "* * * * *",
		"scheduler.cleanupSpec":  "@every 5m",
		"scheduler.retention":    "8760h",
	}, &c)
	return c, err
}
