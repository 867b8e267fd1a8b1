package main

import (
	"github.com/lomoval/sked/internal/config"
	"github.com/lomoval/sked/internal/logger"
	"github.com/lomoval/sked/internal/rabbit"
	"github.com/lomoval/sked/internal/sender"
)

type Config struct {
	Logger   logger.Config
	Rabbit   rabbit.Config
	Telegram sender.TelegramConfig
}

func NewConfig(configFile string) (Config, error) {
	c := Config{}
	err := config.Load(configFile, map[string]interface{}{
		"rabbit.host":     "127.0.0.1",
		"rabbit.port":     "5672",
		"rabbit.user":     "user",
		"rabbit.password": "pass",
		"rabbit.queue":    "calendar.notify",
		"logger.level":    "WARN",
	}, &c)
	return c, err
}
