package main

import (
	"github.com/lomoval/sked/internal/config"
	"github.com/lomoval/sked/internal/logger"
	internalgrpc "github.com/lomoval/sked/internal/server/grpc"
	internalhttp "github.com/lomoval/sked/internal/server/http"
	"github.com/lomoval/sked/internal/storagebuilder"
)

type Config struct {
	HTTPServer internalhttp.Config
	GrpcServer internalgrpc.Config
	Logger     logger.Config
	Storage    storagebuilder.Config
	// Fields is an optional YAML file overriding the field definitions.
	Fields string
}

func NewConfig(configFile string) (Config, error) {
	c := Config{}
	err := config.Load(configFile, map[string]interface{}{
		"httpServer.host":         "127.0.0.1",
		"httpServer.port":         "8005",
		"httpServer.readTimeout":  "10s",
		"httpServer.writeTimeout": "10s",
		"grpcServer.host":         "127.0.0.1",
		"grpcServer.port":         "8006",
		"logger.level":            "WARN",
		"storage.storageType":     "memory",
		"storage.database.driver": "postgres",
	}, &c)
	return c, err
}
