// Package config reads service configuration files with viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix marks a value that is read from the named environment variable,
// e.g. password: $env:POSTGRES_PASSWORD.
const EnvPrefix = "$env:"

// Load reads configFile over defaults into out. Variables from an optional
// .env file in the working directory are loaded first.
func Load(configFile string, defaults map[string]interface{}, out interface{}) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %q: %w", configFile, err)
	}
	for _, key := range v.AllKeys() {
		env := v.GetString(key)
		if strings.HasPrefix(env, EnvPrefix) {
			if err := v.BindEnv(key, env[len(EnvPrefix):]); err != nil {
				return fmt.Errorf("failed to prepare config: %w", err)
			}
			log.Debugf("config key %s is bound to $%s", key, env[len(EnvPrefix):])
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("unable to decode into config struct: %w", err)
	}
	return nil
}
