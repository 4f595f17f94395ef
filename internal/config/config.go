package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type HTTPConfig struct {
	Port            string        `yaml:"port" env:"PORT" env-default:"5000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type DatabaseConfig struct {
	URL  string `yaml:"url" env:"DATABASE_URL" env-default:"file:tasks.db"`
	Name string `yaml:"name" env:"DATABASE_NAME" env-default:"tasktracker"`
}

type AuthConfig struct {
	Required  bool   `yaml:"required" env:"AUTH_REQUIRED" env-default:"true"`
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	JWTIssuer string `yaml:"jwt_issuer" env:"AUTH_JWT_ISSUER"`
}

type Config struct {
	LogLevel string         `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
}

func (c HTTPConfig) Address() string {
	return ":" + c.Port
}

// Load reads configPath when it exists and the environment otherwise.
// Environment variables override values from the file.
func Load(configPath string) (Config, error) {
	var cfg Config

	if configPath == "" {
		err := cleanenv.ReadEnv(&cfg)
		return cfg, err
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			cfg = Config{}
			err := cleanenv.ReadEnv(&cfg)
			return cfg, err
		}
		return cfg, err
	}
	return cfg, nil
}

func MustLoad(configPath string) Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config %q: %s", configPath, err)
	}
	return cfg
}
