package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type HTTPOptions struct {
	Addr string `toml:"addr"`
}

type MongoDBOptions struct {
	Address  string `toml:"address"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
}

type RedisOptions struct {
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

type MemCachedOptions struct {
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

type RabbitMQOptions struct {
	Address    string `toml:"address"`
	Port       int    `toml:"port"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	NumWorkers int    `toml:"num_workers"`
}

type AuthOptions struct {
	Secret        string `toml:"secret"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

type MediaOptions struct {
	UploadURL string `toml:"upload_url"`
}

type Config struct {
	HTTP      HTTPOptions      `toml:"http"`
	MongoDB   MongoDBOptions   `toml:"mongodb"`
	Redis     RedisOptions     `toml:"redis"`
	MemCached MemCachedOptions `toml:"memcached"`
	RabbitMQ  RabbitMQOptions  `toml:"rabbitmq"`
	Auth      AuthOptions      `toml:"auth"`
	Media     MediaOptions     `toml:"media"`
}

// Load reads the TOML config at path. The STUDENTHUB_CONFIG environment
// variable overrides path when set.
func Load(path string) (Config, error) {
	if env := os.Getenv("STUDENTHUB_CONFIG"); env != "" {
		path = env
	}
	cfg := defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %s", path, err.Error())
	}
	if cfg.Auth.Secret == "" {
		return Config{}, fmt.Errorf("config: auth.secret is required")
	}
	return cfg, nil
}

func defaults() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8080"
	cfg.MongoDB.Address = "localhost"
	cfg.MongoDB.Port = 27017
	cfg.MongoDB.Database = "studenthub"
	cfg.Redis.Address = "localhost"
	cfg.Redis.Port = 6379
	cfg.MemCached.Address = "localhost"
	cfg.MemCached.Port = 11211
	cfg.RabbitMQ.Address = "localhost"
	cfg.RabbitMQ.Port = 5672
	cfg.RabbitMQ.Username = "guest"
	cfg.RabbitMQ.Password = "guest"
	cfg.RabbitMQ.NumWorkers = 4
	cfg.Auth.TokenTTLHours = 72
	cfg.Media.UploadURL = "http://localhost:9000/upload"
	return cfg
}
