package configs

import (
	"fmt"
	"time"
)

// ServerConfig - конфиг HTTP сервера операционного дашборда
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr возвращает адрес для ListenAndServe
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// DefaultServerConfig возвращает дефолтный конфиг сервера
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "0.0.0.0",
		Port:            "8080",
		ShutdownTimeout: 30 * time.Second,
	}
}

// CacheConfig - конфиг шардированных in-memory кэшей
type CacheConfig struct {
	NumOfShards     int           `yaml:"num_of_shards"`
	SearchTTL       time.Duration `yaml:"search_ttl"`        // TTL результатов поиска
	ResaleTTL       time.Duration `yaml:"resale_ttl"`        // TTL усреднённых ресейл-цен
	CleanUpInterval time.Duration `yaml:"clean_up_interval"` // период очистки протухших записей
}

// DefaultCacheConfig возвращает дефолтный конфиг кэшей
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		NumOfShards:     16,
		SearchTTL:       2 * time.Minute,
		ResaleTTL:       30 * time.Minute,
		CleanUpInterval: 5 * time.Minute,
	}
}
