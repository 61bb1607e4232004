// описание общего конфига сервиса мониторинга дропов
package configs

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config - общий конфиг сервиса, собирается из yml файлов, пути к которым лежат в .env
type Config struct {
	Sources      *SourcesConfig
	Extraction   *ExtractionConfig
	Health       *HealthMonitorConfig
	Orchestrator *OrchestratorConfig
	Detector     *DetectorConfig
	Dispatch     *DispatchConfig
	Cache        *CacheConfig
	Postgres     *PostgresConfig
	Redis        *RedisConfig
	Server       *ServerConfig
}

// LoadConfig загружает конфигурацию: .env задаёт пути к yml файлам,
// отсутствующие файлы дают дефолтные значения без ошибки
func LoadConfig() (*Config, error) {
	// .env опционален: в контейнере всё приходит через окружение
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, using environment and defaults")
	}

	sources, err := LoadYAMLConfig(os.Getenv("SOURCES_CONFIG_PATH"), DefaultSourcesConfig)
	if err != nil {
		return nil, fmt.Errorf("error during loading sources config: %w", err)
	}

	extraction, err := LoadYAMLConfig(os.Getenv("EXTRACTION_CONFIG_PATH"), DefaultExtractionConfig)
	if err != nil {
		return nil, fmt.Errorf("error during loading extraction config: %w", err)
	}

	health, err := LoadYAMLConfig(os.Getenv("HEALTH_CONFIG_PATH"), DefaultHealthMonitorConfig)
	if err != nil {
		return nil, fmt.Errorf("error during loading health monitor config: %w", err)
	}

	orchestrator, err := LoadYAMLConfig(os.Getenv("ORCHESTRATOR_CONFIG_PATH"), DefaultOrchestratorConfig)
	if err != nil {
		return nil, fmt.Errorf("error during loading orchestrator config: %w", err)
	}

	detector, err := LoadYAMLConfig(os.Getenv("DETECTOR_CONFIG_PATH"), DefaultDetectorConfig)
	if err != nil {
		return nil, fmt.Errorf("error during loading detector config: %w", err)
	}

	dispatch, err := LoadYAMLConfig(os.Getenv("DISPATCH_CONFIG_PATH"), DefaultDispatchConfig)
	if err != nil {
		return nil, fmt.Errorf("error during loading dispatch config: %w", err)
	}

	cache, err := LoadYAMLConfig(os.Getenv("CACHE_CONFIG_PATH"), DefaultCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("error during loading cache config: %w", err)
	}

	postgres, err := LoadYAMLConfig(os.Getenv("POSTGRES_CONFIG_PATH"), DefaultPostgresConfig)
	if err != nil {
		return nil, fmt.Errorf("error during loading postgres config: %w", err)
	}

	redis, err := LoadYAMLConfig(os.Getenv("REDIS_CONFIG_PATH"), DefaultRedisConfig)
	if err != nil {
		return nil, fmt.Errorf("error during loading redis config: %w", err)
	}

	server, err := LoadYAMLConfig(os.Getenv("SERVER_CONFIG_PATH"), DefaultServerConfig)
	if err != nil {
		return nil, fmt.Errorf("error during loading server config: %w", err)
	}

	// DSN из окружения имеет приоритет над yml (секреты не храним в файлах)
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		postgres.DSN = dsn
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		redis.Password = pass
	}

	return &Config{
		Sources:      sources,
		Extraction:   extraction,
		Health:       health,
		Orchestrator: orchestrator,
		Detector:     detector,
		Dispatch:     dispatch,
		Cache:        cache,
		Postgres:     postgres,
		Redis:        redis,
		Server:       server,
	}, nil
}
