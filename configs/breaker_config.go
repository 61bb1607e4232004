package configs

import "time"

// CircuitBreakerConfig - конфигурация circuit breaker для одного источника
type CircuitBreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"` // подряд идущих неудач до перехода в Open
	Cooldown         time.Duration `yaml:"cooldown"`          // время ожидания перед Half-Open
	SevereWeight     uint32        `yaml:"severe_weight"`     // вес неудачи повышенной серьёзности (429/403)
}

// DefaultCircuitBreakerConfig возвращает конфиг breaker-а с продовыми дефолтами:
// 5 последовательных неудач открывают breaker на 5 минут
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		Cooldown:         300 * time.Second,
		SevereWeight:     2,
	}
}
