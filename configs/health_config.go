package configs

import "time"

// HealthMonitorConfig - настройки монитора здоровья источников
type HealthMonitorConfig struct {
	CheckInterval       time.Duration `yaml:"check_interval"`        // период классификации
	OutcomeWindow       int           `yaml:"outcome_window"`        // размер скользящего окна исходов
	SuccessRateWarning  float64       `yaml:"success_rate_warning"`  // ниже - Warning
	SuccessRateCritical float64       `yaml:"success_rate_critical"` // ниже - Critical
	ConsecutiveWarning  int           `yaml:"consecutive_warning"`   // подряд неудач для Warning
	ConsecutiveCritical int           `yaml:"consecutive_critical"`  // подряд неудач для Critical
	StaleWindow         time.Duration `yaml:"stale_window"`          // без успешных извлечений - Warning
	ResponseTimeWarning time.Duration `yaml:"response_time_warning"`
	ResponseTimeCrit    time.Duration `yaml:"response_time_critical"`
	AlertCooldown       time.Duration `yaml:"alert_cooldown"` // окно дедупликации алертов (source, type)
	AutoHealInterval    time.Duration `yaml:"auto_heal_interval"`
	ThrottleMinInterval time.Duration `yaml:"throttle_min_interval"` // пол для аварийного троттлинга
	ThrottleMaxInterval time.Duration `yaml:"throttle_max_interval"` // потолок для аварийного троттлинга
}

// DefaultHealthMonitorConfig - пороги из продовой конфигурации
func DefaultHealthMonitorConfig() *HealthMonitorConfig {
	return &HealthMonitorConfig{
		CheckInterval:       5 * time.Minute,
		OutcomeWindow:       50,
		SuccessRateWarning:  0.7,
		SuccessRateCritical: 0.5,
		ConsecutiveWarning:  5,
		ConsecutiveCritical: 10,
		StaleWindow:         2 * time.Hour,
		ResponseTimeWarning: 5 * time.Second,
		ResponseTimeCrit:    10 * time.Second,
		AlertCooldown:       15 * time.Minute,
		AutoHealInterval:    30 * time.Minute,
		ThrottleMinInterval: 5 * time.Minute,
		ThrottleMaxInterval: 60 * time.Minute,
	}
}
