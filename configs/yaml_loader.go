package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// универсальная функция загрузки конфига из .yml файла (используем дженерики)
// fn - функция-конструктор конфига с дефолтными значениями
// если файла нет или путь пустой - возвращаем дефолты без ошибки
// если файл есть, но не читается/не парсится - возвращаем ошибку
func LoadYAMLConfig[T any](configPath string, fn func() *T) (*T, error) {
	// сначала получаем работоспособный конфиг с дефолтами
	config := fn()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}

	yamlFile, err := os.ReadFile(configPath)
	if err != nil {
		return config, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// пробуем анмаршалить конфиг из yml файла в структуру нужного типа
	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}

	return config, nil
}
