// контракты подключаемых коннекторов источников
// новый ритейлер добавляется реализацией этих интерфейсов, ядро не меняется
package interfaces

import (
	"context"

	"dropalert/internal/domain/models"
)

// ParseStrategy - одна стратегия разбора сырого контента
// стратегии чистые: вход - сырой контент, выход - кандидаты без побочных эффектов
type ParseStrategy interface {
	// Method возвращает метод извлечения, который реализует стратегия
	Method() models.ExtractionMethod
	// Parse разбирает сырой контент страницы в список кандидатов
	Parse(raw []byte, pageURL string) ([]models.Candidate, error)
}

// SourceConnector - подключаемый коннектор одного ритейлера
type SourceConnector interface {
	// Name возвращает id источника, к которому привязан коннектор
	Name() string
	// Fetch загружает сырой контент по поисковому запросу
	Fetch(ctx context.Context, query string) ([]byte, error)
	// Strategies возвращает упорядоченный список стратегий разбора для этого источника
	Strategies() []ParseStrategy
}
