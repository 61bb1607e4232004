// пайплайн извлечения: цепочка стратегий с деградацией
// стратегии пробуются в порядке надёжности, побеждает первая,
// чьи кандидаты прошли порог уверенности
package extraction

import (
	"context"
	"fmt"
	"log"
	"time"

	"dropalert/configs"
	"dropalert/internal/domain/models"
	"dropalert/internal/interfaces"
)

// StrategiesFor собирает стратегии по их именам из конфигурации источника
// неизвестные имена пропускаются с предупреждением, порядок сохраняется
func StrategiesFor(names []string) []interfaces.ParseStrategy {
	var out []interfaces.ParseStrategy
	for _, name := range names {
		switch models.ExtractionMethod(name) {
		case models.MethodJSONLD:
			out = append(out, NewJSONLDStrategy())
		case models.MethodScriptJSON:
			out = append(out, NewScriptJSONStrategy())
		case models.MethodHTMLStruct:
			out = append(out, NewHTMLStructuredStrategy())
		case models.MethodHTMLFallback:
			out = append(out, NewHTMLFallbackStrategy())
		default:
			log.Printf("⚠️ Неизвестная стратегия парсинга в конфиге: %q, пропускаем", name)
		}
	}
	return out
}

// Pipeline выполняет полный цикл: загрузка, цепочка стратегий, скоринг
type Pipeline struct {
	scorer *Scorer
}

func NewPipeline(cfg *configs.ExtractionConfig) *Pipeline {
	return &Pipeline{scorer: NewScorer(cfg)}
}

// Extract загружает выдачу источника и прогоняет её через цепочку стратегий
// семантика результата:
//   - снапшоты + nil:       стратегия дала принятых кандидатов
//   - пустой срез + nil:    страница разобрана, товаров по запросу нет
//   - nil + ErrParseExhausted: кандидаты были, но ни один не прошёл порог
//   - nil + ошибка сети:    до разбора не дошло
func (p *Pipeline) Extract(ctx context.Context, conn interfaces.SourceConnector, query string) ([]models.ProductSnapshot, error) {
	raw, err := conn.Fetch(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for source %s: %w", conn.Name(), err)
	}

	capturedAt := time.Now().UTC()
	sawCandidates := false

	for _, strategy := range conn.Strategies() {
		candidates, err := strategy.Parse(raw, "")
		if err != nil {
			// сломанная стратегия не валит извлечение, просто деградируем дальше
			log.Printf("⚠️ Источник %s: стратегия %s упала: %v", conn.Name(), strategy.Method(), err)
			continue
		}
		if len(candidates) == 0 {
			continue
		}
		sawCandidates = true

		snapshots := p.accept(candidates, conn.Name(), strategy.Method(), capturedAt)
		if len(snapshots) > 0 {
			return snapshots, nil
		}
	}

	if sawCandidates {
		// что-то нашли, но всё мусор - это сигнал о смене разметки, не пустая выдача
		return nil, fmt.Errorf("source %s: %w", conn.Name(), ErrParseExhausted)
	}

	// страница валидна, товаров по запросу просто нет
	return []models.ProductSnapshot{}, nil
}

// accept скорит кандидатов и оставляет прошедших порог
func (p *Pipeline) accept(candidates []models.Candidate, sourceID string, method models.ExtractionMethod, capturedAt time.Time) []models.ProductSnapshot {
	var out []models.ProductSnapshot
	seen := make(map[string]struct{})

	for _, c := range candidates {
		snap, ok := p.scorer.Build(c, sourceID, method, capturedAt)
		if !ok {
			continue
		}
		// стратегии иногда выдают один товар дважды (карточка + рекомендации)
		key := snap.ItemKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, snap)
	}

	return out
}
