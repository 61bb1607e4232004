// скоринг уверенности извлечённых кандидатов
// вместо "распарсилось/не распарсилось" каждому кандидату присваивается оценка [0,1]:
// обязательные поля дают основной вес, важные - добавку, невалидные значения штрафуются
package extraction

import (
	"strings"
	"time"

	"dropalert/configs"
	"dropalert/internal/domain/models"
)

// Scorer превращает сырых кандидатов в снапшоты с оценкой уверенности
type Scorer struct {
	cfg *configs.ExtractionConfig
}

func NewScorer(cfg *configs.ExtractionConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Build собирает снапшот из кандидата и считает уверенность
// false = кандидат не дотянул до порога принятия и отбрасывается
func (sc *Scorer) Build(c models.Candidate, sourceID string, method models.ExtractionMethod, capturedAt time.Time) (models.ProductSnapshot, bool) {
	snap := models.ProductSnapshot{
		SourceID:   sourceID,
		SKU:        strings.TrimSpace(c.SKU),
		Name:       strings.TrimSpace(c.Name),
		InStock:    c.InStock,
		Sizes:      c.Sizes,
		URL:        strings.TrimSpace(c.URL),
		Brand:      strings.TrimSpace(c.Brand),
		Model:      strings.TrimSpace(c.Model),
		Image:      strings.TrimSpace(c.Image),
		CapturedAt: capturedAt,
		Method:     method,
	}

	if c.PriceText != "" {
		if price, err := ParsePrice(c.PriceText); err == nil {
			snap.Price = &price
		}
	}

	snap.Confidence = sc.score(&snap)
	if snap.Confidence < sc.cfg.MinConfidence {
		return models.ProductSnapshot{}, false
	}

	// без SKU ключ товара не построить, подставляем нормализованное имя
	if snap.SKU == "" {
		snap.SKU = slugify(snap.Name)
	}

	return snap, true
}

// score считает уверенность:
// обязательные поля (name, price, url) делят между собой RequiredWeight,
// важные (brand, model, sku, image) - ImportantWeight,
// каждое присутствующее, но невалидное поле штрафуется на InvalidPenalty
func (sc *Scorer) score(s *models.ProductSnapshot) float64 {
	requiredPresent := []bool{s.Name != "", s.HasPrice(), s.URL != ""}
	importantPresent := []bool{s.Brand != "", s.Model != "", s.SKU != "", s.Image != ""}

	score := 0.0

	perRequired := sc.cfg.RequiredWeight / float64(len(requiredPresent))
	for _, present := range requiredPresent {
		if present {
			score += perRequired
		}
	}

	perImportant := sc.cfg.ImportantWeight / float64(len(importantPresent))
	for _, present := range importantPresent {
		if present {
			score += perImportant
		}
	}

	score -= float64(sc.countInvalid(s)) * sc.cfg.InvalidPenalty

	// уверенность всегда в [0,1]
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// countInvalid считает присутствующие поля с мусорными значениями
func (sc *Scorer) countInvalid(s *models.ProductSnapshot) int {
	invalid := 0

	if s.HasPrice() && (*s.Price < sc.cfg.PriceMin || *s.Price > sc.cfg.PriceMax) {
		invalid++
	}
	if s.URL != "" && !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
		invalid++
	}
	if s.Name != "" && len([]rune(s.Name)) < sc.cfg.MinNameLen {
		invalid++
	}

	return invalid
}

// slugify делает из названия стабильный псевдо-SKU
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
