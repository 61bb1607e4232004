// нормализация текстовой цены в число
// источники пишут цену как угодно: "$189.99", "1 299,00 €", "USD 1,234.56"
package extraction

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var ErrNoPrice = errors.New("no price found in text")

// выхватываем из текста первую последовательность цифр с разделителями
var priceRe = regexp.MustCompile(`\d[\d\s.,]*\d|\d`)

// ParsePrice извлекает цену из произвольного текста
// правила разделителей:
//   - есть и запятая, и точка: десятичный разделитель тот, что правее
//   - только запятая: если после неё ровно 2 цифры - это десятичная запятая,
//     иначе разделитель тысяч ("1,299" = 1299)
//   - пробелы внутри числа - разделители тысяч
func ParsePrice(text string) (float64, error) {
	raw := priceRe.FindString(text)
	if raw == "" {
		return 0, ErrNoPrice
	}

	// пробелы-тысячи выкидываем сразу
	raw = strings.ReplaceAll(raw, " ", "")
	raw = strings.ReplaceAll(raw, " ", "")

	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// европейский формат: "1.299,50"
			raw = strings.ReplaceAll(raw, ".", "")
			raw = strings.Replace(raw, ",", ".", 1)
		} else {
			// американский формат: "1,299.50"
			raw = strings.ReplaceAll(raw, ",", "")
		}
	case lastComma >= 0:
		digitsAfter := len(raw) - lastComma - 1
		if digitsAfter == 2 {
			raw = strings.ReplaceAll(raw, ",", ".")
		} else {
			raw = strings.ReplaceAll(raw, ",", "")
		}
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, ErrNoPrice
	}
	return val, nil
}
