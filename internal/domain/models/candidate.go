package models

// Candidate - размеченный результат одной стратегии парсинга до валидации
// стратегия заполняет те поля, которые смогла извлечь; пустая строка = поле не найдено
// выбор кандидата делается по уверенности, а не по пробам типов
type Candidate struct {
	Name      string   // название товара
	PriceText string   // цена как текст (нормализуется при валидации)
	URL       string   // ссылка на товар
	SKU       string   // артикул
	Brand     string   // бренд
	Model     string   // модель
	Image     string   // изображение
	Sizes     []string // размеры
	InStock   bool     // наличие
}
