package jobs

// SearchJob - джоба поиска товара по всем доступным источникам
type SearchJob struct {
	BaseJob
	Query string
}

// MonitorJob - джоба одного цикла мониторинга отслеживаемого товара
type MonitorJob struct {
	BaseJob
	Keyword string
}

// ResaleJob - джоба сбора данных ресейл-рынка по товару
type ResaleJob struct {
	BaseJob
	Keyword string
}
