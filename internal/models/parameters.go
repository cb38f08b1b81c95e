// Package models содержит структуры данных, которые передаются между слоями
// веб‑интерфейса агрегатора бюджетов: параметры запроса и формат результата.
package models

// Format описывает формат документа, который формирует агрегатор.
type Format string

const (
	// FormatCSV — текстовый CSV, агрегатор пишет его в stdout.
	FormatCSV Format = "csv"
	// FormatXLSX — книга Excel, агрегатор пишет её в файл из --output.
	FormatXLSX Format = "xlsx"
)

// ParseFormat возвращает формат по строке из запроса.
// Любое значение, кроме "csv" и "xlsx", превращается в FormatXLSX.
func ParseFormat(s string) Format {
	switch Format(s) {
	case FormatCSV:
		return FormatCSV
	default:
		return FormatXLSX
	}
}

// ContentType возвращает MIME‑тип готового документа.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=UTF-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Parameters — параметры одного запроса, общие для формы и для вызова агрегатора.
// Строковые фильтры не разбираются и передаются агрегатору как есть.
type Parameters struct {
	FilterBudgetTypes    string // Фильтр по типам бюджета, например "Plan, Ist"
	FilterYears          string // Фильтр по годам, например "2023, 2024"
	HideDuplicateBudgets bool   // Убрать дублирующиеся бюджеты
	HideEmptyAccounts    bool   // Убрать неиспользуемые счета
	HideEmptyBalances    bool   // Убрать неиспользуемые продукты
	HideEmptyBudgets     bool   // Убрать неиспользуемые бюджеты
	Format               Format // Формат результата
}
