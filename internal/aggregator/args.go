package aggregator

import (
	"strings"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/models"
)

// Invocation описывает один запуск агрегатора.
type Invocation struct {
	Parameters models.Parameters
	Output     string   // Абсолютный путь для --output; пустой для CSV
	Sources    []string // Абсолютные пути перенесённых файлов в порядке загрузки
	Dir        string   // Рабочая директория процесса
}

// Arguments строит аргументы агрегатора без пути к исполняемому файлу.
// Каждое значение — отдельный элемент, склеивания в строку нет.
func Arguments(inv Invocation) []string {
	p := inv.Parameters
	args := make([]string, 0, 7+len(inv.Sources))

	if p.FilterBudgetTypes != "" {
		args = append(args, "--filter-budget-types="+p.FilterBudgetTypes)
	}
	if p.FilterYears != "" {
		args = append(args, "--filter-years="+p.FilterYears)
	}
	args = append(args,
		flag("hide-duplicate-budgets", p.HideDuplicateBudgets),
		flag("hide-empty-accounts", p.HideEmptyAccounts),
		flag("hide-empty-balances", p.HideEmptyBalances),
		flag("hide-empty-budgets", p.HideEmptyBudgets),
	)
	if inv.Output != "" {
		args = append(args, "--output="+inv.Output)
	}
	return append(args, inv.Sources...)
}

func flag(name string, on bool) string {
	if on {
		return "--" + name
	}
	return "--no-" + name
}

// FormatCommand собирает argv в строку для логов и отладочного вывода.
// Для запуска процесса она не используется.
func FormatCommand(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quote(arg)
	}
	return strings.Join(quoted, " ")
}

func quote(s string) string {
	if s != "" && strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("-_=./,:+@%", r):
		return false
	}
	return true
}
