// Package params разбирает параметры формы агрегатора из запроса.
//
// Значения флагов hide-* по умолчанию зависят от метода запроса:
// ссылка (GET) без флагов означает «все фильтры включены», а отправленная
// форма (POST) без флагов означает «все выключены»: браузер не передаёт
// неотмеченные чекбоксы.
package params

import (
	"net/http"
	"net/url"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/models"
)

// Имена полей формы.
const (
	FieldSources              = "sources[]"
	FieldFilterBudgetTypes    = "filter-budget-types"
	FieldFilterYears          = "filter-years"
	FieldHideDuplicateBudgets = "hide-duplicate-budgets"
	FieldHideEmptyAccounts    = "hide-empty-accounts"
	FieldHideEmptyBalances    = "hide-empty-balances"
	FieldHideEmptyBudgets     = "hide-empty-budgets"
	FieldFormat               = "format"
)

// Policy определяет, как значение чекбокса превращается в bool.
type Policy interface {
	Flag(values url.Values, name string) bool
}

type getPolicy struct{}

// Flag включён, если параметр отсутствует или не равен "false".
func (getPolicy) Flag(values url.Values, name string) bool {
	v, ok := values[name]
	return !ok || len(v) == 0 || v[0] != "false"
}

type postPolicy struct{}

// Flag включён, только если параметр равен "on".
func (postPolicy) Flag(values url.Values, name string) bool {
	return values.Get(name) == "on"
}

var (
	// GETPolicy — флаги по умолчанию включены.
	GETPolicy Policy = getPolicy{}
	// POSTPolicy — флаги по умолчанию выключены.
	POSTPolicy Policy = postPolicy{}
)

// PolicyFor возвращает политику для HTTP‑метода.
func PolicyFor(method string) Policy {
	if method == http.MethodPost {
		return POSTPolicy
	}
	return GETPolicy
}

// Parse собирает параметры из значений формы. Ошибок не бывает:
// отсутствующие и некорректные значения заменяются значениями по умолчанию.
func Parse(policy Policy, values url.Values) models.Parameters {
	return models.Parameters{
		FilterBudgetTypes:    values.Get(FieldFilterBudgetTypes),
		FilterYears:          values.Get(FieldFilterYears),
		HideDuplicateBudgets: policy.Flag(values, FieldHideDuplicateBudgets),
		HideEmptyAccounts:    policy.Flag(values, FieldHideEmptyAccounts),
		HideEmptyBalances:    policy.Flag(values, FieldHideEmptyBalances),
		HideEmptyBudgets:     policy.Flag(values, FieldHideEmptyBudgets),
		Format:               models.ParseFormat(values.Get(FieldFormat)),
	}
}

// FromRequest разбирает параметры уже распарсенной формы r.Form
// с политикой, выбранной по методу запроса.
func FromRequest(r *http.Request) models.Parameters {
	values := r.Form
	if values == nil {
		values = r.URL.Query()
	}
	return Parse(PolicyFor(r.Method), values)
}
