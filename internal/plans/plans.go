// Package plans содержит фиксированный каталог тарифных планов.
// Цена и длительность выводятся только отсюда и никогда не берутся
// из клиентского запроса.
package plans

import "sort"

// Plan описывает один тариф каталога
type Plan struct {
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	DurationDays int     `json:"durationDays"`
}

const (
	MobileV4Basic      = "mobile-v4-basic"
	MobileV4Premium    = "mobile-v4-premium"
	MobileV4Enterprise = "mobile-v4-enterprise"
	MobileV5Basic      = "mobile-v5-basic"
	MobileV5Premium    = "mobile-v5-premium"
	FullSuiteBasic     = "full-suite-basic"
	FullSuitePremium   = "full-suite-premium"
)

var catalog = map[string]Plan{
	MobileV4Basic:      {Name: MobileV4Basic, Price: 29.99, DurationDays: 30},
	MobileV4Premium:    {Name: MobileV4Premium, Price: 49.99, DurationDays: 60},
	MobileV4Enterprise: {Name: MobileV4Enterprise, Price: 99.99, DurationDays: 90},
	MobileV5Basic:      {Name: MobileV5Basic, Price: 39.99, DurationDays: 30},
	MobileV5Premium:    {Name: MobileV5Premium, Price: 59.99, DurationDays: 60},
	FullSuiteBasic:     {Name: FullSuiteBasic, Price: 79.99, DurationDays: 60},
	FullSuitePremium:   {Name: FullSuitePremium, Price: 149.99, DurationDays: 90},
}

// IsValid сообщает, существует ли план в каталоге
func IsValid(name string) bool {
	_, ok := catalog[name]
	return ok
}

// Get возвращает план по имени
func Get(name string) (Plan, bool) {
	p, ok := catalog[name]
	return p, ok
}

// Price возвращает цену плана (0 для неизвестного)
func Price(name string) float64 {
	return catalog[name].Price
}

// DurationDays возвращает длительность плана в днях
func DurationDays(name string) int {
	return catalog[name].DurationDays
}

// All возвращает каталог, отсортированный по цене
func All() []Plan {
	out := make([]Plan, 0, len(catalog))
	for _, p := range catalog {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}
