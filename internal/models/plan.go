package models

import "sort"

// Plan - тариф из статического каталога.
type Plan struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	MonthlyPriceCents int64  `json:"monthly_price_cents"`
	HaircutsPerMonth  int    `json:"haircuts_per_month"`
	Popular           bool   `json:"popular,omitempty"`
}

var plans = map[string]Plan{
	"basic":   {ID: "basic", Name: "1 Haircut/Month", MonthlyPriceCents: 3520, HaircutsPerMonth: 1},
	"premium": {ID: "premium", Name: "2 Haircuts/Month", MonthlyPriceCents: 6600, HaircutsPerMonth: 2, Popular: true},
	"pro":     {ID: "pro", Name: "3 Haircuts/Month", MonthlyPriceCents: 9900, HaircutsPerMonth: 3},
}

// PlanByID ищет тариф в каталоге.
func PlanByID(id string) (Plan, bool) {
	p, ok := plans[id]
	return p, ok
}

// Plans возвращает каталог, отсортированный по цене.
func Plans() []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthlyPriceCents < out[j].MonthlyPriceCents })
	return out
}
