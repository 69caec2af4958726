package metrics

import (
	"cmp"
	"slices"
)

// StatusBucket is the failure count of one scenario and status code
// ("error" when no response was received).
type StatusBucket struct {
	Scenario string `json:"scenario"`
	Code     string `json:"code"`
	Count    int    `json:"count"`
}

// flattenStatuses lists failure buckets, largest first. Ties are ordered by
// scenario and then code.
func flattenStatuses(byScenario map[string]map[string]int) []StatusBucket {
	var rows []StatusBucket
	for name, byCode := range byScenario {
		for code, n := range byCode {
			rows = append(rows, StatusBucket{Scenario: name, Code: code, Count: n})
		}
	}
	slices.SortFunc(rows, func(a, b StatusBucket) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(a.Scenario, b.Scenario),
			cmp.Compare(a.Code, b.Code),
		)
	})
	return rows
}
