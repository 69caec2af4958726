package fixture

import "fmt"

// Distribution is a percentage split across size classes. Whatever Large
// and Medium leave unassigned up to 100 goes to Small.
type Distribution struct {
	Large  float64 `json:"large" yaml:"large"`
	Medium float64 `json:"medium" yaml:"medium"`
	Small  float64 `json:"small" yaml:"small"`
}

// DefaultDistribution sends 80% of traffic to medium images and the rest to small.
var DefaultDistribution = Distribution{Large: 0, Medium: 80, Small: 20}

// Validate reports negative weights and splits summing above 100.
func (d Distribution) Validate() error {
	if d.Large < 0 || d.Medium < 0 || d.Small < 0 {
		return fmt.Errorf("distribution weights must be non-negative: %+v", d)
	}
	if d.Large+d.Medium > 100 {
		return fmt.Errorf("distribution large+medium must not exceed 100, got %.2f", d.Large+d.Medium)
	}
	if d.Large+d.Medium+d.Small > 100 {
		return fmt.Errorf("distribution must not exceed 100, got %.2f", d.Large+d.Medium+d.Small)
	}
	return nil
}

// Classes returns the classes that receive a non-zero share of traffic.
func (d Distribution) Classes() []Class {
	var out []Class
	for _, w := range d.weights() {
		if w.weight > 0 {
			out = append(out, w.class)
		}
	}
	return out
}

type classWeight struct {
	class  Class
	weight float64
}

func (d Distribution) weights() []classWeight {
	return []classWeight{
		{class: Large, weight: d.Large},
		{class: Medium, weight: d.Medium},
		{class: Small, weight: 100 - d.Large - d.Medium},
	}
}

// cumulative builds the table sampled by pick: each entry holds the
// running upper bound of its class within [0, 100).
func (d Distribution) cumulative() []classWeight {
	table := make([]classWeight, 0, 3)
	var acc float64
	for _, w := range d.weights() {
		if w.weight <= 0 {
			continue
		}
		acc += w.weight
		table = append(table, classWeight{class: w.class, weight: acc})
	}
	return table
}

// pick maps a uniform draw in [0, 100) onto the cumulative table.
func pick(table []classWeight, draw float64) (Class, bool) {
	for _, entry := range table {
		if draw < entry.weight {
			return entry.class, true
		}
	}
	if len(table) == 0 {
		return "", false
	}
	return table[len(table)-1].class, true
}
