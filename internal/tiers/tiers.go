// Package tiers maps cumulative metrics to named tiers via fixed, ascending
// threshold tables. Product, user and group scales are intentionally
// independent; they only share the classification algorithm.
package tiers

// Threshold is one (minimum value, label) pair of a tier table.
type Threshold struct {
	Min   int64
	Label string
}

// Table is an ordered tier scale. Entries are evaluated highest first; the
// Floor label applies when no threshold is met.
type Table struct {
	Floor      string
	Thresholds []Threshold
}

// Classify returns the label of the highest threshold not exceeding value.
// Negative input is treated as 0, so the result is always the floor label or
// better. Pure and total, no error cases.
func (t Table) Classify(value int64) string {
	if value < 0 {
		value = 0
	}
	best := t.Floor
	bestMin := int64(-1)
	for _, th := range t.Thresholds {
		if value >= th.Min && th.Min > bestMin {
			best = th.Label
			bestMin = th.Min
		}
	}
	return best
}

// ProductTable grades the 0-1000 eco score of a product.
var ProductTable = Table{
	Floor: "Standard",
	Thresholds: []Threshold{
		{Min: 200, Label: "Eco Aware"},
		{Min: 400, Label: "Eco Friendly"},
		{Min: 600, Label: "Eco Leader"},
		{Min: 800, Label: "Eco Champion"},
	},
}

// UserTable grades a user's cumulative impact points.
var UserTable = Table{
	Floor: "Seedling",
	Thresholds: []Threshold{
		{Min: 500, Label: "Eco Conscious"},
		{Min: 2000, Label: "Green Advocate"},
		{Min: 5000, Label: "Eco Warrior"},
		{Min: 10000, Label: "Planet Guardian"},
	},
}

// GroupTable grades a group's cumulative impact points.
var GroupTable = Table{
	Floor: "Eco Beginners",
	Thresholds: []Threshold{
		{Min: 5000, Label: "Eco Collective"},
		{Min: 20000, Label: "Green Guardians"},
		{Min: 50000, Label: "Planet Protectors"},
	},
}

// Rank returns the position of the label in the table, floor first. Unknown
// labels rank below the floor so promotions from bad data never regress a
// stored tier.
func (t Table) Rank(label string) int {
	if label == t.Floor {
		return 0
	}
	for i, th := range t.Thresholds {
		if th.Label == label {
			return i + 1
		}
	}
	return -1
}
