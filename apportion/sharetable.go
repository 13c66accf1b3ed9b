/*
sharetable.go - Millesimal share tables

PURPOSE:
  A ShareTable records each unit's ownership-share weight for one of the ten
  named tables (A..L) of a building. Weights are expressed in millesimi: a
  table is usable for apportionment only when its weights cover every unit
  and sum to exactly 1000.

INVARIANT:
  TotalWeight() == 1000 AND every unit in 1..Units has an explicit entry
  (zero is an explicit entry). Tables may hold invalid totals while being
  edited; the engine refuses to run against them.

SEE ALSO:
  - engine.go: validates tables before apportioning
  - errors.go: InvalidTableError
*/
package apportion

import (
	"github.com/shopspring/decimal"
)

// TableWeightTotal is the weight sum every valid share table must reach.
const TableWeightTotal = 1000

// ShareTable maps unit ids to millesimal weights for one table of a building.
type ShareTable struct {
	ID         TableID
	BuildingID BuildingID

	// Units is the building's total unit count; entries outside 1..Units
	// are rejected.
	Units int

	weights map[int]int
}

// NewShareTable creates an empty table for a building with the given unit count.
func NewShareTable(buildingID BuildingID, id TableID, units int) *ShareTable {
	return &ShareTable{
		ID:         id,
		BuildingID: buildingID,
		Units:      units,
		weights:    make(map[int]int, units),
	}
}

// SetWeight records a unit's weight. Negative weights and out-of-range unit
// ids are rejected; the table is left untouched on error.
func (t *ShareTable) SetWeight(unitID, weight int) error {
	if unitID < 1 || unitID > t.Units {
		return &ValidationError{Field: "unit_id", Message: "unit id out of range"}
	}
	if weight < 0 {
		return &ValidationError{Field: "weight", Message: "weight must be non-negative"}
	}
	t.weights[unitID] = weight
	return nil
}

// Weight returns the unit's weight, defaulting unset units to 0. The second
// return distinguishes an explicit zero from an unset entry.
func (t *ShareTable) Weight(unitID int) (int, bool) {
	w, ok := t.weights[unitID]
	return w, ok
}

// TotalWeight sums all set weights.
func (t *ShareTable) TotalWeight() int {
	total := 0
	for _, w := range t.weights {
		total += w
	}
	return total
}

// IsValid reports whether the table satisfies the millesimal invariant.
func (t *ShareTable) IsValid() bool {
	return t.Validate() == nil
}

// Validate returns an InvalidTableError describing every violation of the
// millesimal invariant, or nil for a usable table.
func (t *ShareTable) Validate() error {
	var missing []int
	for u := 1; u <= t.Units; u++ {
		if _, ok := t.weights[u]; !ok {
			missing = append(missing, u)
		}
	}
	total := t.TotalWeight()
	if total != TableWeightTotal || len(missing) > 0 {
		return &InvalidTableError{Table: t.ID, Total: total, MissingUnits: missing}
	}
	return nil
}

// WeightFraction returns weight(unitID)/1000 as the unit's share of any
// expense allocated through this table. The table must be valid.
func (t *ShareTable) WeightFraction(unitID int) (decimal.Decimal, error) {
	if err := t.Validate(); err != nil {
		return decimal.Zero, err
	}
	w := t.weights[unitID]
	return decimal.NewFromInt(int64(w)).Div(thousand), nil
}

// CopyTo replaces dst's entire weight map with a duplicate of this table's.
// A straight copy preserves the total, so a valid source leaves dst valid.
func (t *ShareTable) CopyTo(dst *ShareTable) {
	dst.Units = t.Units
	dst.weights = make(map[int]int, len(t.weights))
	for u, w := range t.weights {
		dst.weights[u] = w
	}
}

// Weights returns a copy of the weight map.
func (t *ShareTable) Weights() map[int]int {
	out := make(map[int]int, len(t.weights))
	for u, w := range t.weights {
		out[u] = w
	}
	return out
}
