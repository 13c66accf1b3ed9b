/*
roster.go - Building and resident registry

PURPOSE:
  Maps residents to units and occupancy roles. Units have no independent
  record: a building with N units implicitly owns unit ids 1..N, and persons
  reference them by id.

INVARIANT:
  Every person's unit id lies within 1..Building.Units. Violations are
  reported as InvalidPersonAssignmentError, never auto-corrected.
*/
package apportion

// Building is the managed property with a fixed number of units. The
// descriptive fields are not semantically load-bearing.
type Building struct {
	ID      BuildingID
	Name    string
	Address string
	Units   int
}

// Person is a resident assigned to exactly one unit with one occupancy role.
type Person struct {
	ID         PersonID
	BuildingID BuildingID
	UnitID     int
	FirstName  string
	LastName   string
	Email      string
	Role       Role
}

// FullName joins first and last name for display.
func (p Person) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	return p.FirstName + " " + p.LastName
}

// Roster is the resident registry of one building.
type Roster struct {
	Building Building
	Persons  []Person
}

// Validate checks every person against the building's unit range and role
// vocabulary, returning the first violation.
func (r Roster) Validate() error {
	for _, p := range r.Persons {
		if p.UnitID < 1 || p.UnitID > r.Building.Units {
			return &InvalidPersonAssignmentError{PersonID: p.ID, UnitID: p.UnitID, Units: r.Building.Units}
		}
		if !ValidRole(p.Role) {
			return &ValidationError{Field: "role", Message: "unknown occupancy role " + string(p.Role)}
		}
	}
	return nil
}

// unitOccupancy is the per-unit role census the engine splits pools with.
type unitOccupancy struct {
	persons        []Person
	ownerClaimants int // persons claiming the owner-side pool
	tenantClaimant int // persons claiming the tenant-side pool
}

// occupancyByUnit groups persons by unit and counts pool claimants. A person
// with both roles claims both pools.
func (r Roster) occupancyByUnit() map[int]*unitOccupancy {
	byUnit := make(map[int]*unitOccupancy)
	for _, p := range r.Persons {
		occ := byUnit[p.UnitID]
		if occ == nil {
			occ = &unitOccupancy{}
			byUnit[p.UnitID] = occ
		}
		occ.persons = append(occ.persons, p)
		if p.Role.ClaimsOwnerShare() {
			occ.ownerClaimants++
		}
		if p.Role.ClaimsTenantShare() {
			occ.tenantClaimant++
		}
	}
	return byUnit
}
