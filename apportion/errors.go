/*
errors.go - Centralized error types for the apportionment core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Outer layers (store, api) wrap these with transport context.

ERROR CATEGORIES:
  1. Validation errors   - recoverable input problems; no partial effect
  2. Precondition errors - apportionment requested against unusable data;
                           the whole operation is refused
  3. Data inconsistency  - stored state contradicts the building's shape;
                           reported, never auto-corrected

USAGE:
  if errors.Is(err, apportion.ErrInvalidTable) {
      var ite *apportion.InvalidTableError
      errors.As(err, &ite)
      // ite.Table names the offender
  }
*/
package apportion

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTable is returned when apportionment is requested against a
	// share table that violates the 1000-total invariant, or when an expense
	// references a table with no weights at all.
	ErrInvalidTable = errors.New("share table not valid for apportionment")

	// ErrInvalidAssignment is returned when a person references a unit
	// outside the building's declared 1..Units range.
	ErrInvalidAssignment = errors.New("invalid person assignment")

	// ErrBuildingNotFound is returned when a referenced building doesn't exist.
	ErrBuildingNotFound = errors.New("building not found")

	// ErrPersonNotFound is returned when a referenced person doesn't exist.
	ErrPersonNotFound = errors.New("person not found")

	// ErrExpenseNotFound is returned when a referenced expense doesn't exist.
	ErrExpenseNotFound = errors.New("expense not found")

	// ErrBudgetNotFound is returned when no budget exists for the year.
	ErrBudgetNotFound = errors.New("budget not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a recoverable input problem. Saves that fail
// validation leave stored state untouched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidTableError names a share table that cannot back an apportionment:
// wrong total, missing unit entries, or both.
type InvalidTableError struct {
	Table        TableID
	Total        int
	MissingUnits []int
}

func (e *InvalidTableError) Error() string {
	if len(e.MissingUnits) > 0 {
		return fmt.Sprintf("table %s invalid: total %d (want %d), %d unit(s) without weights",
			e.Table, e.Total, TableWeightTotal, len(e.MissingUnits))
	}
	return fmt.Sprintf("table %s invalid: total %d (want %d)", e.Table, e.Total, TableWeightTotal)
}

func (e *InvalidTableError) Unwrap() error {
	return ErrInvalidTable
}

// InvalidPersonAssignmentError reports a person whose unit id falls outside
// the building's declared range. The engine reports it and refuses the run;
// it never silently drops the person.
type InvalidPersonAssignmentError struct {
	PersonID PersonID
	UnitID   int
	Units    int
}

func (e *InvalidPersonAssignmentError) Error() string {
	return fmt.Sprintf("person %s assigned to unit %d outside range 1..%d",
		e.PersonID, e.UnitID, e.Units)
}

func (e *InvalidPersonAssignmentError) Unwrap() error {
	return ErrInvalidAssignment
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input or
// an unusable but caller-fixable state.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidTable) ||
		errors.Is(err, ErrInvalidAssignment)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBuildingNotFound) ||
		errors.Is(err, ErrPersonNotFound) ||
		errors.Is(err, ErrExpenseNotFound) ||
		errors.Is(err, ErrBudgetNotFound)
}

// IsPrecondition returns true for whole-operation refusals: the computation
// was not attempted because its inputs cannot back a correct result.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrInvalidTable) || errors.Is(err, ErrInvalidAssignment)
}
