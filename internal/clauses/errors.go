package clauses

import (
	"errors"
	"fmt"
	"strings"

	"Verity/internal/contracts"
)

var (
	// ErrUnmatchedClause is matched by every UnmatchedClauseError.
	ErrUnmatchedClause = errors.New("unmatched clause")

	// ErrNoMatchingClause is matched by every NoMatchingClauseError.
	ErrNoMatchingClause = errors.New("no matching clause")

	// ErrIncompleteConsumption is matched by every IncompleteConsumptionError.
	ErrIncompleteConsumption = errors.New("not all commands were matched")
)

// UnmatchedClauseError reports a clause that had to match but did not.
type UnmatchedClauseError struct {
	Clause  string
	Missing []contracts.CommandType // required command types that were absent
}

// Error implements error.
func (e *UnmatchedClauseError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("unmatched clause %s", e.Clause)
	}
	return fmt.Sprintf("unmatched clause %s: missing %s", e.Clause, joinTypes(e.Missing))
}

// Is matches ErrUnmatchedClause.
func (e *UnmatchedClauseError) Is(target error) bool {
	return target == ErrUnmatchedClause
}

// NoMatchingClauseError reports a First composition none of whose children matched.
type NoMatchingClauseError struct {
	Clause string
}

// Error implements error.
func (e *NoMatchingClauseError) Error() string {
	return fmt.Sprintf("no matching clause in %s", e.Clause)
}

// Is matches ErrNoMatchingClause.
func (e *NoMatchingClauseError) Is(target error) bool {
	return target == ErrNoMatchingClause
}

// IncompleteConsumptionError reports commands left over after all clauses ran.
type IncompleteConsumptionError struct {
	Remaining []contracts.CommandType
}

// Error implements error.
func (e *IncompleteConsumptionError) Error() string {
	return fmt.Sprintf("not all commands were matched: %s", joinTypes(e.Remaining))
}

// Is matches ErrIncompleteConsumption.
func (e *IncompleteConsumptionError) Is(target error) bool {
	return target == ErrIncompleteConsumption
}

// unmatched builds the error for clause c given the present command types.
func unmatched[S any, C Command, K any](c *Clause[S, C, K], present map[contracts.CommandType]struct{}) error {
	var missing []contracts.CommandType
	for _, t := range c.RequiredCommands() {
		if _, ok := present[t]; !ok {
			missing = append(missing, t)
		}
	}

	return &UnmatchedClauseError{Clause: c.name, Missing: missing}
}

func joinTypes(types []contracts.CommandType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
