package clauses

import (
	"context"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"Verity/internal/contracts"
	"Verity/internal/logger"
)

// VerifyClauses evaluates clauses in order against the transaction's states and
// fails unless every command was consumed by some clause.
//
// A clause matches when the command types not yet consumed satisfy its requirements.
// A matching clause is verified and its consumed commands are removed, then its
// IfMatched directive applies; otherwise its IfNotMatched directive applies.
// Error fails at once, End stops the loop, Continue moves on.
func VerifyClauses[C Command](
	tx *contracts.TransactionForVerification,
	clauses []*Clause[contracts.ContractState, C, Unit],
	commands []contracts.AuthenticatedObject[C],
) error {
	_, remaining, err := runClauses(tx, clauses, tx.InStates, tx.OutStates, commands, Unit{}, commandValues(commands))
	if err != nil {
		return err
	}

	if len(remaining) > 0 {
		return &IncompleteConsumptionError{Remaining: typeList(remaining)}
	}

	return nil
}

// VerifyClause is VerifyClauses with a single top-level clause.
func VerifyClause[C Command](
	tx *contracts.TransactionForVerification,
	clause *Clause[contracts.ContractState, C, Unit],
	commands []contracts.AuthenticatedObject[C],
) error {
	return VerifyClauses(tx, []*Clause[contracts.ContractState, C, Unit]{clause}, commands)
}

// runClauses is the cascading loop shared by flat and grouped verification.
// pending holds the command values not consumed so far; it is not modified.
// Returns everything consumed and what is still pending when the loop exits.
func runClauses[S any, C Command, K any](
	tx *contracts.TransactionForVerification,
	clauses []*Clause[S, C, K],
	inputs, outputs []S,
	commands []contracts.AuthenticatedObject[C],
	groupingKey K,
	pending []C,
) (mapset.Set[C], []C, error) {
	consumed := Consumed[C]()
	tracing := slog.Default().Enabled(context.Background(), slog.LevelDebug)

	for _, clause := range clauses {
		present := valueTypes(pending)

		var next MatchBehaviour
		if clause.matches(present) {
			if tracing {
				logExecutionPath(clause, present)
			}

			got, err := clause.Verify(tx, inputs, outputs, commands, groupingKey)
			if err != nil {
				return nil, nil, err
			}

			consumed.Append(got.ToSlice()...)
			pending = without(pending, got)
			next = clause.ifMatched
		} else {
			next = clause.ifNotMatched
		}

		switch next {
		case Error:
			return nil, nil, unmatched(clause, present)
		case End:
			return consumed, pending, nil
		}
	}

	return consumed, pending, nil
}

func logExecutionPath[S any, C Command, K any](clause *Clause[S, C, K], present map[contracts.CommandType]struct{}) {
	path := clause.executionPath(present)

	names := make([]string, len(path))
	for i, leaf := range path {
		names[i] = leaf.name
	}

	logger.Debug("clause matched", "clause", clause.name, "path", names)
}

func commandValues[C Command](commands []contracts.AuthenticatedObject[C]) []C {
	values := make([]C, len(commands))
	for i, cmd := range commands {
		values[i] = cmd.Value
	}

	return values
}

// without returns the values not in removed, preserving order.
func without[C Command](values []C, removed mapset.Set[C]) []C {
	out := make([]C, 0, len(values))
	for _, v := range values {
		if !removed.Contains(v) {
			out = append(out, v)
		}
	}

	return out
}

func valueTypes[C Command](values []C) map[contracts.CommandType]struct{} {
	types := make(map[contracts.CommandType]struct{}, len(values))
	for _, v := range values {
		types[v.CommandType()] = struct{}{}
	}

	return types
}

func typeList[C Command](values []C) []contracts.CommandType {
	types := make([]contracts.CommandType, len(values))
	for i, v := range values {
		types[i] = v.CommandType()
	}

	return types
}
