package clauses

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"Verity/internal/contracts"
	"Verity/internal/logger"
)

// GroupVerifier runs a clause list once per group of related states.
type GroupVerifier[S contracts.ContractState, C Command, K comparable] struct {
	extract func(tx *contracts.TransactionForVerification) []contracts.InOutGroup[S, K]
	clauses []*Clause[S, C, K]
}

// NewGroupVerifier creates a verifier over the groups returned by extract.
func NewGroupVerifier[S contracts.ContractState, C Command, K comparable](
	extract func(tx *contracts.TransactionForVerification) []contracts.InOutGroup[S, K],
	clauses ...*Clause[S, C, K],
) *GroupVerifier[S, C, K] {
	return &GroupVerifier[S, C, K]{extract: extract, clauses: clauses}
}

// GroupBy creates a verifier over the states of type S grouped by selector.
func GroupBy[S contracts.ContractState, C Command, K comparable](
	selector func(S) K,
	clauses ...*Clause[S, C, K],
) *GroupVerifier[S, C, K] {
	extract := func(tx *contracts.TransactionForVerification) []contracts.InOutGroup[S, K] {
		return contracts.GroupStates(tx, selector)
	}

	return NewGroupVerifier(extract, clauses...)
}

// Verify runs the clause list against every group in order and returns all consumed commands.
//
// Commands consumed by one group are no longer pending for the groups after it.
// Leftover commands are not an error here: the caller decides whether they must be consumed.
func (g *GroupVerifier[S, C, K]) Verify(
	tx *contracts.TransactionForVerification,
	commands []contracts.AuthenticatedObject[C],
) (mapset.Set[C], error) {
	groups := g.extract(tx)
	matched := Consumed[C]()
	pending := commandValues(commands)

	for _, group := range groups {
		consumed, _, err := runClauses(tx, g.clauses, group.Inputs, group.Outputs, commands, group.GroupingKey, pending)
		if err != nil {
			return nil, fmt.Errorf("group %v:\n%w", group.GroupingKey, err)
		}

		matched.Append(consumed.ToSlice()...)
		pending = without(pending, consumed)
	}

	logger.Debug("groups verified", "tx", tx.OrigHash.Prefix(), "groups", len(groups), "consumed", matched.Cardinality())

	return matched, nil
}

// Clause exposes the group verifier as an ungrouped clause, so it can sit in a
// top-level clause list or inside a composition.
func (g *GroupVerifier[S, C, K]) Clause(opts ...Option) *Clause[contracts.ContractState, C, Unit] {
	verify := func(
		tx *contracts.TransactionForVerification,
		_, _ []contracts.ContractState,
		commands []contracts.AuthenticatedObject[C],
		_ Unit,
	) (mapset.Set[C], error) {
		return g.Verify(tx, commands)
	}

	return Leaf[contracts.ContractState, C, Unit](verify, append([]Option{Named("group")}, opts...)...)
}
