package clauses

import (
	mapset "github.com/deckarep/golang-set/v2"

	"Verity/internal/contracts"
)

// Leaf creates a clause that verifies with fn.
func Leaf[S any, C Command, K any](fn VerifyFunc[S, C, K], opts ...Option) *Clause[S, C, K] {
	c := newClause[S, C, K](KindLeaf, opts)
	c.verify = fn

	return c
}

// All composes clauses that must all match; verification runs every child.
func All[S any, C Command, K any](first *Clause[S, C, K], rest ...*Clause[S, C, K]) *Clause[S, C, K] {
	c := newClause[S, C, K](KindAll, nil)
	c.children = append([]*Clause[S, C, K]{first}, rest...)

	return c
}

// Any composes clauses of which the matching subset, possibly empty, is run.
func Any[S any, C Command, K any](first *Clause[S, C, K], rest ...*Clause[S, C, K]) *Clause[S, C, K] {
	c := newClause[S, C, K](KindAny, nil)
	c.children = append([]*Clause[S, C, K]{first}, rest...)

	return c
}

// First composes clauses of which only the earliest matching one is run.
func First[S any, C Command, K any](first *Clause[S, C, K], rest ...*Clause[S, C, K]) *Clause[S, C, K] {
	c := newClause[S, C, K](KindFirst, nil)
	c.children = append([]*Clause[S, C, K]{first}, rest...)

	return c
}

// Interceptor runs pre before inner, whether or not pre matches.
func Interceptor[S any, C Command, K any](pre, inner *Clause[S, C, K]) *Clause[S, C, K] {
	c := newClause[S, C, K](KindInterceptor, nil)
	c.pre = pre
	c.children = []*Clause[S, C, K]{inner}

	return c
}

// Verify runs the clause and returns the commands it consumed.
// All commands of the transaction are passed down; each clause picks what it needs.
func (c *Clause[S, C, K]) Verify(
	tx *contracts.TransactionForVerification,
	inputs, outputs []S,
	commands []contracts.AuthenticatedObject[C],
	groupingKey K,
) (mapset.Set[C], error) {
	switch c.kind {
	case KindLeaf:
		consumed, err := c.verify(tx, inputs, outputs, commands, groupingKey)
		if err != nil {
			return nil, err
		}
		if consumed == nil {
			consumed = Consumed[C]()
		}
		return consumed, nil

	case KindAll:
		present := contracts.CommandTypes(commands)
		for _, child := range c.children {
			if !child.matches(present) {
				return nil, unmatched(child, present)
			}
		}
		return verifyEach(c.children, tx, inputs, outputs, commands, groupingKey)

	case KindAny:
		present := contracts.CommandTypes(commands)
		var matched []*Clause[S, C, K]
		for _, child := range c.children {
			if child.matches(present) {
				matched = append(matched, child)
			}
		}
		return verifyEach(matched, tx, inputs, outputs, commands, groupingKey)

	case KindFirst:
		present := contracts.CommandTypes(commands)
		for _, child := range c.children {
			if child.matches(present) {
				return child.Verify(tx, inputs, outputs, commands, groupingKey)
			}
		}
		return nil, &NoMatchingClauseError{Clause: c.name}

	case KindInterceptor:
		return verifyEach([]*Clause[S, C, K]{c.pre, c.children[0]}, tx, inputs, outputs, commands, groupingKey)

	default:
		return nil, &NoMatchingClauseError{Clause: c.name}
	}
}

// verifyEach runs clauses in order and unions their consumed sets.
func verifyEach[S any, C Command, K any](
	clauses []*Clause[S, C, K],
	tx *contracts.TransactionForVerification,
	inputs, outputs []S,
	commands []contracts.AuthenticatedObject[C],
	groupingKey K,
) (mapset.Set[C], error) {
	consumed := Consumed[C]()

	for _, clause := range clauses {
		got, err := clause.Verify(tx, inputs, outputs, commands, groupingKey)
		if err != nil {
			return nil, err
		}

		consumed.Append(got.ToSlice()...)
	}

	return consumed, nil
}

// ExecutionPath returns the leaf clauses that would run for the given commands, in order.
func (c *Clause[S, C, K]) ExecutionPath(commands []contracts.AuthenticatedObject[C]) []*Clause[S, C, K] {
	return c.executionPath(contracts.CommandTypes(commands))
}

func (c *Clause[S, C, K]) executionPath(present map[contracts.CommandType]struct{}) []*Clause[S, C, K] {
	var path []*Clause[S, C, K]

	switch c.kind {
	case KindLeaf:
		path = append(path, c)
	case KindAll:
		for _, child := range c.children {
			path = append(path, child.executionPath(present)...)
		}
	case KindAny:
		for _, child := range c.children {
			if child.matches(present) {
				path = append(path, child.executionPath(present)...)
			}
		}
	case KindFirst:
		for _, child := range c.children {
			if child.matches(present) {
				return child.executionPath(present)
			}
		}
	case KindInterceptor:
		path = append(path, c.pre.executionPath(present)...)
		path = append(path, c.children[0].executionPath(present)...)
	}

	return path
}
