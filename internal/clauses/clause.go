package clauses

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"Verity/internal/contracts"
)

// MatchBehaviour tells the verifier loop what to do after a clause was evaluated.
type MatchBehaviour int

const (
	// Continue moves on to the next clause.
	Continue MatchBehaviour = iota

	// End stops evaluating clauses.
	End

	// Error fails verification.
	Error
)

// String returns the directive name.
func (b MatchBehaviour) String() string {
	switch b {
	case Continue:
		return "CONTINUE"
	case End:
		return "END"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("MatchBehaviour(%d)", int(b))
	}
}

// Kind is the variant of a clause node.
type Kind int

const (
	// KindLeaf verifies through its own function.
	KindLeaf Kind = iota

	// KindAll requires every child to match and runs them all.
	KindAll

	// KindAny runs the children that match, possibly none.
	KindAny

	// KindFirst runs the first child that matches.
	KindFirst

	// KindInterceptor runs a pre-clause and then the wrapped clause.
	KindInterceptor
)

// String returns the lower-case variant name.
func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindAll:
		return "all"
	case KindAny:
		return "any"
	case KindFirst:
		return "first"
	case KindInterceptor:
		return "interceptor"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is the constraint on command value types.
// Values are compared by equality when consumed commands are removed.
type Command interface {
	comparable
	contracts.CommandData
}

// Unit is the grouping key of ungrouped verification.
type Unit = struct{}

// VerifyFunc is the verification logic of a leaf clause.
// It returns the commands it consumed.
type VerifyFunc[S any, C Command, K any] func(
	tx *contracts.TransactionForVerification,
	inputs, outputs []S,
	commands []contracts.AuthenticatedObject[C],
	groupingKey K,
) (mapset.Set[C], error)

// Clause is a node of a verification tree.
// Children are owned exclusively by their parent; a tree has no back-pointers.
type Clause[S any, C Command, K any] struct {
	name         string
	kind         Kind
	required     []contracts.CommandType
	ifMatched    MatchBehaviour
	ifNotMatched MatchBehaviour

	children []*Clause[S, C, K] // children of All/Any/First; the wrapped clause of an interceptor
	pre      *Clause[S, C, K]   // pre-clause of an interceptor
	verify   VerifyFunc[S, C, K]
}

// Option configures a clause.
type Option func(*settings)

type settings struct {
	name         string
	required     []contracts.CommandType
	ifMatched    *MatchBehaviour
	ifNotMatched *MatchBehaviour
}

// Named sets the name used in errors and logs.
func Named(name string) Option {
	return func(s *settings) { s.name = name }
}

// Requires adds command types that must all be present for the clause to match.
func Requires(types ...contracts.CommandType) Option {
	return func(s *settings) { s.required = append(s.required, types...) }
}

// IfMatched sets the directive used after the clause matched. Defaults to Continue.
func IfMatched(b MatchBehaviour) Option {
	return func(s *settings) { s.ifMatched = &b }
}

// IfNotMatched sets the directive used when the clause did not match. Defaults to Error.
func IfNotMatched(b MatchBehaviour) Option {
	return func(s *settings) { s.ifNotMatched = &b }
}

// newClause builds a node with default directives and applies opts.
func newClause[S any, C Command, K any](kind Kind, opts []Option) *Clause[S, C, K] {
	c := &Clause[S, C, K]{
		name:         kind.String(),
		kind:         kind,
		ifMatched:    Continue,
		ifNotMatched: Error,
	}

	c.apply(opts)

	return c
}

func (c *Clause[S, C, K]) apply(opts []Option) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	if s.name != "" {
		c.name = s.name
	}

	c.required = dedupTypes(append(append([]contracts.CommandType(nil), c.required...), s.required...))

	if s.ifMatched != nil {
		c.ifMatched = *s.ifMatched
	}
	if s.ifNotMatched != nil {
		c.ifNotMatched = *s.ifNotMatched
	}
}

// With returns a copy of the clause with opts applied.
func (c *Clause[S, C, K]) With(opts ...Option) *Clause[S, C, K] {
	cp := *c
	cp.apply(opts)

	return &cp
}

// Name returns the clause name.
func (c *Clause[S, C, K]) Name() string {
	return c.name
}

// Kind returns the variant of the clause.
func (c *Clause[S, C, K]) Kind() Kind {
	return c.kind
}

// IfMatched returns the directive used after the clause matched.
func (c *Clause[S, C, K]) IfMatched() MatchBehaviour {
	return c.ifMatched
}

// IfNotMatched returns the directive used when the clause did not match.
func (c *Clause[S, C, K]) IfNotMatched() MatchBehaviour {
	return c.ifNotMatched
}

// Children returns the direct children: the composed clauses, or pre-clause and wrapped clause.
func (c *Clause[S, C, K]) Children() []*Clause[S, C, K] {
	if c.kind == KindInterceptor {
		return []*Clause[S, C, K]{c.pre, c.children[0]}
	}

	return append([]*Clause[S, C, K](nil), c.children...)
}

// RequiredCommands returns the command types that must be present for the clause to match.
// All includes its children's requirements, an interceptor those of the wrapped clause.
func (c *Clause[S, C, K]) RequiredCommands() []contracts.CommandType {
	required := append([]contracts.CommandType(nil), c.required...)

	switch c.kind {
	case KindAll:
		for _, child := range c.children {
			required = append(required, child.RequiredCommands()...)
		}
	case KindInterceptor:
		required = append(required, c.children[0].RequiredCommands()...)
	}

	return dedupTypes(required)
}

// Matches reports whether the clause matches the given commands.
func (c *Clause[S, C, K]) Matches(commands []contracts.AuthenticatedObject[C]) bool {
	return c.matches(contracts.CommandTypes(commands))
}

// matches checks the clause's own requirements, then the variant's rule:
// All needs every child, First needs one child, Any always matches.
func (c *Clause[S, C, K]) matches(present map[contracts.CommandType]struct{}) bool {
	for _, t := range c.required {
		if _, ok := present[t]; !ok {
			return false
		}
	}

	switch c.kind {
	case KindAll:
		for _, child := range c.children {
			if !child.matches(present) {
				return false
			}
		}
		return true
	case KindFirst:
		for _, child := range c.children {
			if child.matches(present) {
				return true
			}
		}
		return false
	case KindInterceptor:
		return c.children[0].matches(present)
	default:
		return true
	}
}

// Consumed builds a consumed-command set.
func Consumed[C Command](values ...C) mapset.Set[C] {
	return mapset.NewThreadUnsafeSet(values...)
}

// ConsumedAll builds the consumed set of every given command.
func ConsumedAll[C Command](commands []contracts.AuthenticatedObject[C]) mapset.Set[C] {
	set := mapset.NewThreadUnsafeSet[C]()
	for _, cmd := range commands {
		set.Add(cmd.Value)
	}

	return set
}

func dedupTypes(types []contracts.CommandType) []contracts.CommandType {
	seen := make(map[contracts.CommandType]struct{}, len(types))
	out := types[:0]

	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}
