package clauses

import (
	"errors"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
)

type cmdA struct{}

func (cmdA) CommandType() contracts.CommandType { return "A" }

type cmdB struct{}

func (cmdB) CommandType() contracts.CommandType { return "B" }

type cmdC struct{ n int }

func (cmdC) CommandType() contracts.CommandType { return "C" }

type flatClause = Clause[contracts.ContractState, contracts.CommandData, Unit]

// recorder builds leaf clauses that log their invocation and consume given types.
type recorder struct {
	calls []string
}

func (r *recorder) leaf(name string, consumes []contracts.CommandType, opts ...Option) *flatClause {
	fn := func(
		_ *contracts.TransactionForVerification,
		_, _ []contracts.ContractState,
		commands []contracts.AuthenticatedObject[contracts.CommandData],
		_ Unit,
	) (mapset.Set[contracts.CommandData], error) {
		r.calls = append(r.calls, name)
		return consumeTypes(commands, consumes), nil
	}

	return Leaf[contracts.ContractState, contracts.CommandData, Unit](fn, append([]Option{Named(name)}, opts...)...)
}

func consumeTypes(commands []contracts.AuthenticatedObject[contracts.CommandData], types []contracts.CommandType) mapset.Set[contracts.CommandData] {
	set := Consumed[contracts.CommandData]()
	for _, cmd := range commands {
		for _, t := range types {
			if cmd.Value.CommandType() == t {
				set.Add(cmd.Value)
			}
		}
	}
	return set
}

func commands(values ...contracts.CommandData) []contracts.AuthenticatedObject[contracts.CommandData] {
	out := make([]contracts.AuthenticatedObject[contracts.CommandData], len(values))
	for i, v := range values {
		out[i] = contracts.NewAuthenticatedObject[contracts.CommandData](nil, nil, v)
	}
	return out
}

func types(ts ...contracts.CommandType) []contracts.CommandType { return ts }

func testTx() *contracts.TransactionForVerification {
	return &contracts.TransactionForVerification{OrigHash: crypto.HashOf([]byte("clauses"))}
}

func verifyDirect(c *flatClause, cmds []contracts.AuthenticatedObject[contracts.CommandData]) (mapset.Set[contracts.CommandData], error) {
	return c.Verify(testTx(), nil, nil, cmds, Unit{})
}

// TestScenarioEndStopsLoop tests that END after a match skips the remaining clauses.
func TestScenarioEndStopsLoop(t *testing.T) {
	r := &recorder{}
	list := []*flatClause{
		r.leaf("X", types("A"), Requires("A"), IfMatched(End)),
		r.leaf("Y", types("B"), Requires("B")),
	}

	err := VerifyClauses(testTx(), list, commands(cmdA{}))

	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, r.calls)
}

// TestScenarioErrorOnNoMatch tests that the default IfNotMatched aborts immediately.
func TestScenarioErrorOnNoMatch(t *testing.T) {
	r := &recorder{}
	list := []*flatClause{
		r.leaf("X", types("A"), Requires("A"), IfMatched(End)),
		r.leaf("Y", types("B"), Requires("B")),
	}

	err := VerifyClauses(testTx(), list, commands(cmdB{}))

	require.ErrorIs(t, err, ErrUnmatchedClause)
	var unmatchedErr *UnmatchedClauseError
	require.ErrorAs(t, err, &unmatchedErr)
	assert.Equal(t, "X", unmatchedErr.Clause)
	assert.Equal(t, types("A"), unmatchedErr.Missing)
	assert.Empty(t, r.calls)
}

// TestIncompleteConsumption tests that leftover commands fail verification.
func TestIncompleteConsumption(t *testing.T) {
	r := &recorder{}
	list := []*flatClause{r.leaf("X", nil, Requires("A"))}

	err := VerifyClauses(testTx(), list, commands(cmdA{}, cmdC{n: 1}))

	var incomplete *IncompleteConsumptionError
	require.ErrorAs(t, err, &incomplete)
	assert.ElementsMatch(t, types("A", "C"), incomplete.Remaining)
	assert.ErrorIs(t, err, ErrIncompleteConsumption)
}

// TestConsumedCommandsNoLongerMatch tests that matching uses only unconsumed commands.
func TestConsumedCommandsNoLongerMatch(t *testing.T) {
	r := &recorder{}
	list := []*flatClause{
		r.leaf("X", types("A"), Requires("A")),
		r.leaf("Y", types("A"), Requires("A"), IfNotMatched(Continue)),
	}

	require.NoError(t, VerifyClauses(testTx(), list, commands(cmdA{})))
	assert.Equal(t, []string{"X"}, r.calls)
}

// TestEmptyRequirementsAlwaysMatch tests that a clause without requirements always runs.
func TestEmptyRequirementsAlwaysMatch(t *testing.T) {
	r := &recorder{}
	list := []*flatClause{r.leaf("Z", nil), r.leaf("W", types("B"))}

	require.NoError(t, VerifyClauses(testTx(), list, commands(cmdB{})))
	assert.Equal(t, []string{"Z", "W"}, r.calls)

	r.calls = nil
	require.NoError(t, VerifyClauses(testTx(), list, nil))
	assert.Equal(t, []string{"Z", "W"}, r.calls)
}

// TestErrorAfterMatch tests IfMatched(Error).
func TestErrorAfterMatch(t *testing.T) {
	r := &recorder{}
	list := []*flatClause{r.leaf("Forbidden", types("A"), Requires("A"), IfMatched(Error), IfNotMatched(Continue))}

	assert.ErrorIs(t, VerifyClauses(testTx(), list, commands(cmdA{})), ErrUnmatchedClause)
	assert.NoError(t, VerifyClauses(testTx(), list, nil))
}

// TestConsumedByValue tests that equal command values are all removed together.
func TestConsumedByValue(t *testing.T) {
	r := &recorder{}
	list := []*flatClause{r.leaf("C", types("C"), Requires("C"))}

	assert.NoError(t, VerifyClauses(testTx(), list, commands(cmdC{n: 1}, cmdC{n: 1}, cmdC{n: 2})))
}

// TestAllRequiresEveryChild tests that All fails before any child verifies.
func TestAllRequiresEveryChild(t *testing.T) {
	r := &recorder{}
	all := All(r.leaf("X", types("A"), Requires("A")), r.leaf("Y", types("B"), Requires("B")))

	_, err := verifyDirect(all, commands(cmdA{}))

	var unmatchedErr *UnmatchedClauseError
	require.ErrorAs(t, err, &unmatchedErr)
	assert.Equal(t, "Y", unmatchedErr.Clause)
	assert.Empty(t, r.calls)

	consumed, err := verifyDirect(all, commands(cmdA{}, cmdB{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, r.calls)
	assert.True(t, consumed.Contains(cmdA{}, cmdB{}))
	assert.ElementsMatch(t, types("A", "B"), all.RequiredCommands())
}

// TestAnyRunsMatchingSubset tests that Any runs only matching children, possibly none.
func TestAnyRunsMatchingSubset(t *testing.T) {
	r := &recorder{}
	anyOf := Any(
		r.leaf("X", types("A"), Requires("A")),
		r.leaf("Y", types("B"), Requires("B")),
		r.leaf("Z", types("C"), Requires("C")),
	)

	consumed, err := verifyDirect(anyOf, commands(cmdA{}, cmdC{n: 3}))
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Z"}, r.calls)
	assert.Equal(t, 2, consumed.Cardinality())

	r.calls = nil
	consumed, err = verifyDirect(anyOf, nil)
	require.NoError(t, err)
	assert.Empty(t, r.calls)
	assert.Equal(t, 0, consumed.Cardinality())
	assert.True(t, anyOf.Matches(nil))
}

// TestFirstPicksEarliestMatch tests that First runs exactly the earliest matching child.
func TestFirstPicksEarliestMatch(t *testing.T) {
	r := &recorder{}
	first := First(
		r.leaf("X", types("B"), Requires("B")),
		r.leaf("Y", types("A"), Requires("A")),
		r.leaf("Z", types("A")),
	)

	consumed, err := verifyDirect(first, commands(cmdA{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Y"}, r.calls)
	assert.True(t, consumed.Contains(cmdA{}))
}

// TestFirstWithoutMatch tests that First with no matching child is a hard failure.
func TestFirstWithoutMatch(t *testing.T) {
	r := &recorder{}
	first := First(r.leaf("X", nil, Requires("A")), r.leaf("Y", nil, Requires("B")))

	_, err := verifyDirect(first, commands(cmdC{}))
	assert.ErrorIs(t, err, ErrNoMatchingClause)
	assert.Empty(t, r.calls)
	assert.False(t, first.Matches(commands(cmdC{})))

	err = VerifyClauses(testTx(), []*flatClause{first}, commands(cmdC{}))
	assert.ErrorIs(t, err, ErrUnmatchedClause)
}

// TestInterceptorRunsPreFirst tests that the pre-clause always runs before the wrapped clause.
func TestInterceptorRunsPreFirst(t *testing.T) {
	r := &recorder{}
	icpt := Interceptor(
		r.leaf("pre", types("B"), Requires("B")),
		r.leaf("inner", types("A"), Requires("A")),
	)

	consumed, err := verifyDirect(icpt, commands(cmdA{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"pre", "inner"}, r.calls)
	assert.True(t, consumed.Contains(cmdA{}))
	assert.Equal(t, types("A"), icpt.RequiredCommands())
	assert.Len(t, icpt.Children(), 2)
}

// TestInterceptorPreFailure tests that a failing pre-clause stops the wrapped clause.
func TestInterceptorPreFailure(t *testing.T) {
	r := &recorder{}
	boom := errors.New("precondition failed")
	pre := Leaf[contracts.ContractState, contracts.CommandData, Unit](func(
		*contracts.TransactionForVerification,
		[]contracts.ContractState, []contracts.ContractState,
		[]contracts.AuthenticatedObject[contracts.CommandData],
		Unit,
	) (mapset.Set[contracts.CommandData], error) {
		return nil, boom
	})

	_, err := verifyDirect(Interceptor(pre, r.leaf("inner", types("A"))), commands(cmdA{}))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.calls)
}

// TestNestedComposition tests a tree mixing every variant inside the flat verifier.
func TestNestedComposition(t *testing.T) {
	r := &recorder{}
	tree := All(
		r.leaf("check", nil),
		First(
			r.leaf("issue", types("A"), Requires("A")),
			Any(r.leaf("move", types("B"), Requires("B")), r.leaf("exit", types("C"), Requires("C"))),
		),
	).With(Named("root"), IfMatched(End))

	list := []*flatClause{tree, r.leaf("never", nil)}

	require.NoError(t, VerifyClauses(testTx(), list, commands(cmdB{}, cmdC{n: 7})))
	assert.Equal(t, []string{"check", "move", "exit"}, r.calls)

	var names []string
	for _, leaf := range tree.ExecutionPath(commands(cmdB{}, cmdC{n: 7})) {
		names = append(names, leaf.Name())
	}
	assert.Equal(t, []string{"check", "move", "exit"}, names)
	assert.Equal(t, "root", tree.Name())
	assert.Equal(t, KindAll, tree.Kind())
	assert.Equal(t, End, tree.IfMatched())
}

// TestWithDoesNotMutate tests that With returns a modified copy.
func TestWithDoesNotMutate(t *testing.T) {
	r := &recorder{}
	base := r.leaf("X", nil, Requires("A"))
	derived := base.With(Requires("B"), IfNotMatched(Continue))

	assert.Equal(t, types("A"), base.RequiredCommands())
	assert.Equal(t, types("A", "B"), derived.RequiredCommands())
	assert.Equal(t, Error, base.IfNotMatched())
	assert.Equal(t, Continue, derived.IfNotMatched())
}

func TestMatchBehaviourString(t *testing.T) {
	assert.Equal(t, "CONTINUE", Continue.String())
	assert.Equal(t, "END", End.String())
	assert.Equal(t, "ERROR", Error.String())
	assert.Equal(t, "first", KindFirst.String())
}
