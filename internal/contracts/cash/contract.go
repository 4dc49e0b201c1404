package cash

import (
	"errors"
	"fmt"
	"math/bits"

	mapset "github.com/deckarep/golang-set/v2"

	"Verity/internal/clauses"
	"Verity/internal/contracts"
)

var (
	// ErrZeroSizedOutput is returned for an output with a zero amount.
	ErrZeroSizedOutput = errors.New("zero sized output")

	// ErrIssueWithInputs is returned when an issuing group consumes existing value.
	ErrIssueWithInputs = errors.New("issuance must not have inputs")

	// ErrNotSigned is returned when a required party did not sign the command.
	ErrNotSigned = errors.New("required signature missing")

	// ErrNotConserved is returned when inputs do not equal outputs plus exits.
	ErrNotConserved = errors.New("amounts not conserved")

	// ErrOverflow is returned when amounts do not fit in 64 bits.
	ErrOverflow = errors.New("amount overflow")
)

type (
	groupClause = clauses.Clause[State, contracts.CommandData, Issued]
	topClause   = clauses.Clause[contracts.ContractState, contracts.CommandData, clauses.Unit]
)

// Contract verifies cash states.
type Contract struct {
	clauses []*topClause
}

// New builds the cash contract.
//
// Per token group the rules are All(NoZeroSizedOutputs, First(Issue, Interceptor(OwnersSigned, Conserve))).
// Issue and Move commands are shared by all groups and consumed once at the top level.
func New() *Contract {
	group := clauses.GroupBy(byToken, clauses.All(
		noZeroSizedOutputs(),
		clauses.First(issue(), clauses.Interceptor(ownersSigned(), conserve())),
	).With(clauses.Named("cash")))

	top := clauses.Any(
		group.Clause(clauses.Named("cash groups")),
		acceptCommands(IssueType),
		acceptCommands(MoveType),
	)

	return &Contract{clauses: []*topClause{top}}
}

// Verify implements contracts.Contract. Commands of other contracts are ignored.
func (c *Contract) Verify(tx *contracts.TransactionForVerification) error {
	var commands []contracts.AuthenticatedObject[contracts.CommandData]

	for _, cmd := range tx.Commands {
		switch cmd.Value.CommandType() {
		case IssueType, MoveType, ExitType:
			commands = append(commands, cmd)
		}
	}

	return clauses.VerifyClauses(tx, c.clauses, commands)
}

// Clauses returns the top-level clause list.
func (c *Contract) Clauses() []*topClause {
	return c.clauses
}

func byToken(s State) Issued {
	return s.Token
}

func noZeroSizedOutputs() *groupClause {
	return clauses.Leaf[State, contracts.CommandData, Issued](func(
		_ *contracts.TransactionForVerification,
		_, outputs []State,
		_ []contracts.AuthenticatedObject[contracts.CommandData],
		token Issued,
	) (mapset.Set[contracts.CommandData], error) {
		for i, s := range outputs {
			if s.Amount == 0 {
				return nil, fmt.Errorf("%w: output %d of %s", ErrZeroSizedOutput, i, token)
			}
		}
		return nil, nil
	}, clauses.Named("no zero sized outputs"))
}

func issue() *groupClause {
	return clauses.Leaf[State, contracts.CommandData, Issued](func(
		_ *contracts.TransactionForVerification,
		inputs, outputs []State,
		commands []contracts.AuthenticatedObject[contracts.CommandData],
		token Issued,
	) (mapset.Set[contracts.CommandData], error) {
		if len(inputs) != 0 {
			return nil, fmt.Errorf("%w: %s", ErrIssueWithInputs, token)
		}

		if _, err := sum(outputs); err != nil {
			return nil, err
		}

		for _, cmd := range contracts.Select[Issue](commands) {
			if cmd.SignedBy(token.Issuer.Key) {
				return nil, nil
			}
		}

		return nil, fmt.Errorf("%w: issue of %s by %s", ErrNotSigned, token, token.Issuer)
	}, clauses.Named("issue"), clauses.Requires(IssueType))
}

func ownersSigned() *groupClause {
	return clauses.Leaf[State, contracts.CommandData, Issued](func(
		_ *contracts.TransactionForVerification,
		inputs, _ []State,
		commands []contracts.AuthenticatedObject[contracts.CommandData],
		token Issued,
	) (mapset.Set[contracts.CommandData], error) {
		moves := contracts.Select[Move](commands)

		for _, in := range inputs {
			signed := false
			for _, cmd := range moves {
				if cmd.SignedBy(in.Owner) {
					signed = true
					break
				}
			}

			if !signed {
				return nil, fmt.Errorf("%w: move of %s by owner %s", ErrNotSigned, token, in.Owner)
			}
		}

		return nil, nil
	}, clauses.Named("owners signed"), clauses.Requires(MoveType))
}

func conserve() *groupClause {
	return clauses.Leaf[State, contracts.CommandData, Issued](func(
		_ *contracts.TransactionForVerification,
		inputs, outputs []State,
		commands []contracts.AuthenticatedObject[contracts.CommandData],
		token Issued,
	) (mapset.Set[contracts.CommandData], error) {
		consumed := clauses.Consumed[contracts.CommandData]()
		var exited uint64

		for _, cmd := range contracts.Select[Exit](commands) {
			if cmd.Value.Token != token {
				continue
			}
			if !cmd.SignedBy(token.Issuer.Key) {
				return nil, fmt.Errorf("%w: exit of %s by %s", ErrNotSigned, token, token.Issuer)
			}

			var carry uint64
			exited, carry = bits.Add64(exited, cmd.Value.Amount, 0)
			if carry != 0 {
				return nil, fmt.Errorf("%w: exits of %s", ErrOverflow, token)
			}

			consumed.Add(cmd.Value)
		}

		in, err := sum(inputs)
		if err != nil {
			return nil, err
		}
		out, err := sum(outputs)
		if err != nil {
			return nil, err
		}

		total, carry := bits.Add64(out, exited, 0)
		if carry != 0 || in != total {
			return nil, fmt.Errorf("%w: %s in=%d out=%d exit=%d", ErrNotConserved, token, in, out, exited)
		}

		return consumed, nil
	}, clauses.Named("conserve amount"), clauses.Requires(MoveType))
}

// acceptCommands consumes every command of type t once the groups have checked them.
func acceptCommands(t contracts.CommandType) *topClause {
	return clauses.Leaf[contracts.ContractState, contracts.CommandData, clauses.Unit](func(
		_ *contracts.TransactionForVerification,
		_, _ []contracts.ContractState,
		commands []contracts.AuthenticatedObject[contracts.CommandData],
		_ clauses.Unit,
	) (mapset.Set[contracts.CommandData], error) {
		consumed := clauses.Consumed[contracts.CommandData]()
		for _, cmd := range commands {
			if cmd.Value.CommandType() == t {
				consumed.Add(cmd.Value)
			}
		}
		return consumed, nil
	}, clauses.Named("accept "+string(t)), clauses.Requires(t))
}

func sum(states []State) (uint64, error) {
	var total uint64

	for _, s := range states {
		var carry uint64
		total, carry = bits.Add64(total, s.Amount, 0)
		if carry != 0 {
			return 0, ErrOverflow
		}
	}

	return total, nil
}
