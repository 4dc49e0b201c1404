package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
	"Verity/internal/logger"
)

// ErrDepthExceeded is returned when the dependency walk goes deeper than allowed.
var ErrDepthExceeded = errors.New("dependency depth exceeded")

// TransactionStorage looks up signed transactions by id.
// GetSignedTransaction returns (nil, nil) when the transaction is not stored.
type TransactionStorage interface {
	GetSignedTransaction(hash crypto.SecureHash) (*SignedTransaction, error)
}

// Storage is transaction storage that also records which transactions were verified.
type Storage interface {
	TransactionStorage
	IsVerified(hash crypto.SecureHash) (bool, error)
	MarkVerified(hashes ...crypto.SecureHash) error
}

// ResolverConfig bounds the dependency walk.
type ResolverConfig struct {
	MaxDepth int // maximum distance from a target to a dependency; 0 means no dependencies
}

// DefaultResolverConfig returns the default resolver settings.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{MaxDepth: 64}
}

// Resolver fetches the unverified dependencies of transactions from storage and
// verifies them as one group.
type Resolver struct {
	store      Storage
	registry   contracts.Registry
	identities IdentityService
	cfg        ResolverConfig
}

// NewResolver creates a resolver.
func NewResolver(store Storage, registry contracts.Registry, identities IdentityService, cfg ResolverConfig) *Resolver {
	return &Resolver{store: store, registry: registry, identities: identities, cfg: cfg}
}

// Verify loads the target transactions and every dependency not yet verified, checks
// their signatures, verifies the group and marks all of it verified.
// Already verified dependencies are used as trusted roots.
func (r *Resolver) Verify(ctx context.Context, targets ...crypto.SecureHash) ([]*contracts.TransactionForVerification, error) {
	start := time.Now()

	toVerify, roots, err := r.collect(ctx, targets)
	if err != nil {
		return nil, err
	}

	resolved, err := NewTransactionGroup(toVerify, roots, r.registry).Verify()
	if err != nil {
		return nil, err
	}

	hashes := make([]crypto.SecureHash, len(toVerify))
	for i, tx := range toVerify {
		hashes[i] = tx.Hash
	}
	if err := r.store.MarkVerified(hashes...); err != nil {
		return nil, fmt.Errorf("mark verified:\n%w", err)
	}

	logger.Info("transactions verified",
		"targets", len(targets),
		"verified", len(toVerify),
		"roots", len(roots),
		logger.Timed(start),
	)

	return resolved, nil
}

type pendingTx struct {
	hash  crypto.SecureHash
	depth int
}

// collect walks input references breadth-first from the targets.
// Targets are always verified; dependencies already verified become roots and are
// not walked further.
func (r *Resolver) collect(ctx context.Context, targets []crypto.SecureHash) (toVerify, roots []*LedgerTransaction, err error) {
	visited := make(map[crypto.SecureHash]struct{})
	queue := make([]pendingTx, 0, len(targets))

	for _, h := range targets {
		queue = append(queue, pendingTx{hash: h})
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		next := queue[0]
		queue = queue[1:]

		if _, ok := visited[next.hash]; ok {
			continue
		}
		visited[next.hash] = struct{}{}

		if next.depth > 0 {
			verified, err := r.store.IsVerified(next.hash)
			if err != nil {
				return nil, nil, fmt.Errorf("check %s:\n%w", next.hash.Prefix(), err)
			}

			if verified {
				ltx, err := r.load(next.hash, false)
				if err != nil {
					return nil, nil, err
				}
				roots = append(roots, ltx)
				continue
			}
		}

		if next.depth > r.cfg.MaxDepth {
			return nil, nil, fmt.Errorf("%w: %s at depth %d", ErrDepthExceeded, next.hash.Prefix(), next.depth)
		}

		ltx, err := r.load(next.hash, true)
		if err != nil {
			return nil, nil, err
		}
		toVerify = append(toVerify, ltx)

		for _, in := range ltx.Inputs {
			queue = append(queue, pendingTx{hash: in.Hash, depth: next.depth + 1})
		}
	}

	return toVerify, roots, nil
}

// load fetches a transaction, checking its signatures when checkSigs is set.
func (r *Resolver) load(hash crypto.SecureHash, checkSigs bool) (*LedgerTransaction, error) {
	stx, err := r.store.GetSignedTransaction(hash)
	if err != nil {
		return nil, fmt.Errorf("load %s:\n%w", hash.Prefix(), err)
	}
	if stx == nil {
		return nil, &ResolutionError{Hash: hash, Reason: "not found in storage"}
	}

	if checkSigs {
		if _, err := stx.Verify(false); err != nil {
			return nil, err
		}
	}

	return stx.ToLedgerTransaction(r.identities), nil
}
