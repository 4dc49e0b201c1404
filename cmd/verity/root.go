package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"Verity/internal/crypto"
	"Verity/internal/ledger"
	"Verity/internal/logger"
)

// newRootCmd builds the command tree with its own viper instance.
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "verity",
		Short:         "Verify ledger transactions against their contracts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	bindFlags(root, v)

	root.AddCommand(
		newVerifyCmd(v),
		newShowCmd(v),
		newImportCmd(v),
		newListCmd(v),
	)

	return root
}

// withApp loads the configuration, opens the store and runs fn.
func withApp(cmd *cobra.Command, v *viper.Viper, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(cmd, v)
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	return fn(ctx, a)
}

func parseHashes(args []string) ([]crypto.SecureHash, error) {
	hashes := make([]crypto.SecureHash, len(args))

	for i, arg := range args {
		h, err := crypto.ParseHash(arg)
		if err != nil {
			return nil, fmt.Errorf("parse hash %q:\n%w", arg, err)
		}
		hashes[i] = h
	}

	return hashes, nil
}

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <hash>...",
		Short: "Resolve and verify transactions and their unverified dependencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := parseHashes(args)
			if err != nil {
				return err
			}

			return withApp(cmd, v, func(ctx context.Context, a *app) error {
				resolved, err := a.resolver().Verify(ctx, targets...)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, tx := range resolved {
					fmt.Fprintf(out, "verified %s\n", tx.OrigHash)
				}

				return nil
			})
		},
	}
}

func newShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show <hash>",
		Short: "Print a stored transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hashes, err := parseHashes(args)
			if err != nil {
				return err
			}

			return withApp(cmd, v, func(_ context.Context, a *app) error {
				stx, err := a.store.GetSignedTransaction(hashes[0])
				if err != nil {
					return err
				}
				if stx == nil {
					return &ledger.ResolutionError{Hash: hashes[0], Reason: "not found in storage"}
				}

				verified, err := a.store.IsVerified(stx.ID())
				if err != nil {
					return err
				}

				printTransaction(cmd.OutOrStdout(), stx, a.identities(), verified)
				return nil
			})
		},
	}
}

func printTransaction(out io.Writer, stx *ledger.SignedTransaction, identities ledger.IdentityService, verified bool) {
	wtx := stx.Tx()
	ltx := stx.ToLedgerTransaction(identities)

	fmt.Fprintf(out, "transaction %s (verified: %t)\n", stx.ID(), verified)

	for i, in := range wtx.Inputs {
		fmt.Fprintf(out, "  input %d: %s\n", i, in)
	}
	for i, s := range wtx.Outputs {
		fmt.Fprintf(out, "  output %d: %v\n", i, s)
	}
	for i, cmd := range ltx.Commands {
		fmt.Fprintf(out, "  command %d: %s signers=%v", i, cmd.Value.CommandType(), cmd.Signers())
		if parties := cmd.SigningParties(); len(parties) > 0 {
			fmt.Fprintf(out, " parties=%v", parties)
		}
		fmt.Fprintln(out)
	}
	for i, a := range wtx.Attachments {
		fmt.Fprintf(out, "  attachment %d: %s\n", i, a)
	}
	for _, sig := range stx.Sigs {
		fmt.Fprintf(out, "  signed by %s\n", sig.By)
	}

	if missing := stx.MissingSignatures(); len(missing) > 0 {
		fmt.Fprintf(out, "  missing signatures: %v\n", missing)
	}
}

func newImportCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Store encoded signed transactions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, v, func(_ context.Context, a *app) error {
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s:\n%w", path, err)
					}

					stx, err := ledger.DecodeSignedTransaction(data, a.codecs)
					if err != nil {
						return fmt.Errorf("decode %s:\n%w", path, err)
					}

					if err := a.store.Put(stx); err != nil {
						return fmt.Errorf("store %s:\n%w", path, err)
					}

					fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", stx.ID())
				}

				return nil
			})
		},
	}
}

func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, v, func(_ context.Context, a *app) error {
				hashes, err := a.store.Hashes()
				if err != nil {
					return err
				}

				for _, h := range hashes {
					verified, err := a.store.IsVerified(h)
					if err != nil {
						return err
					}

					mark := " "
					if verified {
						mark = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, h)
				}

				return nil
			})
		},
	}
}
