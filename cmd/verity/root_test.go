package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Verity/internal/contracts"
	"Verity/internal/contracts/cash"
	"Verity/internal/crypto"
	"Verity/internal/ledger"
)

// run executes the CLI with args and returns its standard output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// writeIssue writes an encoded cash issuance to dir and returns the file and the transaction.
func writeIssue(t *testing.T, dir string) (string, *ledger.SignedTransaction) {
	t.Helper()

	path, stx, _ := writeIssueBy(t, dir)
	return path, stx
}

// writeIssueBy is writeIssue that also returns the issuer's key.
func writeIssueBy(t *testing.T, dir string) (string, *ledger.SignedTransaction, crypto.PublicKey) {
	t.Helper()

	bank, err := crypto.GenerateEd25519()
	require.NoError(t, err)

	codecs := contracts.NewCodecs()
	cash.Register(contracts.NewContractRegistry(), codecs)

	token := cash.Issued{Issuer: contracts.Party{Name: "Bank", Key: bank.Public()}, Currency: "CHF"}
	stx, err := ledger.NewTransactionBuilder(codecs).
		AddOutput(cash.State{Amount: 250, Token: token, Owner: bank.Public()}).
		AddCommand(cash.Issue{Nonce: 3}, bank.Public()).
		Sign(bank)
	require.NoError(t, err)

	path := filepath.Join(dir, "issue.tx")
	require.NoError(t, os.WriteFile(path, ledger.EncodeSignedTransaction(stx), 0o644))

	return path, stx, bank.Public()
}

// TestImportVerifyList tests the import, verify, list and show commands on one store.
func TestImportVerifyList(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	file, stx := writeIssue(t, dir)
	id := stx.ID().String()

	out, err := run(t, "--data", data, "import", file)
	require.NoError(t, err)
	assert.Equal(t, "imported "+id+"\n", out)

	out, err = run(t, "--data", data, "list")
	require.NoError(t, err)
	assert.Equal(t, "  "+id+"\n", out)

	out, err = run(t, "--data", data, "verify", id)
	require.NoError(t, err)
	assert.Equal(t, "verified "+id+"\n", out)

	out, err = run(t, "--data", data, "list")
	require.NoError(t, err)
	assert.Equal(t, "* "+id+"\n", out)

	out, err = run(t, "--data", data, "show", id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "transaction "+id+" (verified: true)\n"))
	assert.Contains(t, out, "command 0: "+string(cash.IssueType))
}

// TestVerifyErrors tests failures surfaced by the verify and show commands.
func TestVerifyErrors(t *testing.T) {
	data := filepath.Join(t.TempDir(), "data")
	missing := crypto.HashOf([]byte("missing")).String()

	_, err := run(t, "--data", data, "verify", "zz")
	assert.Error(t, err)

	_, err = run(t, "--data", data, "verify", missing)
	var resolution *ledger.ResolutionError
	assert.ErrorAs(t, err, &resolution)

	_, err = run(t, "--data", data, "show", missing)
	assert.ErrorAs(t, err, &resolution)
}

// TestConfig tests flag and environment configuration.
func TestConfig(t *testing.T) {
	data := filepath.Join(t.TempDir(), "data")

	_, err := run(t, "--data", data, "--cache.size", "0", "list")
	assert.ErrorContains(t, err, "cache.size")

	_, err = run(t, "--data", data, "--identities", "Bank", "list")
	assert.ErrorContains(t, err, "invalid identity")

	_, err = run(t, "--data", data, "--identities", "Bank=rsa:00", "list")
	assert.ErrorContains(t, err, "identity Bank")

	_, err = run(t, "--data", data, "--log.level", "loud", "list")
	assert.ErrorContains(t, err, "unknown log level")

	t.Setenv("VERITY_RESOLVE_MAX_DEPTH", "-1")
	_, err = run(t, "--data", data, "list")
	assert.ErrorContains(t, err, "resolve.max_depth")

	t.Setenv("VERITY_RESOLVE_MAX_DEPTH", "4")
	t.Setenv("VERITY_CONTRACTS_DIR", filepath.Join(t.TempDir(), "absent"))
	_, err = run(t, "--data", data, "list")
	assert.ErrorContains(t, err, "load contracts")
}

// TestShowIdentities tests that configured identities name the signing parties.
func TestShowIdentities(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	file, stx, bank := writeIssueBy(t, dir)
	id := stx.ID().String()

	_, err := run(t, "--data", data, "import", file)
	require.NoError(t, err)

	out, err := run(t, "--data", data, "show", id)
	require.NoError(t, err)
	assert.NotContains(t, out, "parties=")

	identity := "Bank=ed25519:" + hex.EncodeToString(bank.Bytes())
	out, err = run(t, "--data", data, "--identities", identity, "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "parties=[Bank]")
}

// TestParseIdentities tests decoding configured parties.
func TestParseIdentities(t *testing.T) {
	parties, err := parseIdentities([]string{"Bank=ed25519:0102", "Notary=bls:0a"})
	require.NoError(t, err)
	assert.Equal(t, []contracts.Party{
		{Name: "Bank", Key: crypto.NewPublicKey(crypto.SchemeEd25519, []byte{1, 2})},
		{Name: "Notary", Key: crypto.NewPublicKey(crypto.SchemeBLS, []byte{0x0a})},
	}, parties)

	_, err = parseIdentities([]string{"=ed25519:01"})
	assert.Error(t, err)
}
