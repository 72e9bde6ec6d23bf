package tests

import (
	"math/big"
	"path"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/interop/storage"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"

	"github.com/CosmosContracts/tokenfactory-contracts/rpc/legacy"
)

const (
	legacyPath    = "../contracts/legacy"
	issuerPath    = "../contracts/issuer"
	converterPath = "../contracts/converter"
	nep17RecvPath = "../internal/testcontracts/nep17recv"
)

func iteratorToArray(iter *storage.Iterator) []stackitem.Item {
	stackItems := make([]stackitem.Item, 0)
	for iter.Next() {
		stackItems = append(stackItems, iter.Value())
	}
	return stackItems
}

func newExecutor(t *testing.T) *neotest.Executor {
	bc, acc := chain.NewSingle(t)
	return neotest.NewExecutor(t, bc, acc, acc)
}

type holderBalance struct {
	holder util.Uint160
	amount int64
}

func deployLegacyContract(t *testing.T, e *neotest.Executor, balances ...holderBalance) util.Uint160 {
	pairs := make([]any, len(balances))
	for i := range balances {
		pairs[i] = []any{balances[i].holder, balances[i].amount}
	}

	c := neotest.CompileFile(t, e.CommitteeHash, legacyPath, path.Join(legacyPath, "config.yml"))
	e.DeployContract(t, c, []any{"LGC", int64(8), pairs})
	return c.Hash
}

func newLegacyInvoker(t *testing.T, balances ...holderBalance) *neotest.ContractInvoker {
	e := newExecutor(t)
	return e.CommitteeInvoker(deployLegacyContract(t, e, balances...))
}

func deployIssuerContract(t *testing.T, e *neotest.Executor, manager util.Uint160, minters []util.Uint160, denoms ...string) util.Uint160 {
	ms := make([]any, len(minters))
	for i := range minters {
		ms[i] = minters[i]
	}
	ds := make([]any, len(denoms))
	for i := range denoms {
		ds[i] = denoms[i]
	}

	c := neotest.CompileFile(t, e.CommitteeHash, issuerPath, path.Join(issuerPath, "config.yml"))
	e.DeployContract(t, c, []any{manager, ms, ds})
	return c.Hash
}

func deployConverterContract(t *testing.T, e *neotest.Executor, ledger, issuer util.Uint160, denom, mode string) util.Uint160 {
	c := neotest.CompileFile(t, e.CommitteeHash, converterPath, path.Join(converterPath, "config.yml"))
	e.DeployContract(t, c, []any{ledger, issuer, denom, mode})
	return c.Hash
}

// invokeHalt persists the invocation in a separate block and returns its
// successful result.
func invokeHalt(t testing.TB, c *neotest.ContractInvoker, method string, args ...any) *state.AppExecResult {
	tx := c.PrepareInvoke(t, method, args...)
	c.AddNewBlock(t, tx)
	return c.CheckHalt(t, tx.Hash())
}

func applicationLog(res *state.AppExecResult) *result.ApplicationLog {
	return &result.ApplicationLog{
		Container:  res.Container,
		Executions: []state.Execution{res.Execution},
	}
}

// migrate persists migrateTokens call and decodes its batch.
func migrate(t testing.TB, c *neotest.ContractInvoker, limit int64) (*legacy.Batch, *result.ApplicationLog) {
	res := invokeHalt(t, c, "migrateTokens", limit)
	require.Len(t, res.Stack, 1)

	b, err := legacy.BatchFromStackItem(res.Stack[0])
	require.NoError(t, err)
	return b, applicationLog(res)
}

func testCall(t testing.TB, c *neotest.ContractInvoker, method string, args ...any) stackitem.Item {
	s, err := c.TestInvoke(t, method, args...)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	return s.Pop().Item()
}

func testCallInt(t testing.TB, c *neotest.ContractInvoker, method string, args ...any) int64 {
	n, err := testCall(t, c, method, args...).TryInteger()
	require.NoError(t, err)
	return n.Int64()
}

func migrationConfig(t testing.TB, c *neotest.ContractInvoker) *legacy.MigrationState {
	var st legacy.MigrationState
	require.NoError(t, st.FromStackItem(testCall(t, c, "migrationConfig")))
	return &st
}

// chainInvoker sends transactions through the test chain. Every call is
// persisted in a separate block, so waiting is just a lookup.
type chainInvoker struct {
	t testing.TB
	c *neotest.ContractInvoker
}

func (x chainInvoker) send(method string, args ...any) (util.Uint256, uint32, error) {
	tx := x.c.PrepareInvoke(x.t, method, args...)
	x.c.AddNewBlock(x.t, tx)
	return tx.Hash(), tx.ValidUntilBlock, nil
}

func (x chainInvoker) MigrateTokens(limit int) (util.Uint256, uint32, error) {
	return x.send("migrateTokens", int64(limit))
}

func (x chainInvoker) Mint(minter util.Uint160, to util.Uint160, denom string, amount *big.Int) (util.Uint256, uint32, error) {
	return x.send("mint", minter, to, denom, amount)
}

func (x chainInvoker) Wait(h util.Uint256, _ uint32, _ error) (*state.AppExecResult, error) {
	return x.c.GetTxExecResult(x.t, h), nil
}
