package tests

import (
	"bytes"
	"math/big"
	"slices"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"

	"github.com/CosmosContracts/tokenfactory-contracts/common"
	legacyContract "github.com/CosmosContracts/tokenfactory-contracts/contracts/legacy"
	"github.com/CosmosContracts/tokenfactory-contracts/rpc/legacy"
)

const migrationDenom = "factory/authority/ulegacy"

var (
	migrationAuthority = util.Uint160{0xaa, 0xbb}

	holderA = util.Uint160{0x01}
	holderB = util.Uint160{0x02}
	holderC = util.Uint160{0x03}
)

func newMigratingInvoker(t *testing.T, zero bool, balances ...holderBalance) *neotest.ContractInvoker {
	c := newLegacyInvoker(t, balances...)
	c.Invoke(t, stackitem.Null{}, "startMigration", migrationAuthority, migrationDenom, zero)
	return c
}

func abcBalances() []holderBalance {
	return []holderBalance{
		{holderC, 25},
		{holderA, 100},
		{holderB, 50},
	}
}

func TestStartMigration(t *testing.T) {
	e := newExecutor(t)
	owner := e.NewAccount(t)
	spender := e.NewAccount(t)

	h := deployLegacyContract(t, e, holderBalance{owner.ScriptHash(), 100})
	c := e.CommitteeInvoker(h)
	cOwner := c.WithSigners(owner)

	cOwner.Invoke(t, stackitem.Null{}, "approve", owner.ScriptHash(), spender.ScriptHash(), int64(40))

	t.Run("committee only", func(t *testing.T) {
		cOwner.InvokeFail(t, common.ErrCommitteeWitness, "startMigration",
			migrationAuthority, migrationDenom, true)
	})
	t.Run("invalid address", func(t *testing.T) {
		c.InvokeFail(t, common.ErrInvalidAddress, "startMigration",
			[]byte{1, 2, 3}, migrationDenom, true)
	})
	t.Run("invalid denom", func(t *testing.T) {
		for _, denom := range []string{"usdc", "", "factory", "Factory/x", "ibc/factory/x"} {
			c.InvokeFail(t, common.ErrInvalidDenom, "startMigration",
				migrationAuthority, denom, true)
		}
	})

	c.Invoke(t, legacy.StatusNotConfigured, "migrationStatus")

	txHash := c.Invoke(t, stackitem.Null{}, "startMigration", migrationAuthority, migrationDenom, true)
	c.CheckTxNotificationEvent(t, txHash, 0, state.NotificationEvent{
		ScriptHash: h,
		Name:       "MigrationStarted",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.NewByteArray(migrationAuthority.BytesBE()),
			stackitem.NewByteArray([]byte(migrationDenom)),
			stackitem.NewBool(true),
		}),
	})

	st := migrationConfig(t, c)
	require.Equal(t, migrationAuthority, st.Authority)
	require.Equal(t, migrationDenom, st.Denom)
	require.True(t, st.ZeroBalances)
	require.Nil(t, st.Cursor)

	c.Invoke(t, legacy.StatusMigrating, "migrationStatus")

	t.Run("one shot", func(t *testing.T) {
		c.InvokeFail(t, legacyContract.ErrAlreadyConfigured, "startMigration",
			migrationAuthority, migrationDenom, false)
		c.InvokeFail(t, legacyContract.ErrAlreadyConfigured, "startMigration",
			util.Uint160{0xcc}, "factory/other/denom", true)
		require.True(t, migrationConfig(t, c).ZeroBalances)
	})

	t.Run("ledger is frozen", func(t *testing.T) {
		c.Invoke(t, 0, "allowance", owner.ScriptHash(), spender.ScriptHash())
		cOwner.InvokeFail(t, legacyContract.ErrMigrationStarted, "transfer",
			owner.ScriptHash(), spender.ScriptHash(), int64(1), nil)
		cOwner.InvokeFail(t, legacyContract.ErrMigrationStarted, "approve",
			owner.ScriptHash(), spender.ScriptHash(), int64(1))
		c.WithSigners(spender).InvokeFail(t, legacyContract.ErrMigrationStarted, "transferFrom",
			spender.ScriptHash(), owner.ScriptHash(), spender.ScriptHash(), int64(1), nil)
		c.InvokeFail(t, legacyContract.ErrMigrationStarted, "mint", owner.ScriptHash(), int64(1))
		cOwner.InvokeFail(t, legacyContract.ErrMigrationStarted, "burn", owner.ScriptHash(), int64(1))
	})
}

func TestMigrateTokensNotConfigured(t *testing.T) {
	c := newLegacyInvoker(t, abcBalances()...)
	c.InvokeFail(t, legacyContract.ErrNotConfigured, "migrateTokens", int64(2))
	c.Invoke(t, 100, "balanceOf", holderA)
	c.Invoke(t, 175, "totalSupply")
}

func TestMigrateTokens(t *testing.T) {
	for _, zero := range []bool{true, false} {
		name := "keep balances"
		if zero {
			name = "zero balances"
		}
		t.Run(name, func(t *testing.T) {
			c := newMigratingInvoker(t, zero, abcBalances()...)

			// Anyone can advance the migration.
			cAny := c.WithSigners(c.NewAccount(t))

			b, log := migrate(t, cAny, 2)
			require.Equal(t, []util.Uint160{holderA, holderB}, b.Accounts)
			require.Equal(t, int64(150), b.Amount.Int64())
			require.Equal(t, holderB, *b.Cursor)
			require.Equal(t, []*legacy.IssueInstruction{
				{Authority: migrationAuthority, Recipient: holderA, Amount: big.NewInt(100), Denom: migrationDenom},
				{Authority: migrationAuthority, Recipient: holderB, Amount: big.NewInt(50), Denom: migrationDenom},
			}, b.Instructions)

			issued, err := legacy.IssueEventsFromApplicationLog(log)
			require.NoError(t, err)
			require.Len(t, issued, 2)
			require.Equal(t, b.Instructions[0], issued[0].Instruction())
			require.Equal(t, b.Instructions[1], issued[1].Instruction())

			migrated, err := legacy.MigratedEventsFromApplicationLog(log)
			require.NoError(t, err)
			require.Len(t, migrated, 1)
			require.Equal(t, holderB, migrated[0].Cursor)
			require.Equal(t, int64(2), migrated[0].Count.Int64())
			require.Equal(t, int64(150), migrated[0].Amount.Int64())

			transfers, err := legacy.TransferEventsFromApplicationLog(log)
			require.NoError(t, err)
			if zero {
				require.Len(t, transfers, 2)
				require.Equal(t, holderA, *transfers[0].From)
				require.Nil(t, transfers[0].To)
				require.Equal(t, int64(100), transfers[0].Amount.Int64())

				c.Invoke(t, 0, "balanceOf", holderA)
				c.Invoke(t, 0, "balanceOf", holderB)
			} else {
				require.Empty(t, transfers)

				c.Invoke(t, 100, "balanceOf", holderA)
				c.Invoke(t, 50, "balanceOf", holderB)
			}
			c.Invoke(t, 25, "balanceOf", holderC)
			c.Invoke(t, 25, "totalSupply")
			require.Equal(t, holderB, *migrationConfig(t, c).Cursor)
			c.Invoke(t, legacy.StatusMigrating, "migrationStatus")

			b, _ = migrate(t, cAny, 2)
			require.Equal(t, []util.Uint160{holderC}, b.Accounts)
			require.Equal(t, int64(25), b.Amount.Int64())
			require.Equal(t, holderC, *b.Cursor)
			require.Len(t, b.Instructions, 1)

			c.Invoke(t, 0, "totalSupply")
			c.Invoke(t, legacy.StatusComplete, "migrationStatus")

			t.Run("exhausted", func(t *testing.T) {
				for range 3 {
					b, log := migrate(t, cAny, 2)
					require.Empty(t, b.Accounts)
					require.Empty(t, b.Instructions)
					require.Zero(t, b.Amount.Sign())
					require.Equal(t, holderC, *b.Cursor)
					require.Empty(t, log.Executions[0].Events)
				}
				c.Invoke(t, 0, "totalSupply")
				require.Equal(t, holderC, *migrationConfig(t, c).Cursor)
				c.Invoke(t, legacy.StatusComplete, "migrationStatus")
			})
		})
	}
}

func TestMigrateTokensZeroBalance(t *testing.T) {
	e := newExecutor(t)
	holder := e.NewAccount(t)

	h := deployLegacyContract(t, e, holderBalance{holderA, 10})
	c := e.CommitteeInvoker(h)
	c.Invoke(t, stackitem.Null{}, "mint", holder.ScriptHash(), int64(5))
	c.WithSigners(holder).Invoke(t, stackitem.Null{}, "burn", holder.ScriptHash(), int64(5))
	c.Invoke(t, stackitem.Null{}, "startMigration", migrationAuthority, migrationDenom, true)

	b, log := migrate(t, c, 0)
	require.Len(t, b.Accounts, 2)
	require.Equal(t, int64(10), b.Amount.Int64())
	require.Len(t, b.Instructions, 2)

	// Instruction is produced even for an empty balance, nothing is zeroed.
	var zeroed *legacy.IssueInstruction
	for _, in := range b.Instructions {
		if in.Recipient.Equals(holder.ScriptHash()) {
			zeroed = in
		}
	}
	require.NotNil(t, zeroed)
	require.Zero(t, zeroed.Amount.Sign())

	transfers, err := legacy.TransferEventsFromApplicationLog(log)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	require.Equal(t, holderA, *transfers[0].From)
}

func TestMigrateTokensLimit(t *testing.T) {
	const n = 2*legacyContract.MaxLimit + 5

	balances := make([]holderBalance, n)
	for i := range balances {
		balances[i] = holderBalance{util.Uint160{byte(i), 0x10}, 1}
	}

	for _, limit := range []int64{0, -5, legacyContract.MaxLimit + 1, 1000} {
		c := newMigratingInvoker(t, false, balances...)
		b, _ := migrate(t, c, limit)
		require.Len(t, b.Accounts, legacyContract.DefaultLimit, "limit %d", limit)
	}

	c := newMigratingInvoker(t, false, balances...)
	b, _ := migrate(t, c, 7)
	require.Len(t, b.Accounts, 7)
}

// collect migrates the whole ledger with the given page sizes used in turn.
func collect(t *testing.T, c *neotest.ContractInvoker, limits ...int64) []util.Uint160 {
	var (
		res    []util.Uint160
		cursor *util.Uint160
	)
	for i := 0; ; i++ {
		b, _ := migrate(t, c, limits[i%len(limits)])
		if len(b.Accounts) == 0 {
			require.Equal(t, cursor, b.Cursor)
			return res
		}
		if cursor != nil {
			require.Positive(t, bytes.Compare(b.Accounts[0].BytesBE(), cursor.BytesBE()),
				"cursor must only move forward")
		}
		res = append(res, b.Accounts...)
		cursor = b.Cursor
		require.Equal(t, b.Accounts[len(b.Accounts)-1], *cursor)
	}
}

func TestMigrateTokensNoSkipNoDuplicate(t *testing.T) {
	var holders []util.Uint160
	// Dense buckets sharing leading bytes with the cursor.
	for i := range 40 {
		holders = append(holders, util.Uint160{0x10, byte(i)})
		holders = append(holders, util.Uint160{0x10, 0x05, byte(i + 1)})
	}
	for i := range 20 {
		holders = append(holders, util.Uint160{byte(0xf0 - i*7), 0xff, byte(i)})
	}
	holders = append(holders, util.Uint160{}, util.Uint160{0xff, 0xff, 0xff})

	balances := make([]holderBalance, len(holders))
	for i := range holders {
		balances[i] = holderBalance{holders[i], int64(i + 1)}
	}

	expected := slices.Clone(holders)
	slices.SortFunc(expected, func(a, b util.Uint160) int {
		return bytes.Compare(a.BytesBE(), b.BytesBE())
	})

	for _, limits := range [][]int64{{1, 30}, {7}, {30}, {3, 11, 29}} {
		c := newMigratingInvoker(t, true, balances...)

		require.Equal(t, expected, collect(t, c, limits...), "limits %v", limits)
		c.Invoke(t, 0, "totalSupply")
		c.Invoke(t, legacy.StatusComplete, "migrationStatus")
	}
}

func TestAccounts(t *testing.T) {
	c := newLegacyInvoker(t, abcBalances()...)

	accounts := func(after any, limit int64) []util.Uint160 {
		items := testCall(t, c, "accounts", after, limit).Value().([]stackitem.Item)
		res := make([]util.Uint160, len(items))
		for i := range items {
			b, err := items[i].TryBytes()
			require.NoError(t, err)
			res[i], err = util.Uint160DecodeBytesBE(b)
			require.NoError(t, err)
		}
		return res
	}

	require.Equal(t, []util.Uint160{holderA, holderB, holderC}, accounts(nil, 0))
	require.Equal(t, []util.Uint160{holderA}, accounts(nil, 1))
	require.Equal(t, []util.Uint160{holderB, holderC}, accounts(holderA, 5))
	require.Equal(t, []util.Uint160{holderC}, accounts(util.Uint160{0x02, 0x01}, 5))
	require.Empty(t, accounts(holderC, 5))

	c.InvokeFail(t, common.ErrInvalidAddress, "accounts", []byte{1}, int64(1))
}
