package legacy

import (
	"github.com/CosmosContracts/tokenfactory-contracts/common"
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/iterator"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

type (
	// Account stores the balance of a single legacy token holder.
	Account struct {
		Balance int
	}

	// MigrationState is the persisted migration cursor together with the
	// destination it was configured for. Cursor is nil until the first
	// non-empty batch is migrated.
	MigrationState struct {
		Authority    interop.Hash160
		Denom        string
		ZeroBalances bool
		Cursor       interop.Hash160
	}

	// IssueInstruction asks Authority to issue Amount of Denom to Recipient.
	IssueInstruction struct {
		Authority interop.Hash160
		Recipient interop.Hash160
		Amount    int
		Denom     string
	}

	// Batch describes the outcome of a single MigrateTokens call.
	Batch struct {
		Accounts     []interop.Hash160
		Amount       int
		Cursor       interop.Hash160
		Instructions []IssueInstruction
	}
)

const (
	accPrefix       = 'a'
	allowancePrefix = 'l'
	spenderPrefix   = 'p'

	symbolKey      = "symbol"
	decimalsKey    = "decimals"
	totalSupplyKey = "totalSupply"
	cursorStateKey = "cursorState"

	// DefaultLimit is the page size used when the caller asks for none.
	DefaultLimit = 30
	// MaxLimit is the largest page MigrateTokens and Accounts return.
	MaxLimit = 30

	// maxLevelSkip bounds the number of entries the enumerator skips in a
	// single prefix bucket before it switches to per-byte sub-buckets.
	maxLevelSkip = 16
)

// Migration statuses returned by MigrationStatus.
const (
	StatusNotConfigured = 0
	StatusMigrating     = 1
	StatusComplete      = 2
)

const (
	ErrNotConfigured     = "migration is not configured"
	ErrAlreadyConfigured = "migration is already configured"
	ErrMigrationStarted  = "token is being migrated"
	ErrSupplyUnderflow   = "supply underflow"
	ErrNegativeAmount    = "negative amount"
)

// nolint:unused
func _deploy(data any, isUpdate bool) {
	ctx := storage.GetContext()
	if isUpdate {
		args := data.([]any)
		common.CheckVersion(args[len(args)-1].(int))
		return
	}

	args := data.([]any)
	if len(args) < 2 {
		panic("symbol and decimals are required")
	}

	storage.Put(ctx, symbolKey, args[0].(string))
	storage.Put(ctx, decimalsKey, args[1].(int))

	supply := 0
	if len(args) > 2 && args[2] != nil {
		balances := args[2].([]any)
		for i := range balances {
			pair := balances[i].([]any)
			holder := pair[0].(interop.Hash160)
			amount := pair[1].(int)

			common.CheckAddress(holder)
			if amount < 0 {
				panic(ErrNegativeAmount)
			}

			acc := getAccount(ctx, holder)
			acc.Balance += amount
			common.SetSerialized(ctx, accountKey(holder), acc)
			supply += amount
		}
	}
	storage.Put(ctx, totalSupplyKey, supply)

	runtime.Log("legacy token contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by committee.
func Update(nefFile, manifest []byte, data any) {
	if !common.HasUpdateAccess() {
		panic("only committee can update contract")
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, nefFile, manifest, common.AppendVersion(data))
	runtime.Log("legacy token contract updated")
}

// Symbol is a NEP-17 standard method that returns token symbol.
func Symbol() string {
	return storage.Get(storage.GetReadOnlyContext(), symbolKey).(string)
}

// Decimals is a NEP-17 standard method that returns token precision.
func Decimals() int {
	return storage.Get(storage.GetReadOnlyContext(), decimalsKey).(int)
}

// TotalSupply is a NEP-17 standard method that returns the aggregate amount
// of tokens that are not migrated yet.
func TotalSupply() int {
	return getSupply(storage.GetReadOnlyContext())
}

// BalanceOf is a NEP-17 standard method that returns the ledger balance of
// the holder. Missing holders have zero balance.
func BalanceOf(holder interop.Hash160) int {
	common.CheckAddress(holder)
	return getAccount(storage.GetReadOnlyContext(), holder).Balance
}

// Transfer is a NEP-17 standard method. It is disabled once the migration
// is configured.
func Transfer(from, to interop.Hash160, amount int, data any) bool {
	ctx := storage.GetContext()
	checkNotMigrating(ctx)

	if len(to) != interop.Hash160Len || !isUsableAddress(from) {
		runtime.Log("bad script hashes")
		return false
	}

	return transfer(ctx, from, to, amount, data)
}

// Mint issues new tokens to the holder before the migration starts. It can be
// invoked only by committee.
func Mint(to interop.Hash160, amount int) {
	ctx := storage.GetContext()
	checkNotMigrating(ctx)
	common.CheckCommittee()
	common.CheckAddress(to)
	if amount <= 0 {
		panic(ErrNegativeAmount)
	}

	acc := getAccount(ctx, to)
	acc.Balance += amount
	common.SetSerialized(ctx, accountKey(to), acc)
	storage.Put(ctx, totalSupplyKey, getSupply(ctx)+amount)

	runtime.Notify("Transfer", interop.Hash160(nil), to, amount)
	postTransfer(nil, to, amount, nil)
}

// Burn destroys holder's tokens before the migration starts. The holder
// entry stays in the ledger even if its balance drops to zero.
func Burn(from interop.Hash160, amount int) {
	ctx := storage.GetContext()
	checkNotMigrating(ctx)
	if !isUsableAddress(from) {
		panic(common.ErrOwnerWitnessFailed)
	}
	if amount <= 0 {
		panic(ErrNegativeAmount)
	}

	acc := getAccount(ctx, from)
	if acc.Balance < amount {
		panic("insufficient funds")
	}
	supply := getSupply(ctx)
	if supply < amount {
		panic(ErrSupplyUnderflow)
	}

	acc.Balance -= amount
	common.SetSerialized(ctx, accountKey(from), acc)
	storage.Put(ctx, totalSupplyKey, supply-amount)

	runtime.Notify("Transfer", from, interop.Hash160(nil), amount)
}

// Approve sets the amount spender can transfer from owner's account. Zero
// amount removes the allowance.
func Approve(owner, spender interop.Hash160, amount int) {
	ctx := storage.GetContext()
	checkNotMigrating(ctx)
	common.CheckAddress(spender)
	if !isUsableAddress(owner) {
		panic(common.ErrOwnerWitnessFailed)
	}
	if amount < 0 {
		panic(ErrNegativeAmount)
	}

	setAllowance(ctx, owner, spender, amount)
	runtime.Notify("Approval", owner, spender, amount)
}

// Allowance returns the amount spender can still transfer from owner.
func Allowance(owner, spender interop.Hash160) int {
	data := storage.Get(storage.GetReadOnlyContext(), allowanceKey(owner, spender))
	if data == nil {
		return 0
	}
	return data.(int)
}

// AllowancesBySpender returns an iterator over owner -> amount pairs that
// spender is allowed to transfer.
func AllowancesBySpender(spender interop.Hash160) iterator.Iterator {
	common.CheckAddress(spender)
	prefix := append([]byte{spenderPrefix}, spender...)
	return storage.Find(storage.GetReadOnlyContext(), prefix, storage.RemovePrefix)
}

// TransferFrom moves tokens from one account to another on behalf of the
// spender using the allowance previously set by the owner.
func TransferFrom(spender, from, to interop.Hash160, amount int, data any) bool {
	ctx := storage.GetContext()
	checkNotMigrating(ctx)

	if len(to) != interop.Hash160Len || len(from) != interop.Hash160Len || !isUsableAddress(spender) {
		runtime.Log("bad script hashes")
		return false
	}
	if amount < 0 {
		panic(ErrNegativeAmount)
	}

	allowed := Allowance(from, spender)
	if allowed < amount {
		runtime.Log("allowance exceeded")
		return false
	}

	if !transfer(ctx, from, to, amount, data) {
		return false
	}
	setAllowance(ctx, from, spender, allowed-amount)
	return true
}

// StartMigration configures the migration into the issuance authority and
// freezes the ledger. It can be invoked only by committee and only once.
// All spending allowances are removed.
//
// Produces MigrationStarted notification.
func StartMigration(authority interop.Hash160, denom string, zeroBalances bool) {
	ctx := storage.GetContext()
	common.CheckCommittee()

	if storage.Get(ctx, cursorStateKey) != nil {
		panic(ErrAlreadyConfigured)
	}
	common.CheckAddress(authority)
	common.CheckFactoryDenom(denom)

	common.SetSerialized(ctx, cursorStateKey, MigrationState{
		Authority:    authority,
		Denom:        denom,
		ZeroBalances: zeroBalances,
	})

	purge(ctx, allowancePrefix)
	purge(ctx, spenderPrefix)

	runtime.Notify("MigrationStarted", authority, denom, zeroBalances)
	runtime.Log("token migration configured")
}

// MigrateTokens migrates the next page of at most limit accounts, the
// default and the maximum page size is 30. Anyone can call it. For every
// account an Issue notification is produced, the aggregate supply is
// decreased by the migrated amount and the cursor moves to the last
// account of the page. Once every account is migrated the call succeeds
// without any changes.
//
// Produces Issue notification per account and Migrated notification per
// non-empty batch.
func MigrateTokens(limit int) Batch {
	ctx := storage.GetContext()
	st := getMigrationState(ctx)

	accounts := accountsAfter(ctx, st.Cursor, limit)
	b := Batch{
		Accounts:     accounts,
		Cursor:       st.Cursor,
		Instructions: []IssueInstruction{},
	}
	if len(accounts) == 0 {
		return b
	}

	for i := range accounts {
		holder := accounts[i]
		acc := getAccount(ctx, holder)
		amount := acc.Balance

		b.Amount += amount
		b.Instructions = append(b.Instructions, IssueInstruction{
			Authority: st.Authority,
			Recipient: holder,
			Amount:    amount,
			Denom:     st.Denom,
		})
		runtime.Notify("Issue", st.Authority, holder, amount, st.Denom)

		if st.ZeroBalances && amount != 0 {
			acc.Balance = 0
			common.SetSerialized(ctx, accountKey(holder), acc)
			runtime.Notify("Transfer", holder, interop.Hash160(nil), amount)
		}
	}

	supply := getSupply(ctx) - b.Amount
	if supply < 0 {
		panic(ErrSupplyUnderflow)
	}
	storage.Put(ctx, totalSupplyKey, supply)

	st.Cursor = accounts[len(accounts)-1]
	common.SetSerialized(ctx, cursorStateKey, st)
	b.Cursor = st.Cursor

	runtime.Notify("Migrated", st.Cursor, len(accounts), b.Amount)
	return b
}

// MigrationConfig returns the migration state. It panics if the migration
// is not configured.
func MigrationConfig() MigrationState {
	return getMigrationState(storage.GetReadOnlyContext())
}

// MigrationStatus returns StatusNotConfigured before StartMigration,
// StatusComplete when no account is left after the cursor and
// StatusMigrating otherwise.
func MigrationStatus() int {
	ctx := storage.GetReadOnlyContext()
	data := storage.Get(ctx, cursorStateKey)
	if data == nil {
		return StatusNotConfigured
	}

	st := std.Deserialize(data.([]byte)).(MigrationState)
	if len(accountsAfter(ctx, st.Cursor, 1)) == 0 {
		return StatusComplete
	}
	return StatusMigrating
}

// Accounts returns at most limit ledger holders that follow after in the
// ledger order. Nil after starts from the beginning.
func Accounts(after interop.Hash160, limit int) []interop.Hash160 {
	if len(after) != 0 {
		common.CheckAddress(after)
	}
	return accountsAfter(storage.GetReadOnlyContext(), after, limit)
}

// IterateAccounts returns an iterator over all ledger holders.
func IterateAccounts() iterator.Iterator {
	return storage.Find(storage.GetReadOnlyContext(), []byte{accPrefix}, storage.KeysOnly|storage.RemovePrefix)
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}

func transfer(ctx storage.Context, from, to interop.Hash160, amount int, data any) bool {
	if amount < 0 {
		panic(ErrNegativeAmount)
	}

	accFrom := getAccount(ctx, from)
	if accFrom.Balance < amount {
		runtime.Log("not enough assets")
		return false
	}

	if !from.Equals(to) && amount != 0 {
		accFrom.Balance -= amount
		common.SetSerialized(ctx, accountKey(from), accFrom)

		accTo := getAccount(ctx, to)
		accTo.Balance += amount
		common.SetSerialized(ctx, accountKey(to), accTo)
	}

	runtime.Notify("Transfer", from, to, amount)
	postTransfer(from, to, amount, data)
	return true
}

func postTransfer(from, to interop.Hash160, amount int, data any) {
	if management.GetContract(to) != nil {
		contract.Call(to, "onNEP17Payment", contract.All, from, amount, data)
	}
}

func checkNotMigrating(ctx storage.Context) {
	if storage.Get(ctx, cursorStateKey) != nil {
		panic(ErrMigrationStarted)
	}
}

func getMigrationState(ctx storage.Context) MigrationState {
	data := storage.Get(ctx, cursorStateKey)
	if data == nil {
		panic(ErrNotConfigured)
	}
	return std.Deserialize(data.([]byte)).(MigrationState)
}

func getSupply(ctx storage.Context) int {
	supply := storage.Get(ctx, totalSupplyKey)
	if supply != nil {
		return supply.(int)
	}

	return 0
}

func getAccount(ctx storage.Context, holder interop.Hash160) Account {
	data := storage.Get(ctx, accountKey(holder))
	if data != nil {
		return std.Deserialize(data.([]byte)).(Account)
	}

	return Account{}
}

func accountKey(holder interop.Hash160) []byte {
	return append([]byte{accPrefix}, holder...)
}

func allowanceKey(owner, spender interop.Hash160) []byte {
	return append(append([]byte{allowancePrefix}, owner...), spender...)
}

func setAllowance(ctx storage.Context, owner, spender interop.Hash160, amount int) {
	key := allowanceKey(owner, spender)
	index := append(append([]byte{spenderPrefix}, spender...), owner...)
	if amount == 0 {
		storage.Delete(ctx, key)
		storage.Delete(ctx, index)
		return
	}
	storage.Put(ctx, key, amount)
	storage.Put(ctx, index, amount)
}

func purge(ctx storage.Context, prefix byte) {
	it := storage.Find(ctx, []byte{prefix}, storage.KeysOnly)
	for iterator.Next(it) {
		storage.Delete(ctx, iterator.Value(it).([]byte))
	}
}

// isUsableAddress checks if the sender is either a correct NEO address or SC address.
func isUsableAddress(addr interop.Hash160) bool {
	if len(addr) == interop.Hash160Len {
		if runtime.CheckWitness(addr) {
			return true
		}

		// Check if a smart contract is calling script hash
		callingScriptHash := runtime.GetCallingScriptHash()
		if callingScriptHash.Equals(addr) {
			return true
		}
	}

	return false
}
