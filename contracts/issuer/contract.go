package issuer

import (
	"github.com/CosmosContracts/tokenfactory-contracts/common"
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/iterator"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

// Settings is the issuance authority configuration.
type Settings struct {
	Manager interop.Hash160
	Minters []interop.Hash160
	Denoms  []string
}

const (
	managerKey = "manager"

	minterPrefix  = 'w'
	denomPrefix   = 'd'
	balancePrefix = 'b'
	supplyPrefix  = 's'
)

const (
	ErrNoDenoms       = "no denoms provided"
	ErrUnknownDenom   = "denom is not managed"
	ErrNotWhitelisted = "minter is not whitelisted"
	ErrNotManager     = "not witnessed by manager"
	ErrNonPositive    = "amount must be positive"
	ErrInsufficient   = "insufficient funds"
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
	manager := args[0].(interop.Hash160)
	minters := args[1].([]interop.Hash160)
	denoms := args[2].([]string)

	common.CheckAddress(manager)
	if len(denoms) == 0 {
		panic(ErrNoDenoms)
	}

	storage.Put(ctx, managerKey, manager)
	addMinters(ctx, minters)
	addDenoms(ctx, denoms)

	runtime.Log("issuance authority initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by committee.
func Update(nefFile, manifest []byte, data any) {
	if !common.HasUpdateAccess() {
		panic("only committee can update contract")
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, nefFile, manifest, common.AppendVersion(data))
	runtime.Log("issuance authority updated")
}

// Mint issues amount of denom to the recipient. Minter must be whitelisted
// and must witness the transaction (or be the calling contract).
//
// Produces Mint notification.
func Mint(minter, to interop.Hash160, denom string, amount int) {
	ctx := storage.GetContext()
	if storage.Get(ctx, append([]byte{minterPrefix}, minter...)) == nil {
		panic(ErrNotWhitelisted)
	}
	if !isUsableAddress(minter) {
		panic(common.ErrWitnessFailed)
	}
	common.CheckAddress(to)
	checkDenom(ctx, denom)
	if amount <= 0 {
		panic(ErrNonPositive)
	}

	changeBalance(ctx, to, denom, amount)
	changeSupply(ctx, denom, amount)

	runtime.Notify("Mint", to, denom, amount)
}

// Burn destroys amount of denom owned by the holder.
//
// Produces Burn notification.
func Burn(from interop.Hash160, denom string, amount int) {
	ctx := storage.GetContext()
	if !isUsableAddress(from) {
		panic(common.ErrOwnerWitnessFailed)
	}
	burn(ctx, from, denom, amount)
}

// BurnFrom destroys holder's tokens. It can be invoked only by the manager.
//
// Produces Burn notification.
func BurnFrom(from interop.Hash160, denom string, amount int) {
	ctx := storage.GetContext()
	checkManager(ctx)
	burn(ctx, from, denom, amount)
}

// ForceTransfer moves holder's tokens to another account. It can be invoked
// only by the manager.
//
// Produces ForceTransfer notification.
func ForceTransfer(from, to interop.Hash160, denom string, amount int) {
	ctx := storage.GetContext()
	checkManager(ctx)
	common.CheckAddress(to)
	checkDenom(ctx, denom)
	if amount <= 0 {
		panic(ErrNonPositive)
	}
	if BalanceOf(from, denom) < amount {
		panic(ErrInsufficient)
	}

	changeBalance(ctx, from, denom, -amount)
	changeBalance(ctx, to, denom, amount)

	runtime.Notify("ForceTransfer", from, to, denom, amount)
}

// Transfer moves holder's own tokens of denom to another account. Unlike
// ForceTransfer, it requires the holder's witness (or the holder being the
// calling contract).
//
// Produces Transfer notification.
func Transfer(from, to interop.Hash160, denom string, amount int) {
	ctx := storage.GetContext()
	if !isUsableAddress(from) {
		panic(common.ErrOwnerWitnessFailed)
	}
	common.CheckAddress(to)
	checkDenom(ctx, denom)
	if amount <= 0 {
		panic(ErrNonPositive)
	}
	if BalanceOf(from, denom) < amount {
		panic(ErrInsufficient)
	}

	changeBalance(ctx, from, denom, -amount)
	changeBalance(ctx, to, denom, amount)

	runtime.Notify("Transfer", from, to, denom, amount)
}

// AddWhitelist allows the accounts to mint. Manager only.
func AddWhitelist(minters []interop.Hash160) {
	ctx := storage.GetContext()
	checkManager(ctx)
	addMinters(ctx, minters)
}

// RemoveWhitelist disallows the accounts to mint. Manager only.
func RemoveWhitelist(minters []interop.Hash160) {
	ctx := storage.GetContext()
	checkManager(ctx)
	for i := range minters {
		storage.Delete(ctx, append([]byte{minterPrefix}, minters[i]...))
	}
}

// AddDenom registers factory denominations. Manager only.
func AddDenom(denoms []string) {
	ctx := storage.GetContext()
	checkManager(ctx)
	addDenoms(ctx, denoms)
}

// RemoveDenom unregisters denominations. Manager only. Issued balances
// are kept.
func RemoveDenom(denoms []string) {
	ctx := storage.GetContext()
	checkManager(ctx)
	for i := range denoms {
		storage.Delete(ctx, append([]byte{denomPrefix}, []byte(denoms[i])...))
	}
}

// SetManager hands the management over. Manager only.
func SetManager(manager interop.Hash160) {
	ctx := storage.GetContext()
	checkManager(ctx)
	common.CheckAddress(manager)
	storage.Put(ctx, managerKey, manager)
}

// Config returns the current manager, minters and denominations.
func Config() Settings {
	ctx := storage.GetReadOnlyContext()
	cfg := Settings{
		Manager: storage.Get(ctx, managerKey).(interop.Hash160),
		Minters: []interop.Hash160{},
		Denoms:  []string{},
	}

	it := storage.Find(ctx, []byte{minterPrefix}, storage.KeysOnly|storage.RemovePrefix)
	for iterator.Next(it) {
		cfg.Minters = append(cfg.Minters, iterator.Value(it).(interop.Hash160))
	}

	it = storage.Find(ctx, []byte{denomPrefix}, storage.KeysOnly|storage.RemovePrefix)
	for iterator.Next(it) {
		cfg.Denoms = append(cfg.Denoms, iterator.Value(it).(string))
	}

	return cfg
}

// IsMinter checks whether the account is allowed to mint.
func IsMinter(account interop.Hash160) bool {
	return storage.Get(storage.GetReadOnlyContext(), append([]byte{minterPrefix}, account...)) != nil
}

// BalanceOf returns holder's balance of denom.
func BalanceOf(holder interop.Hash160, denom string) int {
	data := storage.Get(storage.GetReadOnlyContext(), balanceKey(holder, denom))
	if data == nil {
		return 0
	}
	return data.(int)
}

// BalancesOf returns an iterator over denom -> amount pairs of every
// non-zero balance the holder has.
func BalancesOf(holder interop.Hash160) iterator.Iterator {
	common.CheckAddress(holder)
	prefix := append([]byte{balancePrefix}, holder...)
	return storage.Find(storage.GetReadOnlyContext(), prefix, storage.RemovePrefix)
}

// TotalSupply returns the issued amount of denom.
func TotalSupply(denom string) int {
	data := storage.Get(storage.GetReadOnlyContext(), append([]byte{supplyPrefix}, []byte(denom)...))
	if data == nil {
		return 0
	}
	return data.(int)
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}

func burn(ctx storage.Context, from interop.Hash160, denom string, amount int) {
	if amount <= 0 {
		panic(ErrNonPositive)
	}
	if BalanceOf(from, denom) < amount {
		panic(ErrInsufficient)
	}

	changeBalance(ctx, from, denom, -amount)
	changeSupply(ctx, denom, -amount)

	runtime.Notify("Burn", from, denom, amount)
}

func changeBalance(ctx storage.Context, holder interop.Hash160, denom string, delta int) {
	key := balanceKey(holder, denom)
	balance := BalanceOf(holder, denom) + delta
	if balance == 0 {
		storage.Delete(ctx, key)
		return
	}
	storage.Put(ctx, key, balance)
}

func changeSupply(ctx storage.Context, denom string, delta int) {
	supply := TotalSupply(denom) + delta
	key := append([]byte{supplyPrefix}, []byte(denom)...)
	if supply == 0 {
		storage.Delete(ctx, key)
		return
	}
	storage.Put(ctx, key, supply)
}

func addMinters(ctx storage.Context, minters []interop.Hash160) {
	for i := range minters {
		common.CheckAddress(minters[i])
		storage.Put(ctx, append([]byte{minterPrefix}, minters[i]...), 1)
	}
}

func addDenoms(ctx storage.Context, denoms []string) {
	for i := range denoms {
		common.CheckFactoryDenom(denoms[i])
		storage.Put(ctx, append([]byte{denomPrefix}, []byte(denoms[i])...), 1)
	}
}

func checkDenom(ctx storage.Context, denom string) {
	if storage.Get(ctx, append([]byte{denomPrefix}, []byte(denom)...)) == nil {
		panic(ErrUnknownDenom)
	}
}

func checkManager(ctx storage.Context) {
	manager := storage.Get(ctx, managerKey).(interop.Hash160)
	if !runtime.CheckWitness(manager) {
		panic(ErrNotManager)
	}
}

func balanceKey(holder interop.Hash160, denom string) []byte {
	return append(append([]byte{balancePrefix}, holder...), []byte(denom)...)
}

// isUsableAddress checks if the sender is either a correct NEO address or SC address.
func isUsableAddress(addr interop.Hash160) bool {
	if len(addr) == interop.Hash160Len {
		if runtime.CheckWitness(addr) {
			return true
		}

		callingScriptHash := runtime.GetCallingScriptHash()
		if callingScriptHash.Equals(addr) {
			return true
		}
	}

	return false
}
