package converter

import (
	"github.com/CosmosContracts/tokenfactory-contracts/common"
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

// Settings is the conversion route: legacy tokens received from Legacy are
// burnt and the same amount of Denom is delivered by Issuer according to
// Mode.
type Settings struct {
	Legacy interop.Hash160
	Issuer interop.Hash160
	Denom  string
	Mode   string
}

// Conversion modes.
const (
	// ModeMint issues new factory tokens for every conversion. The converter
	// must be whitelisted in the issuance authority.
	ModeMint = "mint"
	// ModeBalance pays factory tokens out of the converter's own balance.
	ModeBalance = "balance"
)

const settingsKey = "settings"

const (
	ErrInvalidMode         = "unknown conversion mode"
	ErrUnexpectedToken     = "only legacy token is accepted"
	ErrNoSender            = "sender is not specified"
	ErrNonPositive         = "amount must be positive"
	ErrInsufficientBalance = "converter balance is too low"
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
	cfg := Settings{
		Legacy: args[0].(interop.Hash160),
		Issuer: args[1].(interop.Hash160),
		Denom:  args[2].(string),
		Mode:   args[3].(string),
	}

	common.CheckAddress(cfg.Legacy)
	common.CheckAddress(cfg.Issuer)
	common.CheckFactoryDenom(cfg.Denom)
	if cfg.Mode != ModeMint && cfg.Mode != ModeBalance {
		panic(ErrInvalidMode)
	}

	common.SetSerialized(ctx, settingsKey, cfg)

	runtime.Log("converter initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by committee.
func Update(nefFile, manifest []byte, data any) {
	if !common.HasUpdateAccess() {
		panic("only committee can update contract")
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, nefFile, manifest, common.AppendVersion(data))
	runtime.Log("converter updated")
}

// OnNEP17Payment converts legacy tokens sent by the holder. The received
// tokens are burnt and the holder gets the same amount of the factory
// denomination. Legacy ledger accepts transfers only before its migration
// is started, so conversion is available only until then.
//
// Produces Converted notification.
func OnNEP17Payment(from interop.Hash160, amount int, data any) {
	cfg := Config()
	if !runtime.GetCallingScriptHash().Equals(cfg.Legacy) {
		panic(ErrUnexpectedToken)
	}
	if len(from) != interop.Hash160Len {
		panic(ErrNoSender)
	}
	if amount <= 0 {
		panic(ErrNonPositive)
	}

	self := runtime.GetExecutingScriptHash()
	contract.Call(cfg.Legacy, "burn", contract.All, self, amount)

	if cfg.Mode == ModeMint {
		contract.Call(cfg.Issuer, "mint", contract.All, self, from, cfg.Denom, amount)
	} else {
		balance := contract.Call(cfg.Issuer, "balanceOf", contract.ReadStates, self, cfg.Denom).(int)
		if balance < amount {
			panic(ErrInsufficientBalance)
		}
		contract.Call(cfg.Issuer, "transfer", contract.All, self, from, cfg.Denom, amount)
	}

	runtime.Notify("Converted", from, amount, cfg.Denom)
}

// Config returns the conversion route.
func Config() Settings {
	data := storage.Get(storage.GetReadOnlyContext(), settingsKey)
	return std.Deserialize(data.([]byte)).(Settings)
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}
