// Package issuer contains RPC wrappers for the factory issuance authority contract.
package issuer

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// Config is a contract-specific issuer.Config type used by its methods.
type Config struct {
	Manager util.Uint160
	Minters []util.Uint160
	Denoms  []string
}

// MintEvent represents "Mint" event emitted by the contract.
type MintEvent struct {
	To     util.Uint160
	Denom  string
	Amount *big.Int
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker

	MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error)
	MakeRun(script []byte) (*transaction.Transaction, error)
	MakeUnsignedCall(contract util.Uint160, method string, attrs []transaction.Attribute, params ...any) (*transaction.Transaction, error)
	MakeUnsignedRun(script []byte, attrs []transaction.Attribute) (*transaction.Transaction, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
	SendRun(script []byte) (util.Uint256, uint32, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	invoker Invoker
	hash    util.Uint160
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader
	actor Actor
	hash  util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	return &Contract{ContractReader{actor, hash}, actor, hash}
}

// BalanceOf invokes `balanceOf` method of contract.
func (c *ContractReader) BalanceOf(holder util.Uint160, denom string) (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "balanceOf", holder, denom))
}

// TotalSupply invokes `totalSupply` method of contract.
func (c *ContractReader) TotalSupply(denom string) (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "totalSupply", denom))
}

// IsMinter invokes `isMinter` method of contract.
func (c *ContractReader) IsMinter(account util.Uint160) (bool, error) {
	return unwrap.Bool(c.invoker.Call(c.hash, "isMinter", account))
}

// Config invokes `config` method of contract.
func (c *ContractReader) Config() (*Config, error) {
	item, err := unwrap.Item(c.invoker.Call(c.hash, "config"))
	if err != nil {
		return nil, err
	}
	res := new(Config)
	return res, res.FromStackItem(item)
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "version"))
}

// Mint creates a transaction invoking `mint` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Mint(minter util.Uint160, to util.Uint160, denom string, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "mint", minter, to, denom, amount)
}

// MintTransaction creates a transaction invoking `mint` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) MintTransaction(minter util.Uint160, to util.Uint160, denom string, amount *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "mint", minter, to, denom, amount)
}

// Burn creates a transaction invoking `burn` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Burn(from util.Uint160, denom string, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "burn", from, denom, amount)
}

// BurnFrom creates a transaction invoking `burnFrom` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) BurnFrom(from util.Uint160, denom string, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "burnFrom", from, denom, amount)
}

// ForceTransfer creates a transaction invoking `forceTransfer` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) ForceTransfer(from, to util.Uint160, denom string, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "forceTransfer", from, to, denom, amount)
}

// AddWhitelist creates a transaction invoking `addWhitelist` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) AddWhitelist(minters []util.Uint160) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "addWhitelist", minters)
}

// RemoveWhitelist creates a transaction invoking `removeWhitelist` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) RemoveWhitelist(minters []util.Uint160) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "removeWhitelist", minters)
}

// AddDenom creates a transaction invoking `addDenom` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) AddDenom(denoms []string) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "addDenom", denoms)
}

// RemoveDenom creates a transaction invoking `removeDenom` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) RemoveDenom(denoms []string) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "removeDenom", denoms)
}

// SetManager creates a transaction invoking `setManager` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) SetManager(manager util.Uint160) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "setManager", manager)
}

// FromStackItem retrieves fields of Config from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *Config) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 3 {
		return errors.New("wrong number of structure elements")
	}

	var err error
	res.Manager, err = itemToUint160(arr[0])
	if err != nil {
		return fmt.Errorf("field Manager: %w", err)
	}

	minters, ok := arr[1].Value().([]stackitem.Item)
	if !ok {
		return errors.New("field Minters: not an array")
	}
	res.Minters = make([]util.Uint160, len(minters))
	for i := range minters {
		res.Minters[i], err = itemToUint160(minters[i])
		if err != nil {
			return fmt.Errorf("field Minters, item %d: %w", i, err)
		}
	}

	denoms, ok := arr[2].Value().([]stackitem.Item)
	if !ok {
		return errors.New("field Denoms: not an array")
	}
	res.Denoms = make([]string, len(denoms))
	for i := range denoms {
		res.Denoms[i], err = itemToString(denoms[i])
		if err != nil {
			return fmt.Errorf("field Denoms, item %d: %w", i, err)
		}
	}

	return nil
}

// MintEventsFromApplicationLog retrieves a set of all emitted events
// with "Mint" name from the provided [result.ApplicationLog].
func MintEventsFromApplicationLog(log *result.ApplicationLog) ([]*MintEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*MintEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "Mint" {
				continue
			}
			event := new(MintEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize MintEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to MintEvent or
// returns an error if it's not possible to do to so.
func (e *MintEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 3 {
		return errors.New("wrong number of structure elements")
	}

	var err error
	e.To, err = itemToUint160(arr[0])
	if err != nil {
		return fmt.Errorf("field To: %w", err)
	}
	e.Denom, err = itemToString(arr[1])
	if err != nil {
		return fmt.Errorf("field Denom: %w", err)
	}
	e.Amount, err = arr[2].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}
	return nil
}

func itemToUint160(item stackitem.Item) (util.Uint160, error) {
	b, err := item.TryBytes()
	if err != nil {
		return util.Uint160{}, err
	}
	return util.Uint160DecodeBytesBE(b)
}

func itemToString(item stackitem.Item) (string, error) {
	b, err := item.TryBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("not a UTF-8 string")
	}
	return string(b), nil
}
