// Package legacy contains RPC wrappers for the legacy token contract.
package legacy

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/nep17"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// Migration statuses returned by MigrationStatus.
const (
	StatusNotConfigured int64 = iota
	StatusMigrating
	StatusComplete
)

// DefaultLimit is the page size used by MigrateTokens and Accounts when the
// limit is not positive. It is also the maximum.
const DefaultLimit = 30

// IssueInstruction is a contract-specific legacy.IssueInstruction type used by its methods.
type IssueInstruction struct {
	Authority util.Uint160
	Recipient util.Uint160
	Amount    *big.Int
	Denom     string
}

// Batch is a contract-specific legacy.Batch type used by its methods.
type Batch struct {
	Accounts     []util.Uint160
	Amount       *big.Int
	Cursor       *util.Uint160
	Instructions []*IssueInstruction
}

// MigrationState is a contract-specific legacy.MigrationState type used by its methods.
type MigrationState struct {
	Authority    util.Uint160
	Denom        string
	ZeroBalances bool
	Cursor       *util.Uint160
}

// TransferEvent represents "Transfer" event emitted by the contract.
type TransferEvent struct {
	From   *util.Uint160
	To     *util.Uint160
	Amount *big.Int
}

// MigrationStartedEvent represents "MigrationStarted" event emitted by the contract.
type MigrationStartedEvent struct {
	Authority    util.Uint160
	Denom        string
	ZeroBalances bool
}

// IssueEvent represents "Issue" event emitted by the contract.
type IssueEvent struct {
	Authority util.Uint160
	Recipient util.Uint160
	Amount    *big.Int
	Denom     string
}

// MigratedEvent represents "Migrated" event emitted by the contract.
type MigratedEvent struct {
	Cursor util.Uint160
	Count  *big.Int
	Amount *big.Int
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	nep17.Invoker

	CallAndExpandIterator(contract util.Uint160, method string, maxItems int, params ...any) (*result.Invoke, error)
	TerminateSession(sessionID uuid.UUID) error
	TraverseIterator(sessionID uuid.UUID, iterator *result.Iterator, num int) ([]stackitem.Item, error)
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker

	nep17.Actor

	MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error)
	MakeRun(script []byte) (*transaction.Transaction, error)
	MakeUnsignedCall(contract util.Uint160, method string, attrs []transaction.Attribute, params ...any) (*transaction.Transaction, error)
	MakeUnsignedRun(script []byte, attrs []transaction.Attribute) (*transaction.Transaction, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
	SendRun(script []byte) (util.Uint256, uint32, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	nep17.TokenReader
	invoker Invoker
	hash    util.Uint160
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader
	nep17.TokenWriter
	actor Actor
	hash  util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{*nep17.NewReader(invoker, hash), invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	var nep17t = nep17.New(actor, hash)
	return &Contract{ContractReader{nep17t.TokenReader, actor, hash}, nep17t.TokenWriter, actor, hash}
}

// Hash returns the contract hash.
func (c *ContractReader) Hash() util.Uint160 {
	return c.hash
}

// Allowance invokes `allowance` method of contract.
func (c *ContractReader) Allowance(owner util.Uint160, spender util.Uint160) (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "allowance", owner, spender))
}

// AllowancesBySpender invokes `allowancesBySpender` method of contract.
func (c *ContractReader) AllowancesBySpender(spender util.Uint160) (uuid.UUID, result.Iterator, error) {
	return unwrap.SessionIterator(c.invoker.Call(c.hash, "allowancesBySpender", spender))
}

// AllowancesBySpenderExpanded is similar to AllowancesBySpender (uses the same contract
// method), but can be useful if the server used doesn't support sessions and
// doesn't expand iterators. It creates a script that will get the specified
// number of result items from the iterator right in the VM and return them to
// you. It's only limited by VM stack and GAS available for RPC invocations.
func (c *ContractReader) AllowancesBySpenderExpanded(spender util.Uint160, _numOfIteratorItems int) ([]stackitem.Item, error) {
	return unwrap.Array(c.invoker.CallAndExpandIterator(c.hash, "allowancesBySpender", _numOfIteratorItems, spender))
}

// Accounts invokes `accounts` method of contract. Nil after starts from the
// first holder.
func (c *ContractReader) Accounts(after *util.Uint160, limit int) ([]util.Uint160, error) {
	var arg any
	if after != nil {
		arg = *after
	}
	return unwrap.ArrayOfUint160(c.invoker.Call(c.hash, "accounts", arg, limit))
}

// IterateAccounts invokes `iterateAccounts` method of contract.
func (c *ContractReader) IterateAccounts() (uuid.UUID, result.Iterator, error) {
	return unwrap.SessionIterator(c.invoker.Call(c.hash, "iterateAccounts"))
}

// IterateAccountsExpanded is similar to IterateAccounts (uses the same contract
// method), but can be useful if the server used doesn't support sessions and
// doesn't expand iterators.
func (c *ContractReader) IterateAccountsExpanded(_numOfIteratorItems int) ([]util.Uint160, error) {
	items, err := unwrap.Array(c.invoker.CallAndExpandIterator(c.hash, "iterateAccounts", _numOfIteratorItems))
	if err != nil {
		return nil, err
	}
	res := make([]util.Uint160, len(items))
	for i := range items {
		res[i], err = itemToUint160(items[i])
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return res, nil
}

// MigrationConfig invokes `migrationConfig` method of contract.
func (c *ContractReader) MigrationConfig() (*MigrationState, error) {
	return itemToMigrationState(unwrap.Item(c.invoker.Call(c.hash, "migrationConfig")))
}

// MigrationStatus invokes `migrationStatus` method of contract.
func (c *ContractReader) MigrationStatus() (int64, error) {
	return unwrap.Int64(c.invoker.Call(c.hash, "migrationStatus"))
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "version"))
}

// Approve creates a transaction invoking `approve` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Approve(owner util.Uint160, spender util.Uint160, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "approve", owner, spender, amount)
}

// TransferFrom creates a transaction invoking `transferFrom` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) TransferFrom(spender, from, to util.Uint160, amount *big.Int, data any) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "transferFrom", spender, from, to, amount, data)
}

// Mint creates a transaction invoking `mint` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Mint(to util.Uint160, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "mint", to, amount)
}

// Burn creates a transaction invoking `burn` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Burn(from util.Uint160, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "burn", from, amount)
}

// StartMigration creates a transaction invoking `startMigration` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) StartMigration(authority util.Uint160, denom string, zeroBalances bool) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "startMigration", authority, denom, zeroBalances)
}

// StartMigrationTransaction creates a transaction invoking `startMigration` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) StartMigrationTransaction(authority util.Uint160, denom string, zeroBalances bool) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "startMigration", authority, denom, zeroBalances)
}

// StartMigrationUnsigned creates a transaction invoking `startMigration` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) StartMigrationUnsigned(authority util.Uint160, denom string, zeroBalances bool) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "startMigration", nil, authority, denom, zeroBalances)
}

// MigrateTokens creates a transaction invoking `migrateTokens` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) MigrateTokens(limit int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "migrateTokens", limit)
}

// MigrateTokensTransaction creates a transaction invoking `migrateTokens` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) MigrateTokensTransaction(limit int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "migrateTokens", limit)
}

// MigrateTokensUnsigned creates a transaction invoking `migrateTokens` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) MigrateTokensUnsigned(limit int) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "migrateTokens", nil, limit)
}

// Update creates a transaction invoking `update` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Update(script []byte, manifest []byte, data any) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "update", script, manifest, data)
}

// BatchFromStackItem decodes the result of `migrateTokens` method.
func BatchFromStackItem(item stackitem.Item) (*Batch, error) {
	res := new(Batch)
	err := res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of Batch from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *Batch) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 4 {
		return errors.New("wrong number of structure elements")
	}

	var err error

	accounts, ok := arr[0].Value().([]stackitem.Item)
	if !ok {
		return errors.New("field Accounts: not an array")
	}
	res.Accounts = make([]util.Uint160, len(accounts))
	for i := range accounts {
		res.Accounts[i], err = itemToUint160(accounts[i])
		if err != nil {
			return fmt.Errorf("field Accounts, item %d: %w", i, err)
		}
	}

	res.Amount, err = arr[1].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}

	res.Cursor, err = itemToOptionalUint160(arr[2])
	if err != nil {
		return fmt.Errorf("field Cursor: %w", err)
	}

	instructions, ok := arr[3].Value().([]stackitem.Item)
	if !ok {
		return errors.New("field Instructions: not an array")
	}
	res.Instructions = make([]*IssueInstruction, len(instructions))
	for i := range instructions {
		res.Instructions[i] = new(IssueInstruction)
		err = res.Instructions[i].FromStackItem(instructions[i])
		if err != nil {
			return fmt.Errorf("field Instructions, item %d: %w", i, err)
		}
	}

	return nil
}

// FromStackItem retrieves fields of IssueInstruction from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *IssueInstruction) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 4 {
		return errors.New("wrong number of structure elements")
	}

	var err error
	res.Authority, err = itemToUint160(arr[0])
	if err != nil {
		return fmt.Errorf("field Authority: %w", err)
	}
	res.Recipient, err = itemToUint160(arr[1])
	if err != nil {
		return fmt.Errorf("field Recipient: %w", err)
	}
	res.Amount, err = arr[2].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}
	res.Denom, err = itemToString(arr[3])
	if err != nil {
		return fmt.Errorf("field Denom: %w", err)
	}
	return nil
}

func itemToMigrationState(item stackitem.Item, err error) (*MigrationState, error) {
	if err != nil {
		return nil, err
	}
	var res = new(MigrationState)
	err = res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of MigrationState from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *MigrationState) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 4 {
		return errors.New("wrong number of structure elements")
	}

	var err error
	res.Authority, err = itemToUint160(arr[0])
	if err != nil {
		return fmt.Errorf("field Authority: %w", err)
	}
	res.Denom, err = itemToString(arr[1])
	if err != nil {
		return fmt.Errorf("field Denom: %w", err)
	}
	res.ZeroBalances, err = arr[2].TryBool()
	if err != nil {
		return fmt.Errorf("field ZeroBalances: %w", err)
	}
	res.Cursor, err = itemToOptionalUint160(arr[3])
	if err != nil {
		return fmt.Errorf("field Cursor: %w", err)
	}
	return nil
}

// TransferEventsFromApplicationLog retrieves a set of all emitted events
// with "Transfer" name from the provided [result.ApplicationLog].
func TransferEventsFromApplicationLog(log *result.ApplicationLog) ([]*TransferEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*TransferEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "Transfer" {
				continue
			}
			event := new(TransferEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize TransferEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to TransferEvent or
// returns an error if it's not possible to do to so.
func (e *TransferEvent) FromStackItem(item *stackitem.Array) error {
	arr, err := eventFields(item, 3)
	if err != nil {
		return err
	}

	e.From, err = itemToOptionalUint160(arr[0])
	if err != nil {
		return fmt.Errorf("field From: %w", err)
	}
	e.To, err = itemToOptionalUint160(arr[1])
	if err != nil {
		return fmt.Errorf("field To: %w", err)
	}
	e.Amount, err = arr[2].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}
	return nil
}

// MigrationStartedEventsFromApplicationLog retrieves a set of all emitted events
// with "MigrationStarted" name from the provided [result.ApplicationLog].
func MigrationStartedEventsFromApplicationLog(log *result.ApplicationLog) ([]*MigrationStartedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*MigrationStartedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "MigrationStarted" {
				continue
			}
			event := new(MigrationStartedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize MigrationStartedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to MigrationStartedEvent or
// returns an error if it's not possible to do to so.
func (e *MigrationStartedEvent) FromStackItem(item *stackitem.Array) error {
	arr, err := eventFields(item, 3)
	if err != nil {
		return err
	}

	e.Authority, err = itemToUint160(arr[0])
	if err != nil {
		return fmt.Errorf("field Authority: %w", err)
	}
	e.Denom, err = itemToString(arr[1])
	if err != nil {
		return fmt.Errorf("field Denom: %w", err)
	}
	e.ZeroBalances, err = arr[2].TryBool()
	if err != nil {
		return fmt.Errorf("field ZeroBalances: %w", err)
	}
	return nil
}

// IssueEventsFromApplicationLog retrieves a set of all emitted events
// with "Issue" name from the provided [result.ApplicationLog].
func IssueEventsFromApplicationLog(log *result.ApplicationLog) ([]*IssueEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*IssueEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "Issue" {
				continue
			}
			event := new(IssueEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize IssueEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to IssueEvent or
// returns an error if it's not possible to do to so.
func (e *IssueEvent) FromStackItem(item *stackitem.Array) error {
	arr, err := eventFields(item, 4)
	if err != nil {
		return err
	}

	e.Authority, err = itemToUint160(arr[0])
	if err != nil {
		return fmt.Errorf("field Authority: %w", err)
	}
	e.Recipient, err = itemToUint160(arr[1])
	if err != nil {
		return fmt.Errorf("field Recipient: %w", err)
	}
	e.Amount, err = arr[2].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}
	e.Denom, err = itemToString(arr[3])
	if err != nil {
		return fmt.Errorf("field Denom: %w", err)
	}
	return nil
}

// Instruction converts the event into the instruction it carries.
func (e *IssueEvent) Instruction() *IssueInstruction {
	return &IssueInstruction{
		Authority: e.Authority,
		Recipient: e.Recipient,
		Amount:    e.Amount,
		Denom:     e.Denom,
	}
}

// MigratedEventsFromApplicationLog retrieves a set of all emitted events
// with "Migrated" name from the provided [result.ApplicationLog].
func MigratedEventsFromApplicationLog(log *result.ApplicationLog) ([]*MigratedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*MigratedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "Migrated" {
				continue
			}
			event := new(MigratedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize MigratedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to MigratedEvent or
// returns an error if it's not possible to do to so.
func (e *MigratedEvent) FromStackItem(item *stackitem.Array) error {
	arr, err := eventFields(item, 3)
	if err != nil {
		return err
	}

	e.Cursor, err = itemToUint160(arr[0])
	if err != nil {
		return fmt.Errorf("field Cursor: %w", err)
	}
	e.Count, err = arr[1].TryInteger()
	if err != nil {
		return fmt.Errorf("field Count: %w", err)
	}
	e.Amount, err = arr[2].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}
	return nil
}

func eventFields(item *stackitem.Array, n int) ([]stackitem.Item, error) {
	if item == nil {
		return nil, errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return nil, errors.New("not an array")
	}
	if len(arr) != n {
		return nil, errors.New("wrong number of structure elements")
	}
	return arr, nil
}

func itemToUint160(item stackitem.Item) (util.Uint160, error) {
	b, err := item.TryBytes()
	if err != nil {
		return util.Uint160{}, err
	}
	u, err := util.Uint160DecodeBytesBE(b)
	if err != nil {
		return util.Uint160{}, err
	}
	return u, nil
}

func itemToOptionalUint160(item stackitem.Item) (*util.Uint160, error) {
	if _, ok := item.(stackitem.Null); ok {
		return nil, nil
	}
	u, err := itemToUint160(item)
	if err != nil {
		return nil, err
	}
	return &u, nil
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
