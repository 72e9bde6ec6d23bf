/*
Package ledgerstate decodes the raw storage of the legacy token contract.

It allows to audit a ledger snapshot pulled from the chain (or read from a
dump) without any contract invocation: conservation of the aggregate supply
against the balances left after the migration cursor, zeroed balances of the
migrated holders, absence of allowances after the migration start. Plan
replays the batch selection of migrateTokens on the snapshot, so the outcome
of the next calls can be predicted offline.
*/
package ledgerstate

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// Storage layout of the legacy token contract.
const (
	accountPrefix   = 'a'
	allowancePrefix = 'l'

	symbolKey      = "symbol"
	decimalsKey    = "decimals"
	totalSupplyKey = "totalSupply"
	cursorStateKey = "cursorState"
)

// DefaultLimit is the batch size applied to non-positive and too big limits.
const DefaultLimit = 30

// Migration statuses, same as reported by the contract.
const (
	StatusNotConfigured = iota
	StatusMigrating
	StatusComplete
)

var (
	// ErrNotConfigured is returned by Plan when migration has not started.
	ErrNotConfigured = errors.New("migration is not configured")
	// ErrSupplyUnderflow is returned by Plan when the batch amount exceeds
	// the aggregate supply.
	ErrSupplyUnderflow = errors.New("supply underflow")
)

// Holder is a single ledger account.
type Holder struct {
	Account util.Uint160
	Balance *big.Int
}

// Migration is the decoded migration state.
type Migration struct {
	Authority    util.Uint160
	Denom        string
	ZeroBalances bool
	// Cursor is nil before the first non-empty batch.
	Cursor *util.Uint160
}

// Ledger is a decoded snapshot of the contract storage.
type Ledger struct {
	Symbol   string
	Decimals int64
	Supply   *big.Int

	// Holders are kept in the ledger order.
	Holders []Holder

	Allowances int
	Migration  *Migration

	sorted bool
}

// New returns an empty Ledger ready to be filled with Put.
func New() *Ledger {
	return &Ledger{Supply: new(big.Int)}
}

// Put decodes a single storage item. Unknown keys are ignored.
func (l *Ledger) Put(key, value []byte) error {
	if len(key) == 0 {
		return errors.New("empty storage key")
	}

	switch string(key) {
	case symbolKey:
		l.Symbol = string(value)
		return nil
	case decimalsKey:
		l.Decimals = bigint.FromBytes(value).Int64()
		return nil
	case totalSupplyKey:
		l.Supply = bigint.FromBytes(value)
		return nil
	case cursorStateKey:
		m, err := decodeMigration(value)
		if err != nil {
			return fmt.Errorf("decode migration state: %w", err)
		}
		l.Migration = m
		return nil
	}

	switch key[0] {
	case accountPrefix:
		if len(key) != 1+util.Uint160Size {
			return fmt.Errorf("invalid account key length %d", len(key))
		}
		h, err := util.Uint160DecodeBytesBE(key[1:])
		if err != nil {
			return err
		}
		b, err := decodeAccount(value)
		if err != nil {
			return fmt.Errorf("decode account %s: %w", h.StringLE(), err)
		}
		l.Holders = append(l.Holders, Holder{Account: h, Balance: b})
		l.sorted = false
	case allowancePrefix:
		l.Allowances++
	}
	return nil
}

// Load fills the Ledger with storage items provided by iterate.
func Load(iterate func(f func(key, value []byte) error) error) (*Ledger, error) {
	l := New()
	if err := iterate(l.Put); err != nil {
		return nil, err
	}
	l.sort()
	return l, nil
}

func (l *Ledger) sort() {
	if l.sorted {
		return
	}
	slices.SortFunc(l.Holders, func(a, b Holder) int {
		return bytes.Compare(a.Account.BytesBE(), b.Account.BytesBE())
	})
	l.sorted = true
}

// Status derives the migration status the way the contract does.
func (l *Ledger) Status() int {
	if l.Migration == nil {
		return StatusNotConfigured
	}
	if len(l.after(l.Migration.Cursor)) == 0 {
		return StatusComplete
	}
	return StatusMigrating
}

// after returns holders strictly following the cursor.
func (l *Ledger) after(cursor *util.Uint160) []Holder {
	l.sort()
	if cursor == nil {
		return l.Holders
	}
	c := cursor.BytesBE()
	i, found := slices.BinarySearchFunc(l.Holders, c, func(h Holder, c []byte) int {
		return bytes.Compare(h.Account.BytesBE(), c)
	})
	if found {
		i++
	}
	return l.Holders[i:]
}

// Batch is a planned migrateTokens outcome.
type Batch struct {
	Accounts []util.Uint160
	Amount   *big.Int
	Cursor   *util.Uint160
}

// Plan selects the next batch without applying it.
func (l *Ledger) Plan(limit int) (Batch, error) {
	if l.Migration == nil {
		return Batch{}, ErrNotConfigured
	}
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}

	b := Batch{Amount: new(big.Int), Cursor: l.Migration.Cursor}
	page := l.after(l.Migration.Cursor)
	if len(page) == 0 {
		return b, nil
	}
	page = page[:min(limit, len(page))]

	for i := range page {
		b.Accounts = append(b.Accounts, page[i].Account)
		b.Amount.Add(b.Amount, page[i].Balance)
	}
	if l.Supply.Cmp(b.Amount) < 0 {
		return Batch{}, fmt.Errorf("%w: supply %s, batch %s", ErrSupplyUnderflow, l.Supply, b.Amount)
	}

	last := page[len(page)-1].Account
	b.Cursor = &last
	return b, nil
}

// Apply commits the planned batch to the snapshot the way migrateTokens does.
func (l *Ledger) Apply(b Batch) {
	if len(b.Accounts) == 0 || l.Migration == nil {
		return
	}
	if l.Migration.ZeroBalances {
		for _, a := range b.Accounts {
			if l.Balance(a).Sign() == 0 {
				continue
			}
			i, _ := l.index(a)
			l.Holders[i].Balance = new(big.Int)
		}
	}
	l.Supply = new(big.Int).Sub(l.Supply, b.Amount)
	l.Migration.Cursor = b.Cursor
}

// Balance returns the balance of the account. Accounts missing from the
// snapshot have zero balance.
func (l *Ledger) Balance(a util.Uint160) *big.Int {
	if i, ok := l.index(a); ok {
		return new(big.Int).Set(l.Holders[i].Balance)
	}
	return new(big.Int)
}

func (l *Ledger) index(a util.Uint160) (int, bool) {
	l.sort()
	return slices.BinarySearchFunc(l.Holders, a.BytesBE(), func(h Holder, c []byte) int {
		return bytes.Compare(h.Account.BytesBE(), c)
	})
}

// Check verifies ledger invariants and returns all violations joined.
func (l *Ledger) Check() error {
	var errs []error

	var (
		pending  = l.after(nil)
		migrated []Holder
	)
	if l.Migration != nil {
		pending = l.after(l.Migration.Cursor)
		migrated = l.Holders[:len(l.Holders)-len(pending)]
	}

	sum := new(big.Int)
	for _, h := range pending {
		if h.Balance.Sign() < 0 {
			errs = append(errs, fmt.Errorf("negative balance of %s: %s", h.Account.StringLE(), h.Balance))
		}
		sum.Add(sum, h.Balance)
	}
	if sum.Cmp(l.Supply) != 0 {
		errs = append(errs, fmt.Errorf("supply %s differs from unmigrated balances %s", l.Supply, sum))
	}

	if l.Migration != nil {
		if l.Migration.ZeroBalances {
			for _, h := range migrated {
				if h.Balance.Sign() != 0 {
					errs = append(errs, fmt.Errorf("migrated account %s keeps balance %s", h.Account.StringLE(), h.Balance))
				}
			}
		}
		if l.Allowances != 0 {
			errs = append(errs, fmt.Errorf("%d allowances left after migration start", l.Allowances))
		}
	}

	return errors.Join(errs...)
}

// Migrated returns the number of holders at or before the cursor.
func (l *Ledger) Migrated() int {
	if l.Migration == nil {
		return 0
	}
	return len(l.Holders) - len(l.after(l.Migration.Cursor))
}

func decodeAccount(value []byte) (*big.Int, error) {
	item, err := stackitem.Deserialize(value)
	if err != nil {
		return nil, err
	}
	fields, ok := item.Value().([]stackitem.Item)
	if !ok || len(fields) != 1 {
		return nil, errors.New("not an account structure")
	}
	return fields[0].TryInteger()
}

func decodeMigration(value []byte) (*Migration, error) {
	item, err := stackitem.Deserialize(value)
	if err != nil {
		return nil, err
	}
	fields, ok := item.Value().([]stackitem.Item)
	if !ok || len(fields) != 4 {
		return nil, errors.New("not a migration state structure")
	}

	var m Migration

	b, err := fields[0].TryBytes()
	if err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}
	if m.Authority, err = util.Uint160DecodeBytesBE(b); err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}

	b, err = fields[1].TryBytes()
	if err != nil {
		return nil, fmt.Errorf("denom: %w", err)
	}
	m.Denom = string(b)

	if m.ZeroBalances, err = fields[2].TryBool(); err != nil {
		return nil, fmt.Errorf("zero balances: %w", err)
	}

	if _, null := fields[3].(stackitem.Null); !null {
		b, err = fields[3].TryBytes()
		if err != nil {
			return nil, fmt.Errorf("cursor: %w", err)
		}
		c, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return nil, fmt.Errorf("cursor: %w", err)
		}
		m.Cursor = &c
	}

	return &m, nil
}
