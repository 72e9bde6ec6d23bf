/*
Package migrator drives the legacy token migration batch by batch.

Anyone can advance the migration, the migrator is just a convenient loop:
it calls migrateTokens until the contract returns an empty batch, awaits
every transaction and hands the persisted Issue instructions over to the
dispatcher.
*/
package migrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"go.uber.org/zap"

	"github.com/CosmosContracts/tokenfactory-contracts/relay"
	"github.com/CosmosContracts/tokenfactory-contracts/rpc/legacy"
)

// ErrBatchFault is returned when a migrateTokens transaction fails.
var ErrBatchFault = errors.New("migration batch failed")

// Ledger sends migrateTokens transactions to the legacy token contract.
type Ledger interface {
	MigrateTokens(limit int) (util.Uint256, uint32, error)
}

// Waiter awaits the execution result of a sent transaction.
type Waiter interface {
	Wait(h util.Uint256, vub uint32, err error) (*state.AppExecResult, error)
}

// Dispatcher delivers Issue instructions of a persisted batch.
type Dispatcher interface {
	Dispatch(ctx context.Context, instructions []*legacy.IssueInstruction) (relay.Report, error)
}

// Prm groups parameters of Run.
type Prm struct {
	Logger *zap.Logger

	Ledger Ledger
	Waiter Waiter

	// Dispatcher is optional, instructions are only logged without it.
	Dispatcher Dispatcher

	// Limit is passed to migrateTokens as is, the contract applies its
	// default to non-positive values.
	Limit int
	// MaxBatches stops the run after the given number of non-empty
	// batches. Zero means no limit.
	MaxBatches int

	// NewBackOff creates a retry policy for a single batch, exponential
	// backoff is used if nil.
	NewBackOff func() backoff.BackOff
}

// Summary describes the work done by Run.
type Summary struct {
	Batches  int
	Accounts int
	Amount   *big.Int
	Cursor   *util.Uint160
	Complete bool
	Relay    relay.Report
}

// Run migrates batches until the ledger is exhausted, MaxBatches is reached
// or the context is done.
func Run(ctx context.Context, prm Prm) (Summary, error) {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	if prm.NewBackOff == nil {
		prm.NewBackOff = relay.DefaultBackOff
	}

	var (
		log = prm.Logger.With(zap.String("run", uuid.NewString()))
		s   = Summary{Amount: new(big.Int)}
	)

	for prm.MaxBatches <= 0 || s.Batches < prm.MaxBatches {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		b, txHash, err := migrateBatch(ctx, prm, log)
		if err != nil {
			return s, fmt.Errorf("batch #%d: %w", s.Batches+1, err)
		}

		if len(b.Accounts) == 0 {
			s.Complete = true
			log.Info("no accounts left, migration is complete",
				zap.Stringer("tx", txHash),
				zap.Int("batches", s.Batches))
			return s, nil
		}

		s.Batches++
		s.Accounts += len(b.Accounts)
		s.Amount.Add(s.Amount, b.Amount)
		s.Cursor = b.Cursor

		log.Info("batch migrated",
			zap.Stringer("tx", txHash),
			zap.Int("accounts", len(b.Accounts)),
			zap.Stringer("amount", b.Amount),
			zap.String("cursor", cursorString(b.Cursor)))

		if prm.Dispatcher == nil {
			for _, in := range b.Instructions {
				log.Debug("issue instruction",
					zap.String("recipient", address.Uint160ToString(in.Recipient)),
					zap.Stringer("amount", in.Amount),
					zap.String("denom", in.Denom))
			}
			continue
		}

		rep, err := prm.Dispatcher.Dispatch(ctx, b.Instructions)
		s.Relay.Merge(rep)
		if err != nil {
			return s, fmt.Errorf("dispatch instructions of %s: %w", txHash.StringLE(), err)
		}
		if len(rep.Failed) != 0 {
			log.Warn("some instructions were not delivered",
				zap.Stringer("tx", txHash),
				zap.Int("failed", len(rep.Failed)))
		}
	}

	log.Info("batch limit reached", zap.Int("batches", s.Batches))
	return s, nil
}

func migrateBatch(ctx context.Context, prm Prm, log *zap.Logger) (*legacy.Batch, util.Uint256, error) {
	var (
		txHash util.Uint256
		vub    uint32
		sent   bool
	)

	op := func() (*legacy.Batch, error) {
		if !sent {
			h, v, err := prm.Ledger.MigrateTokens(prm.Limit)
			if err != nil {
				return nil, fmt.Errorf("send transaction: %w", err)
			}
			txHash, vub, sent = h, v, true
		}

		res, err := prm.Waiter.Wait(txHash, vub, nil)
		if err != nil {
			err = fmt.Errorf("await transaction %s: %w", txHash.StringLE(), err)
			if errors.Is(err, actor.ErrTxNotAccepted) || errors.Is(err, actor.ErrAwaitingNotSupported) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if res.VMState != vmstate.Halt {
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrBatchFault, res.FaultException))
		}
		if len(res.Stack) != 1 {
			return nil, backoff.Permanent(fmt.Errorf("unexpected result stack size %d", len(res.Stack)))
		}

		b, err := legacy.BatchFromStackItem(res.Stack[0])
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode batch: %w", err))
		}
		return b, nil
	}

	notify := func(err error, d time.Duration) {
		log.Warn("batch attempt failed, retrying...",
			zap.Duration("next_retry_in", d),
			zap.Error(err))
	}

	b, err := backoff.RetryNotifyWithData(op, backoff.WithContext(prm.NewBackOff(), ctx), notify)
	return b, txHash, err
}

func cursorString(c *util.Uint160) string {
	if c == nil {
		return ""
	}
	return address.Uint160ToString(*c)
}
