/*
Package relay delivers Issue instructions produced by the legacy token
contract to the issuance authority.

Instructions are dispatched only after the migration batch is persisted. The
relay mints on behalf of a whitelisted minter account and never touches the
legacy ledger: a mint rejected by the issuance authority is reported as a
failure, the migrated batch stays migrated.
*/
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"go.uber.org/zap"

	"github.com/CosmosContracts/tokenfactory-contracts/rpc/legacy"
)

// ErrMintFault is returned when the issuance authority rejects the mint.
var ErrMintFault = errors.New("mint transaction failed")

// Minter sends mint transactions to the issuance authority.
type Minter interface {
	Mint(minter util.Uint160, to util.Uint160, denom string, amount *big.Int) (util.Uint256, uint32, error)
}

// Waiter awaits the execution result of a sent transaction.
type Waiter interface {
	Wait(h util.Uint256, vub uint32, err error) (*state.AppExecResult, error)
}

// Prm groups parameters of the relay.
type Prm struct {
	Logger *zap.Logger

	Minter Minter
	Waiter Waiter

	// Authority is the issuance authority contract. Instructions addressed
	// to other contracts are skipped.
	Authority util.Uint160
	// Account is the whitelisted minter signing mint transactions.
	Account util.Uint160

	// NewBackOff creates a retry policy for a single mint, exponential
	// backoff is used if nil.
	NewBackOff func() backoff.BackOff
}

// Failure describes an instruction the relay failed to deliver.
type Failure struct {
	Instruction legacy.IssueInstruction
	Tx          util.Uint256
	Reason      string
}

// Report summarizes dispatched instructions.
type Report struct {
	Minted  int
	Skipped int
	Amount  *big.Int
	Failed  []Failure
}

// Merge adds counters of another report.
func (r *Report) Merge(other Report) {
	r.Minted += other.Minted
	r.Skipped += other.Skipped
	if other.Amount != nil {
		if r.Amount == nil {
			r.Amount = new(big.Int)
		}
		r.Amount.Add(r.Amount, other.Amount)
	}
	r.Failed = append(r.Failed, other.Failed...)
}

// Relay dispatches issue instructions.
type Relay struct {
	log *zap.Logger
	prm Prm
}

// New creates a Relay.
func New(prm Prm) *Relay {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	if prm.NewBackOff == nil {
		prm.NewBackOff = DefaultBackOff
	}
	return &Relay{
		log: prm.Logger.With(zap.String("authority", address.Uint160ToString(prm.Authority))),
		prm: prm,
	}
}

// DefaultBackOff returns a retry policy used when none is configured.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 5 * time.Minute
	return backoff.WithMaxRetries(b, 10)
}

// Dispatch mints every instruction in order. Only context cancellation
// interrupts the dispatching, all other failures are collected in the report.
func (r *Relay) Dispatch(ctx context.Context, instructions []*legacy.IssueInstruction) (Report, error) {
	rep := Report{Amount: new(big.Int)}

	for _, in := range instructions {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		if !in.Authority.Equals(r.prm.Authority) {
			r.log.Warn("instruction is addressed to another authority, skipping...",
				zap.String("to", address.Uint160ToString(in.Authority)),
				zap.String("recipient", address.Uint160ToString(in.Recipient)))
			rep.Skipped++
			continue
		}
		if in.Amount == nil || in.Amount.Sign() == 0 {
			r.log.Debug("nothing to issue, skipping...",
				zap.String("recipient", address.Uint160ToString(in.Recipient)))
			rep.Skipped++
			continue
		}

		txHash, err := r.mint(ctx, in)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rep, ctxErr
			}
			r.log.Error("failed to issue tokens",
				zap.String("recipient", address.Uint160ToString(in.Recipient)),
				zap.Stringer("amount", in.Amount),
				zap.String("denom", in.Denom),
				zap.Error(err))
			rep.Failed = append(rep.Failed, Failure{
				Instruction: *in,
				Tx:          txHash,
				Reason:      err.Error(),
			})
			continue
		}

		r.log.Info("tokens issued",
			zap.Stringer("tx", txHash),
			zap.String("recipient", address.Uint160ToString(in.Recipient)),
			zap.Stringer("amount", in.Amount),
			zap.String("denom", in.Denom))
		rep.Minted++
		rep.Amount.Add(rep.Amount, in.Amount)
	}

	return rep, nil
}

// Replay dispatches Issue instructions emitted by the ledger contract in a
// persisted transaction, e.g. the one the migrator lost track of.
func (r *Relay) Replay(ctx context.Context, ledger util.Uint160, log *result.ApplicationLog) (Report, error) {
	if log == nil {
		return Report{}, errors.New("nil application log")
	}

	var instructions []*legacy.IssueInstruction
	for i, ex := range log.Executions {
		if ex.VMState != vmstate.Halt {
			continue
		}
		for j, e := range ex.Events {
			if e.Name != "Issue" || !e.ScriptHash.Equals(ledger) {
				continue
			}
			event := new(legacy.IssueEvent)
			if err := event.FromStackItem(e.Item); err != nil {
				return Report{}, fmt.Errorf("decode Issue event (execution #%d, event #%d): %w", i, j, err)
			}
			instructions = append(instructions, event.Instruction())
		}
	}

	r.log.Info("replaying issue instructions",
		zap.Stringer("tx", log.Container),
		zap.Int("count", len(instructions)))

	return r.Dispatch(ctx, instructions)
}

func (r *Relay) mint(ctx context.Context, in *legacy.IssueInstruction) (util.Uint256, error) {
	var (
		txHash util.Uint256
		vub    uint32
		sent   bool
	)

	op := func() error {
		if !sent {
			h, v, err := r.prm.Minter.Mint(r.prm.Account, in.Recipient, in.Denom, in.Amount)
			if err != nil {
				return fmt.Errorf("send mint transaction: %w", err)
			}
			txHash, vub, sent = h, v, true
		}

		res, err := r.prm.Waiter.Wait(txHash, vub, nil)
		if err != nil {
			err = fmt.Errorf("await mint transaction %s: %w", txHash.StringLE(), err)
			if isFinalWaitError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if res.VMState != vmstate.Halt {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrMintFault, res.FaultException))
		}
		return nil
	}

	notify := func(err error, d time.Duration) {
		r.log.Warn("mint attempt failed, retrying...",
			zap.String("recipient", address.Uint160ToString(in.Recipient)),
			zap.Duration("next_retry_in", d),
			zap.Error(err))
	}

	err := backoff.RetryNotify(op, backoff.WithContext(r.prm.NewBackOff(), ctx), notify)
	return txHash, err
}

// isFinalWaitError reports whether the transaction can no longer be
// persisted, so awaiting it again is pointless.
func isFinalWaitError(err error) bool {
	return errors.Is(err, actor.ErrTxNotAccepted) || errors.Is(err, actor.ErrAwaitingNotSupported)
}
