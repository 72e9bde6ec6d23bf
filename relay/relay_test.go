package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/CosmosContracts/tokenfactory-contracts/rpc/legacy"
)

const denom = "factory/authority/ulegacy"

var (
	authority = util.Uint160{0xaa}
	minter    = util.Uint160{0xbb}
	ledger    = util.Uint160{0xcc}
)

type mintCall struct {
	minter util.Uint160
	to     util.Uint160
	denom  string
	amount *big.Int
}

type testMinter struct {
	calls []mintCall
	err   error
}

func (m *testMinter) Mint(minter util.Uint160, to util.Uint160, denom string, amount *big.Int) (util.Uint256, uint32, error) {
	if m.err != nil {
		return util.Uint256{}, 0, m.err
	}
	m.calls = append(m.calls, mintCall{minter, to, denom, amount})
	return util.Uint256{byte(len(m.calls))}, 100, nil
}

// testWaiter returns queued results, the last one is repeated.
type testWaiter struct {
	results []waitResult
	calls   int
}

type waitResult struct {
	state vmstate.State
	fault string
	err   error
}

func (w *testWaiter) Wait(h util.Uint256, _ uint32, _ error) (*state.AppExecResult, error) {
	r := w.results[min(w.calls, len(w.results)-1)]
	w.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &state.AppExecResult{
		Container: h,
		Execution: state.Execution{VMState: r.state, FaultException: r.fault},
	}, nil
}

func halt() waitResult { return waitResult{state: vmstate.Halt} }

func newTestRelay(t *testing.T, m Minter, w Waiter) *Relay {
	return New(Prm{
		Logger:    zaptest.NewLogger(t),
		Minter:    m,
		Waiter:    w,
		Authority: authority,
		Account:   minter,
		NewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
		},
	})
}

func instruction(recipient byte, amount int64) *legacy.IssueInstruction {
	return &legacy.IssueInstruction{
		Authority: authority,
		Recipient: util.Uint160{recipient},
		Amount:    big.NewInt(amount),
		Denom:     denom,
	}
}

func TestDispatch(t *testing.T) {
	m := new(testMinter)
	w := &testWaiter{results: []waitResult{halt()}}
	r := newTestRelay(t, m, w)

	foreign := instruction(4, 10)
	foreign.Authority = util.Uint160{0xdd}

	rep, err := r.Dispatch(context.Background(), []*legacy.IssueInstruction{
		instruction(1, 100),
		instruction(2, 0),
		instruction(3, 25),
		foreign,
	})
	require.NoError(t, err)
	require.Equal(t, 2, rep.Minted)
	require.Equal(t, 2, rep.Skipped)
	require.Empty(t, rep.Failed)
	require.Equal(t, int64(125), rep.Amount.Int64())

	require.Equal(t, []mintCall{
		{minter, util.Uint160{1}, denom, big.NewInt(100)},
		{minter, util.Uint160{3}, denom, big.NewInt(25)},
	}, m.calls)
}

func TestDispatchFault(t *testing.T) {
	m := new(testMinter)
	w := &testWaiter{results: []waitResult{
		{state: vmstate.Fault, fault: "minter is not whitelisted"},
		halt(),
	}}
	r := newTestRelay(t, m, w)

	rep, err := r.Dispatch(context.Background(), []*legacy.IssueInstruction{
		instruction(1, 100),
		instruction(2, 50),
	})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Minted)
	require.Equal(t, int64(50), rep.Amount.Int64())
	require.Len(t, rep.Failed, 1)

	f := rep.Failed[0]
	require.Equal(t, *instruction(1, 100), f.Instruction)
	require.Equal(t, util.Uint256{1}, f.Tx)
	require.Contains(t, f.Reason, ErrMintFault.Error())
	require.Contains(t, f.Reason, "minter is not whitelisted")

	// Faulted transaction is neither awaited again nor re-sent.
	require.Len(t, m.calls, 2)
	require.Equal(t, 2, w.calls)
}

func TestDispatchRetry(t *testing.T) {
	t.Run("await", func(t *testing.T) {
		m := new(testMinter)
		w := &testWaiter{results: []waitResult{
			{err: errors.New("timeout")},
			{err: errors.New("timeout")},
			halt(),
		}}
		r := newTestRelay(t, m, w)

		rep, err := r.Dispatch(context.Background(), []*legacy.IssueInstruction{instruction(1, 100)})
		require.NoError(t, err)
		require.Equal(t, 1, rep.Minted)
		require.Len(t, m.calls, 1)
		require.Equal(t, 3, w.calls)
	})
	t.Run("send", func(t *testing.T) {
		m := &testMinter{err: errors.New("connection refused")}
		w := &testWaiter{results: []waitResult{halt()}}
		r := newTestRelay(t, m, w)

		rep, err := r.Dispatch(context.Background(), []*legacy.IssueInstruction{instruction(1, 100)})
		require.NoError(t, err)
		require.Zero(t, rep.Minted)
		require.Len(t, rep.Failed, 1)
		require.Contains(t, rep.Failed[0].Reason, "connection refused")
		require.Zero(t, w.calls)
	})
}

func TestDispatchNotAccepted(t *testing.T) {
	m := new(testMinter)
	w := &testWaiter{results: []waitResult{
		{err: fmt.Errorf("wait %s: %w", util.Uint256{1}.StringLE(), actor.ErrTxNotAccepted)},
		halt(),
	}}
	r := newTestRelay(t, m, w)

	rep, err := r.Dispatch(context.Background(), []*legacy.IssueInstruction{instruction(1, 100)})
	require.NoError(t, err)
	require.Zero(t, rep.Minted)
	require.Len(t, rep.Failed, 1)
	require.Equal(t, util.Uint256{1}, rep.Failed[0].Tx)
	require.Contains(t, rep.Failed[0].Reason, actor.ErrTxNotAccepted.Error())

	// Expired transaction is neither awaited again nor re-sent.
	require.Len(t, m.calls, 1)
	require.Equal(t, 1, w.calls)
}

func TestDispatchCanceled(t *testing.T) {
	m := new(testMinter)
	w := &testWaiter{results: []waitResult{halt()}}
	r := newTestRelay(t, m, w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Dispatch(ctx, []*legacy.IssueInstruction{instruction(1, 100)})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, m.calls)
}

func issueEvent(contract util.Uint160, in *legacy.IssueInstruction) state.NotificationEvent {
	return state.NotificationEvent{
		ScriptHash: contract,
		Name:       "Issue",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.NewByteArray(in.Authority.BytesBE()),
			stackitem.NewByteArray(in.Recipient.BytesBE()),
			stackitem.NewBigInteger(in.Amount),
			stackitem.NewByteArray([]byte(in.Denom)),
		}),
	}
}

func TestReplay(t *testing.T) {
	m := new(testMinter)
	w := &testWaiter{results: []waitResult{halt()}}
	r := newTestRelay(t, m, w)

	log := &result.ApplicationLog{
		Container: util.Uint256{0xee},
		Executions: []state.Execution{
			{
				VMState: vmstate.Halt,
				Events: []state.NotificationEvent{
					issueEvent(ledger, instruction(1, 100)),
					{ScriptHash: ledger, Name: "Transfer", Item: stackitem.NewArray(nil)},
					issueEvent(util.Uint160{0x01}, instruction(9, 1)),
					issueEvent(ledger, instruction(2, 50)),
				},
			},
			{
				VMState: vmstate.Fault,
				Events: []state.NotificationEvent{
					issueEvent(ledger, instruction(3, 25)),
				},
			},
		},
	}

	rep, err := r.Replay(context.Background(), ledger, log)
	require.NoError(t, err)
	require.Equal(t, 2, rep.Minted)
	require.Equal(t, int64(150), rep.Amount.Int64())
	require.Len(t, m.calls, 2)
	require.Equal(t, util.Uint160{1}, m.calls[0].to)
	require.Equal(t, util.Uint160{2}, m.calls[1].to)

	_, err = r.Replay(context.Background(), ledger, nil)
	require.Error(t, err)

	log.Executions[0].Events = []state.NotificationEvent{{
		ScriptHash: ledger,
		Name:       "Issue",
		Item:       stackitem.NewArray([]stackitem.Item{stackitem.Null{}}),
	}}
	_, err = r.Replay(context.Background(), ledger, log)
	require.Error(t, err)
}

func TestReportMerge(t *testing.T) {
	var total Report

	total.Merge(Report{Minted: 2, Skipped: 1, Amount: big.NewInt(150)})
	total.Merge(Report{Minted: 1, Amount: big.NewInt(25), Failed: []Failure{{Reason: "boom"}}})
	total.Merge(Report{Skipped: 1})

	require.Equal(t, 3, total.Minted)
	require.Equal(t, 2, total.Skipped)
	require.Equal(t, int64(175), total.Amount.Int64())
	require.Len(t, total.Failed, 1)
}
