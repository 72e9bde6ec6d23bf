package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/CosmosContracts/tokenfactory-contracts/internal/config"
	"github.com/CosmosContracts/tokenfactory-contracts/internal/ledgerstate"
	"github.com/CosmosContracts/tokenfactory-contracts/rpc/legacy"
)

func main() {
	neoRPCEndpoint := flag.String("rpc", "", "Network address of the Neo RPC server")
	contractHash := flag.String("contract", "", "Legacy token contract (LE hash or address)")
	loadFile := flag.String("load", "", "Audit the snapshot file instead of pulling the storage")
	saveFile := flag.String("save", "", "Save pulled storage snapshot to the file")
	batchLimit := flag.Int("limit", 0, "Batch size to plan the rest of the migration with (0 for default)")
	timeout := flag.Duration("timeout", 15*time.Second, "Neo RPC dial and request timeout")

	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var snap *ledgerstate.Snapshot

	switch {
	case *loadFile != "":
		snap, err = readSnapshot(*loadFile)
	case *neoRPCEndpoint == "":
		logger.Fatal("missing Neo RPC endpoint")
	case *contractHash == "":
		logger.Fatal("missing legacy token contract")
	default:
		snap, err = pullSnapshot(logger, *neoRPCEndpoint, *contractHash, *timeout)
	}
	if err != nil {
		logger.Fatal("failed to get ledger snapshot", zap.Error(err))
	}

	if *saveFile != "" {
		if err = writeSnapshot(*saveFile, snap); err != nil {
			logger.Fatal("failed to save ledger snapshot", zap.Error(err))
		}
		logger.Info("snapshot saved", zap.String("file", *saveFile))
	}

	if err = audit(logger, snap, *batchLimit); err != nil {
		logger.Fatal("ledger audit failed", zap.Error(err))
	}
}

func pullSnapshot(logger *zap.Logger, endpoint, contract string, timeout time.Duration) (*ledgerstate.Snapshot, error) {
	h, err := config.ParseHash(contract)
	if err != nil {
		return nil, fmt.Errorf("contract: %w", err)
	}

	b, err := newRemoteBlockChain(context.Background(), endpoint, timeout)
	if err != nil {
		return nil, fmt.Errorf("init remote blockchain: %w", err)
	}
	defer b.close()

	snap := &ledgerstate.Snapshot{Contract: h, Height: b.currentBlock - 1}
	if err = b.iterateContractStorage(h, snap.Add); err != nil {
		return nil, fmt.Errorf("iterate contract storage: %w", err)
	}

	reader := legacy.NewReader(b.inv, h)
	st, err := reader.MigrationStatus()
	if err != nil {
		return nil, fmt.Errorf("get migration status: %w", err)
	}
	logger.Info("storage pulled",
		zap.Uint32("height", snap.Height),
		zap.Int("items", snap.Len()),
		zap.Int64("status", st))

	return snap, nil
}

func readSnapshot(file string) (*ledgerstate.Snapshot, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ledgerstate.ReadCSV(f)
}

func writeSnapshot(file string, snap *ledgerstate.Snapshot) error {
	f, err := os.OpenFile(file, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	err = snap.WriteCSV(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func audit(logger *zap.Logger, snap *ledgerstate.Snapshot, limit int) error {
	l, err := ledgerstate.Load(snap.Iterate)
	if err != nil {
		return fmt.Errorf("decode storage: %w", err)
	}

	log := logger.With(zap.Stringer("contract", snap.Contract), zap.Uint32("height", snap.Height))
	log.Info("ledger decoded",
		zap.String("symbol", l.Symbol),
		zap.Int64("decimals", l.Decimals),
		zap.Stringer("supply", l.Supply),
		zap.Int("holders", len(l.Holders)),
		zap.Int("status", l.Status()))

	if err = l.Check(); err != nil {
		return err
	}

	if l.Migration == nil {
		log.Info("migration is not configured, ledger is consistent")
		return nil
	}

	log.Info("migration state",
		zap.Stringer("authority", l.Migration.Authority),
		zap.String("denom", l.Migration.Denom),
		zap.Bool("zero_balances", l.Migration.ZeroBalances),
		zap.Int("migrated", l.Migrated()))

	var batches int
	for {
		b, err := l.Plan(limit)
		if err != nil {
			if errors.Is(err, ledgerstate.ErrSupplyUnderflow) {
				return fmt.Errorf("batch #%d will fail: %w", batches+1, err)
			}
			return err
		}
		if len(b.Accounts) == 0 {
			break
		}
		l.Apply(b)
		batches++
	}

	log.Info("ledger is consistent", zap.Int("batches_left", batches))
	return nil
}
