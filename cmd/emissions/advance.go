package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"emissionScope/internal/claim"
	"emissionScope/internal/model"
	"emissionScope/internal/storage"
)

func runAdvance(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := loadEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close()
	defer e.logger.Sync()

	claimer := claim.NewClaimer(e.store, common.Address{}, e.logger).WithNow(e.now)

	streamFlag, _ := cmd.Flags().GetString("stream")
	var keys []model.StreamKey
	if streamFlag != "" {
		key, err := model.ParseStreamKey(streamFlag)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	} else {
		reserves, err := e.store.ListReserves(ctx)
		if err != nil {
			return err
		}
		for _, reserve := range reserves {
			keys = append(keys,
				model.StreamKey{Asset: reserve.Asset, Side: model.SideLiability},
				model.StreamKey{Asset: reserve.Asset, Side: model.SideSupply},
			)
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("no streams to advance")
	}

	var advanced []string
	for _, key := range keys {
		changed, err := claimer.AdvanceStream(ctx, key)
		if err != nil {
			return err
		}
		if changed {
			advanced = append(advanced, key.String())
		}
	}
	if err := e.flush(); err != nil {
		return err
	}
	if len(advanced) > 0 {
		if err := e.record(storage.JournalEvent{Op: "advance", Streams: advanced}); err != nil {
			return err
		}
	}

	e.logger.Info("advance complete",
		zap.Int("streams", len(keys)),
		zap.Int("advanced", len(advanced)),
	)
	return nil
}
