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

func runClaim(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := loadEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close()
	defer e.logger.Sync()

	userFlag, _ := cmd.Flags().GetString("user")
	if !common.IsHexAddress(userFlag) {
		return fmt.Errorf("valid user address is required")
	}
	user := common.HexToAddress(userFlag)

	to := user
	if toFlag, _ := cmd.Flags().GetString("to"); toFlag != "" {
		if !common.IsHexAddress(toFlag) {
			return fmt.Errorf("invalid recipient address: %s", toFlag)
		}
		to = common.HexToAddress(toFlag)
	}

	if !common.IsHexAddress(e.cfg.Source) {
		return fmt.Errorf("valid payout source address is required")
	}
	source := common.HexToAddress(e.cfg.Source)

	streamFlags, _ := cmd.Flags().GetStringSlice("streams")
	keys, err := model.ParseStreamKeys(streamFlags)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("at least one stream key is required")
	}

	claimer := claim.NewClaimer(e.store, source, e.logger).WithNow(e.now)
	payout, err := claimer.Claim(ctx, user, keys, to)
	if err != nil {
		return err
	}
	if err := e.flush(); err != nil {
		return err
	}

	streams := make([]string, 0, len(keys))
	for _, key := range keys {
		streams = append(streams, key.String())
	}
	if err := e.record(storage.JournalEvent{
		Op:      "claim",
		User:    user.Hex(),
		To:      to.Hex(),
		Streams: streams,
		Payout:  payout.String(),
	}); err != nil {
		return err
	}

	e.logger.Info("claim complete",
		zap.String("user", user.Hex()),
		zap.String("payout", payout.String()),
	)
	return nil
}
