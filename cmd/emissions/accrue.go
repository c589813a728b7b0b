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

func runAccrue(cmd *cobra.Command, _ []string) error {
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

	streamFlag, _ := cmd.Flags().GetString("stream")
	if streamFlag == "" {
		return fmt.Errorf("stream key is required")
	}
	key, err := model.ParseStreamKey(streamFlag)
	if err != nil {
		return err
	}

	claimer := claim.NewClaimer(e.store, common.Address{}, e.logger).WithNow(e.now)
	if err := claimer.Accrue(ctx, user, key); err != nil {
		return err
	}
	if err := e.flush(); err != nil {
		return err
	}
	if err := e.record(storage.JournalEvent{
		Op:      "accrue",
		User:    user.Hex(),
		Streams: []string{key.String()},
	}); err != nil {
		return err
	}

	e.logger.Info("accrue complete",
		zap.String("user", user.Hex()),
		zap.String("stream", key.String()),
	)
	return nil
}
