package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/playverse/walletops/internal/console"
	"github.com/playverse/walletops/internal/service"
	"github.com/playverse/walletops/internal/store"
)

func main() {
	logger := zap.NewNop()

	st := store.NewMemoryStore()
	wallet := service.NewWalletService(st, logger)
	auth := service.NewAuthService(st, logger, []byte("console-session"), time.Hour)

	console.New(wallet, auth, os.Stdin, os.Stdout).Run(context.Background())
}
