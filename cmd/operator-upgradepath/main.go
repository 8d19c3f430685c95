package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/openshift/operator-upgradepath/internal/pkg/cli"
	"github.com/openshift/operator-upgradepath/internal/pkg/errcode"
	clog "github.com/openshift/operator-upgradepath/internal/pkg/log"
)

func main() {
	if err := run(); err != nil {
		os.Exit(exitCodeFromError(err))
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup pluggable logger. Any logger implementing
	// PluggableLoggerInterface can be used instead.
	log := clog.New("info")
	rootCmd := cli.NewUpgradePathCmd(log)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		log.Error("[Executor] %v ", err)
	}
	return err
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var e cli.CodeExiter
	if errors.As(err, &e) {
		return e.ExitCode()
	}
	return errcode.GenericErr
}
