//go:build pprof

package main

import (
	"context"
	"fmt"
	"net/http"
	// #nosec
	_ "net/http/pprof"
	"strconv"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/supplai-io/supplai/internal/util"
)

func pprof_init(ctx context.Context, _ *cli.Command, logger *zap.Logger) {
	port := util.Getenv("SUPPLAI_PPROF_PORT", "8088")
	if _, err := strconv.Atoi(port); err != nil {
		logger.Sugar().Errorf("SUPPLAI_PPROF_PORT environment variable is invalid: %v", err.Error())
		port = "8088"
	}

	server := &http.Server{Addr: fmt.Sprintf("localhost:%s", port)}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	go func() {
		// #nosec
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Errorf("http.ListenAndServe error: %v", err.Error())
		}
	}()
}
