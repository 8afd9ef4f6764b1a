package main

import (
	"context"
	"os"

	"ebird-barchart/cmd/barchart/commands"
	"ebird-barchart/internal/components/telemetry"
	"ebird-barchart/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext(context.Background())
	defer cancel()

	otel, err := telemetry.SetupFromEnv(ctx, "barchart")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}

	err = commands.ExecuteContext(ctx, commands.DefaultEnvironment())
	otel.Shutdown(context.Background())
	if err != nil {
		cancel()
		os.Exit(1)
	}
}
