// Command aergo is the core host process: it takes exactly two
// positional arguments (modules_dir, data_dir), loads and auto-creates
// modules, and stays alive until SIGINT, joining every worker with the
// default timeout. Grounded on the teacher's cmd/authn's signal-handler
// and exit-logging shape (installSignalHandler, cos.ExitLogf), updated to
// os/signal.NotifyContext per original_source's main.cpp teardown-on-close
// behavior.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/aergo-project/aergo-core/internal/bus"
	"github.com/aergo-project/aergo-core/internal/config"
	"github.com/aergo-project/aergo-core/internal/facade"
	"github.com/aergo-project/aergo-core/internal/loader"
	"github.com/aergo-project/aergo-core/internal/metrics"
	"github.com/aergo-project/aergo-core/internal/nlog"
	"github.com/aergo-project/aergo-core/internal/tracing"
)

func main() {
	if err := config.Parse(os.Args, run); err != nil {
		nlog.Errorf("%v", err)
		os.Exit(2)
	}
}

func run(cfg config.Config) error {
	nlog.SetVerbose(cfg.Verbose)

	reg := metrics.NewRegistry()
	tracer := tracing.NewNoop()

	b := bus.New(loader.New(), facade.New, reg, tracer, bus.Config{
		ThreadStartStopTimeout: cfg.ThreadTimeout,
	})

	if err := b.Initialize(cfg.ModulesDir, cfg.DataDir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	nlog.Warningf("aergo running: %d loaded, %d running", b.LoadedModulesCount(), b.RunningModulesCount())
	<-ctx.Done()

	nlog.Warningf("shutdown requested, stopping %d running modules", b.RunningModulesCount())
	b.Shutdown()
	return nil
}
