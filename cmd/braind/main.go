package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"braind/internal/competition"
	"braind/internal/core"
	"braind/internal/robot"
	"braind/pkg/systemd"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./braind.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := core.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if err := app.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		_ = app.Stop(context.Background())
		os.Exit(1)
	}

	bot := robot.New(app.Logger())
	rt := competition.NewCompeteBuilder(bot, app.StatusSource()).
		StepInterval(app.StepInterval()).
		Observe(app.RecordTransition).
		Build()
	app.RunRuntime(rt)

	systemd.NotifyReady()
	go systemd.WatchdogLoop(ctx)

	err = app.Wait(ctx)
	systemd.NotifyStopping()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if stopErr := app.Stop(stopCtx); err == nil {
		err = stopErr
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
