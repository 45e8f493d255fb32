// Package main provides the warden bootstrap entrypoint.
//
// This is the distributable binary: it installs the warden CLI payload
// on first use, then runs it under a resolved runtime, passing all
// arguments through. A handful of maintenance commands are handled
// locally; everything else belongs to the payload.
//
// Exit codes:
//   - 0: success
//   - child's own exit code when the payload ran
//   - 1: generic bootstrap failure
//   - 127: required executable could not be located
//   - signal-terminated children re-raise the same signal here
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/covalent-sh/warden/bootstrap"
	"github.com/covalent-sh/warden/cli/cmd"
	"github.com/covalent-sh/warden/cli/config"
	"github.com/covalent-sh/warden/launcher"
	"github.com/covalent-sh/warden/log"
	"github.com/covalent-sh/warden/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

// maintenanceCommands are handled by this binary instead of the payload.
var maintenanceCommands = map[string]bool{
	"version":   true,
	"status":    true,
	"help":      true,
	"--help":    true,
	"-h":        true,
	"--version": true,
	"-v":        true,
}

func main() {
	if len(os.Args) > 1 && maintenanceCommands[os.Args[1]] {
		runMaintenance()
		return
	}
	runBootstrap()
}

// runMaintenance serves the local command surface via urfave.
func runMaintenance() {
	app := &cli.App{
		Name:           "warden",
		Usage:          "package-manager firewall bootstrap",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.VersionCommand(commit),
			cmd.StatusCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(launcher.ExitGenericFailure)
	}
}

// runBootstrap performs the install-and-respawn sequence and mirrors the
// child's termination. Does not return.
func runBootstrap() {
	inv := types.CaptureInvocation(os.Args)

	settings, err := config.Load(inv.Env)
	if err != nil {
		fatal(err, false)
	}

	logger := log.NewLogger("warden", settings.Debug).Sugar()

	home, err := config.Home(inv.Env)
	if err != nil {
		fatal(err, settings.Debug)
	}

	selfPath, err := os.Executable()
	if err != nil {
		fatal(fmt.Errorf("cannot resolve own executable: %w", err), settings.Debug)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	orchestrator := bootstrap.New(bootstrap.Config{
		Settings: settings,
		Logger:   logger,
		Home:     home,
		SelfPath: selfPath,
		Args:     inv.Args,
		Env:      inv.Env,
	})

	outcome, err := orchestrator.Run(ctx)
	if err != nil {
		fatal(err, settings.Debug)
	}

	launcher.PropagateExit(outcome)
}

// fatal prints a short cause (full detail under debug) and exits with
// the appropriate code. Does not return.
func fatal(err error, debug bool) {
	code := launcher.ExitGenericFailure
	if errors.Is(err, launcher.ErrExecutableNotFound) || errors.Is(err, bootstrap.ErrNoRuntime) {
		code = launcher.ExitNotFound
	}

	if debug {
		fmt.Fprintf(os.Stderr, "warden: %+v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "warden: %v\n", err)
	}
	os.Exit(code)
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(launcher.ExitGenericFailure)
}
