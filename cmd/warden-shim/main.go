// Package main provides the warden-shim entrypoint.
//
// Installed on the search path under the shadowed tool names
// (npm, npx, pnpm, yarn), the shim gates the invocation and hands off
// to the real tool on a proceed verdict. Invoked under its own name it
// serves the maintenance surface (setup, teardown, status, version).
//
// Exit codes:
//   - child's own exit code after a proceed
//   - 1: gate block or generic failure
//   - 127: the real tool could not be located
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

	"github.com/covalent-sh/warden/cli/cmd"
	"github.com/covalent-sh/warden/cli/config"
	"github.com/covalent-sh/warden/gate"
	"github.com/covalent-sh/warden/launcher"
	"github.com/covalent-sh/warden/log"
	"github.com/covalent-sh/warden/scan"
	"github.com/covalent-sh/warden/shadow"
	"github.com/covalent-sh/warden/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	inv := types.CaptureInvocation(os.Args)

	if _, shadowed := shadow.ProfileFor(inv.ToolName); shadowed {
		dispatch(inv)
		return
	}

	runMaintenance()
}

// dispatch runs one shadowed invocation and mirrors the child's
// termination. Does not return.
func dispatch(inv *types.InvocationRequest) {
	settings, err := config.Load(inv.Env)
	if err != nil {
		fatal(err, false)
	}

	logger := log.NewLogger(inv.ToolName, settings.Debug).Sugar()

	home, err := config.Home(inv.Env)
	if err != nil {
		fatal(err, settings.Debug)
	}

	selfPath, err := os.Executable()
	if err != nil {
		fatal(fmt.Errorf("cannot resolve own executable: %w", err), settings.Debug)
	}

	scanner, err := scan.NewClient(scan.Config{
		URL:     settings.API.URL,
		Token:   settings.API.Token,
		Timeout: settings.Timeouts.Scan.Duration,
	})
	if err != nil {
		fatal(err, settings.Debug)
	}

	g := gate.New(gate.Config{
		Scanner:  scanner,
		Severity: settings.Severity,
		Env:      inv.Env,
		Logger:   logger,
	})

	dispatcher := shadow.New(shadow.Config{
		Settings: settings,
		Gate:     g,
		Logger:   logger,
		Home:     home,
		SelfPath: selfPath,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	outcome, err := dispatcher.Dispatch(ctx, inv)
	if err != nil {
		fatal(err, settings.Debug)
	}

	launcher.PropagateExit(outcome)
}

// runMaintenance serves setup/teardown/status/version via urfave.
func runMaintenance() {
	app := &cli.App{
		Name:           "warden-shim",
		Usage:          "warden package-manager shim",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.SetupCommand(),
			cmd.TeardownCommand(),
			cmd.StatusCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(launcher.ExitGenericFailure)
	}
}

// fatal prints a short cause (full detail under debug) and exits with
// the appropriate code. Does not return.
func fatal(err error, debug bool) {
	code := launcher.ExitGenericFailure
	if errors.Is(err, launcher.ErrExecutableNotFound) {
		code = launcher.ExitNotFound
	}

	if debug {
		fmt.Fprintf(os.Stderr, "warden-shim: %+v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "warden-shim: %v\n", err)
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
