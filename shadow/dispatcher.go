package shadow

import (
	"context"
	"fmt"
	"strings"

	"github.com/covalent-sh/warden/cli/config"
	"github.com/covalent-sh/warden/gate"
	"github.com/covalent-sh/warden/hook"
	"github.com/covalent-sh/warden/launcher"
	"github.com/covalent-sh/warden/log"
	"github.com/covalent-sh/warden/types"
)

// Dispatcher orchestrates one shadowed invocation.
type Dispatcher struct {
	settings *config.Settings
	gate     *gate.Gate
	logger   *log.SugaredLogger
	home     string
	selfPath string
}

// Config configures a Dispatcher.
type Config struct {
	Settings *config.Settings
	Gate     *gate.Gate
	Logger   *log.SugaredLogger
	// Home is the warden home directory.
	Home string
	// SelfPath is the shim binary's own path.
	SelfPath string
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		settings: cfg.Settings,
		gate:     cfg.Gate,
		logger:   cfg.Logger,
		home:     cfg.Home,
		selfPath: cfg.SelfPath,
	}
}

// Dispatch runs the gate and, on proceed, hands off to the real tool.
// Returns the outcome to propagate. A block verdict is terminal: the
// real tool is never invoked and the outcome is a plain failure code.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *types.InvocationRequest) (types.SpawnOutcome, error) {
	profile, ok := ProfileFor(inv.ToolName)
	if !ok {
		return types.SpawnOutcome{}, fmt.Errorf("no dispatch profile for tool %q", inv.ToolName)
	}

	// One progress verdict for the whole invocation: the parent-side
	// spinner and the child's handshake flag must agree.
	progress := spinnerAllowed(inv.Env)
	spinner := gate.NewSpinner(progress)
	decision := d.gate.Check(ctx, inv, profile, spinner)
	if !decision.Proceed() {
		return types.SpawnOutcome{Code: launcher.ExitGenericFailure}, nil
	}

	// Self-heal the shim links so nested package-manager invocations by
	// the child stay shadowed. EnsureShims is idempotent, so running it
	// every dispatch costs a handful of readlinks.
	shimDir, err := EnsureShims(d.home, d.selfPath)
	if err != nil {
		return types.SpawnOutcome{}, err
	}

	guard := newRecursionGuard(shimDir, d.selfPath)
	realTool, found := resolveReal(profile.Tool, inv.Env["PATH"], guard)
	if !found {
		return types.SpawnOutcome{}, fmt.Errorf("%w: %s", launcher.ErrExecutableNotFound, profile.Tool)
	}

	hookPath, err := hook.ExtractedPath()
	if err != nil {
		// The gate already ran in-process; losing the in-child guard is
		// a degradation, not a reason to break the tool.
		d.logger.Warnf("gate hook unavailable, child runs unguarded: %v", err)
		hookPath = ""
	}

	env := launcher.ChildEnv(inv.Env)
	env["PATH"] = PrependPath(env["PATH"], shimDir)
	if hookPath != "" {
		env["NODE_OPTIONS"] = mergeNodeOptions(env["NODE_OPTIONS"], hookPath)
	}

	child, err := launcher.Spawn(ctx, &launcher.Invocation{
		Path: realTool,
		Argv: inv.Args,
		Env:  env,
	}, d.logger)
	if err != nil {
		return types.SpawnOutcome{}, err
	}

	child.SendHandshake(&types.HandshakeEnvelope{
		Kind:     types.HandshakeShadowConfig,
		APIToken: d.settings.API.Token,
		Progress: progress,
		Extras: map[string]string{
			"severity": string(d.settings.Severity),
		},
	})

	return child.Wait()
}

// mergeNodeOptions appends the hook preload to existing NODE_OPTIONS
// rather than overwriting caller flags.
func mergeNodeOptions(existing, hookPath string) string {
	preload := "--require " + hookPath
	if strings.Contains(existing, preload) {
		return existing
	}
	if existing == "" {
		return preload
	}
	return existing + " " + preload
}

// spinnerAllowed says whether the child may render progress UI: not in
// CI and not when debug output would interleave with it.
func spinnerAllowed(env map[string]string) bool {
	if config.Truthy(env["CI"]) {
		return false
	}
	return !config.Truthy(env[config.EnvDebug])
}
