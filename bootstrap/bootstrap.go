// Package bootstrap implements the distributable entry point: install
// the CLI payload if needed, then run it under a resolved runtime.
//
// Two modes exist. The warm path fires when a parent handshakes a
// concrete entry point: all install and version resolution is skipped.
// Cold start performs the full sequence under the install lock. No step
// partially succeeds; either the payload runs under caller control or
// bootstrap exits non-zero before handing off.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/covalent-sh/warden/cli/config"
	"github.com/covalent-sh/warden/installer"
	"github.com/covalent-sh/warden/ipc"
	"github.com/covalent-sh/warden/launcher"
	"github.com/covalent-sh/warden/lockfile"
	"github.com/covalent-sh/warden/log"
	"github.com/covalent-sh/warden/types"
)

// ErrNoRuntime is returned when a warm-path process resolves no runtime
// but itself. Respawning self would recurse forever; failing loudly is
// the only correct move.
var ErrNoRuntime = errors.New("no compatible runtime available")

// Orchestrator runs one bootstrap invocation.
type Orchestrator struct {
	settings *config.Settings
	logger   *log.SugaredLogger
	home     string
	selfPath string
	args     []string
	env      map[string]string

	// handshakeCh overrides the inherited channel in tests.
	handshakeCh      *os.File
	handshakeTimeout time.Duration
}

// Config configures an Orchestrator.
type Config struct {
	Settings *config.Settings
	Logger   *log.SugaredLogger
	// Home is the warden home directory.
	Home string
	// SelfPath is the current executable.
	SelfPath string
	// Args are the user arguments passed through to the payload.
	Args []string
	// Env is the invocation's environment snapshot.
	Env map[string]string
	// HandshakeChannel overrides the inherited channel (tests).
	HandshakeChannel *os.File
	// HandshakeTimeout bounds the warm-path receive window.
	HandshakeTimeout time.Duration
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		settings:         cfg.Settings,
		logger:           cfg.Logger,
		home:             cfg.Home,
		selfPath:         cfg.SelfPath,
		args:             cfg.Args,
		env:              cfg.Env,
		handshakeCh:      cfg.HandshakeChannel,
		handshakeTimeout: cfg.HandshakeTimeout,
	}
}

// Run executes the bootstrap and returns the child's outcome.
func (o *Orchestrator) Run(ctx context.Context) (types.SpawnOutcome, error) {
	ch := o.handshakeCh
	if ch == nil {
		ch = ipc.InheritedChannel()
	}

	if env, err := ipc.Receive(ch, o.handshakeTimeout); err == nil &&
		env.Kind == types.HandshakeBootstrapSkip && env.EntryPoint != "" {
		o.logger.Debugf("warm path: entry point %s", env.EntryPoint)
		return o.launch(ctx, env.EntryPoint, true)
	}

	entry, err := o.coldStart(ctx)
	if err != nil {
		return types.SpawnOutcome{}, err
	}
	return o.launch(ctx, entry, false)
}

// coldStart ensures the payload is installed and returns its entry point.
func (o *Orchestrator) coldStart(ctx context.Context) (string, error) {
	// A home we cannot create is user-actionable, fatal, and not worth
	// retrying.
	if err := os.MkdirAll(o.home, 0o755); err != nil {
		return "", fmt.Errorf("cannot create warden home %q: %w", o.home, err)
	}

	inst := installer.New(installer.Config{
		RegistryURL: o.settings.RegistryURL,
		Package:     o.settings.Package,
		Home:        o.home,
		Client:      &http.Client{Timeout: o.settings.Timeouts.Download.Duration},
		Logger:      o.logger,
	})

	// Idempotent fast path: a ready artifact touches no network.
	if inst.Ready() {
		return inst.EntryPoint(), nil
	}

	if err := os.MkdirAll(inst.InstallRoot(), 0o755); err != nil {
		return "", fmt.Errorf("cannot create install root: %w", err)
	}

	handle, err := lockfile.Acquire(inst.InstallRoot(), lockfile.Options{})
	if err != nil {
		return "", err
	}
	defer handle.Release()

	// A sibling may have finished the install while we waited.
	if inst.Ready() {
		return inst.EntryPoint(), nil
	}

	version := inst.InstalledVersion()
	if version == "" {
		version, err = inst.ResolveLatest(ctx)
		if err != nil {
			return "", err
		}
	}

	o.logger.Debugf("cold start: installing %s@%s", o.settings.Package, version)
	artifact, err := inst.Install(ctx, version)
	if err != nil {
		return "", err
	}

	// Handing off to a missing entry point would surface as a confusing
	// runtime error; re-check before the spawn.
	if _, err := os.Stat(artifact.EntryPoint); err != nil {
		return "", &installer.IntegrityError{Path: artifact.EntryPoint, Msg: "entry point vanished after install"}
	}

	return artifact.EntryPoint, nil
}

// launch resolves a runtime and spawns the payload, handshaking the
// child with the entry point so its own warm path fires.
func (o *Orchestrator) launch(ctx context.Context, entryPoint string, warm bool) (types.SpawnOutcome, error) {
	resolver := &launcher.Resolver{SelfPath: o.selfPath}
	rt := resolver.Resolve(o.env)

	if rt.Kind == launcher.RuntimeSelf && warm {
		// We are already the re-invoked runtime and still found nothing
		// external to delegate to.
		return types.SpawnOutcome{}, fmt.Errorf("%w (need %s >= v%d)", ErrNoRuntime, "node", launcher.MinRuntimeMajor())
	}

	inv := launcher.BuildInvocation(rt, entryPoint, o.args, launcher.SecurityConfig{}, o.env)

	child, err := launcher.Spawn(ctx, inv, o.logger)
	if err != nil {
		return types.SpawnOutcome{}, err
	}

	// Sent after confirmed spawn, before awaiting exit. An external
	// runtime that never reads the channel is unaffected; the payload's
	// own bootstrap consumes it and skips cold start.
	child.SendHandshake(&types.HandshakeEnvelope{
		Kind:       types.HandshakeBootstrapSkip,
		EntryPoint: entryPoint,
	})

	return child.Wait()
}
