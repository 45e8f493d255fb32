package launcher

import (
	"strings"

	"github.com/covalent-sh/warden/cli/config"
)

// hardeningFlags are prepended to every runtime invocation.
var hardeningFlags = []string{
	"--disable-proto=delete",
	"--no-deprecation",
}

// managedFlags is the deny-list of runtime flags the wrapper manages
// itself. User-supplied occurrences are stripped and the canonical
// versions re-added, so a crafted "--require evil.js" cannot displace
// the gate hook.
var managedFlags = map[string]bool{
	"--require":        true,
	"-r":               true,
	"--disable-proto":  true,
	"--no-deprecation": true,
}

// permissionFlagPrefixes identify the runtime's fine-grained permission
// flags. Caller-supplied ones are merged, never overwritten.
var permissionFlagPrefixes = []string{
	"--permission",
	"--allow-fs-read",
	"--allow-fs-write",
	"--allow-child-process",
	"--allow-worker",
	"--allow-addons",
}

// SecurityConfig carries the gate-related pieces of an invocation.
type SecurityConfig struct {
	// PreloadHook is the path of the script installed ahead of the
	// wrapped tool's entry point. Empty disables preloading.
	PreloadHook string
	// PermissionFlags are the wrapper's own fine-grained permission
	// flags, merged with any caller-supplied ones.
	PermissionFlags []string
}

// Invocation is a fully built command ready to spawn.
type Invocation struct {
	Path string
	Argv []string
	// Env is a private copy; mutations never leak into the parent's
	// live environment.
	Env map[string]string
}

// BuildInvocation assembles the runtime command line for an entry point:
// hardening flags, then the preload hook, then merged permission flags,
// then the entry point and pass-through tool arguments. Arguments after
// an explicit "--" terminator pass through untouched.
func BuildInvocation(rt Runtime, entryPoint string, userArgs []string, sec SecurityConfig, baseEnv map[string]string) *Invocation {
	pre, post, hasTerminator := splitTerminator(userArgs)
	runtimeFlags, toolArgs := partitionRuntimeFlags(pre)

	argv := make([]string, 0, len(userArgs)+8)
	argv = append(argv, hardeningFlags...)
	if sec.PreloadHook != "" {
		argv = append(argv, "--require", sec.PreloadHook)
	}
	argv = append(argv, mergePermissionFlags(runtimeFlags, sec.PermissionFlags)...)
	argv = append(argv, entryPoint)
	argv = append(argv, toolArgs...)
	if hasTerminator {
		argv = append(argv, "--")
		argv = append(argv, post...)
	}

	return &Invocation{
		Path: rt.Path,
		Argv: argv,
		Env:  ChildEnv(baseEnv),
	}
}

// ChildEnv copies the environment snapshot for a child, dropping the
// security channel: the API token travels over the handshake only,
// never through inherited environment. Any inherited handshake marker
// is dropped too; Spawn re-adds it for the one child it attaches a
// channel to.
func ChildEnv(baseEnv map[string]string) map[string]string {
	env := make(map[string]string, len(baseEnv))
	for key, value := range baseEnv {
		if key == config.EnvAPIToken || key == config.EnvHandshakeFD {
			continue
		}
		env[key] = value
	}
	return env
}

// splitTerminator splits args at the first "--".
func splitTerminator(args []string) (pre, post []string, found bool) {
	for i, arg := range args {
		if arg == "--" {
			return args[:i], args[i+1:], true
		}
	}
	return args, nil, false
}

// partitionRuntimeFlags separates runtime-directed flags from tool
// arguments. Managed flags are dropped entirely (their canonical forms
// are re-added by BuildInvocation); permission flags are collected for
// merging; everything else belongs to the wrapped tool.
func partitionRuntimeFlags(args []string) (runtimeFlags, toolArgs []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, _, _ := strings.Cut(arg, "=")

		if managedFlags[name] {
			// --require and -r take a separate value argument.
			if (name == "--require" || name == "-r") && !strings.Contains(arg, "=") && i+1 < len(args) {
				i++
			}
			continue
		}

		if isPermissionFlag(name) {
			runtimeFlags = append(runtimeFlags, arg)
			continue
		}

		toolArgs = append(toolArgs, arg)
	}
	return runtimeFlags, toolArgs
}

// isPermissionFlag matches the runtime's fine-grained permission flags.
func isPermissionFlag(name string) bool {
	for _, prefix := range permissionFlagPrefixes {
		if name == prefix {
			return true
		}
	}
	return false
}

// mergePermissionFlags unions caller flags with the wrapper's own,
// keeping caller order first and dropping exact duplicates.
func mergePermissionFlags(callerFlags, wrapperFlags []string) []string {
	seen := make(map[string]bool, len(callerFlags)+len(wrapperFlags))
	merged := make([]string, 0, len(callerFlags)+len(wrapperFlags))
	for _, flag := range callerFlags {
		if seen[flag] {
			continue
		}
		seen[flag] = true
		merged = append(merged, flag)
	}
	for _, flag := range wrapperFlags {
		if seen[flag] {
			continue
		}
		seen[flag] = true
		merged = append(merged, flag)
	}
	return merged
}
