package types

// ArtifactState tracks the install lifecycle of a payload version.
// Any failure before ArtifactVerified must leave no tree marked ready.
type ArtifactState string

// Artifact lifecycle states.
const (
	ArtifactAbsent      ArtifactState = "absent"
	ArtifactDownloading ArtifactState = "downloading"
	ArtifactExtracting  ArtifactState = "extracting"
	ArtifactVerified    ArtifactState = "verified"
	ArtifactReady       ArtifactState = "ready"
)

// InstalledArtifact describes a payload install that reached ready state.
type InstalledArtifact struct {
	// Version is the installed payload version.
	Version string
	// InstallRoot is the directory the payload was extracted into.
	InstallRoot string
	// EntryPoint is the absolute path of the payload entry-point file.
	EntryPoint string
}

// SpawnOutcome is how a supervised child terminated.
// Exactly one of Code or Signal is meaningful: Signal is non-zero for
// signal-terminated children, otherwise Code holds the exit status.
type SpawnOutcome struct {
	Code   int
	Signal int
}

// Signaled reports whether the child died from a signal.
func (o SpawnOutcome) Signaled() bool {
	return o.Signal != 0
}
