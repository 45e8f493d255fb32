package types

// HandshakeKind discriminates handshake envelope variants.
type HandshakeKind string

// Handshake kinds.
const (
	// HandshakeBootstrapSkip tells a freshly spawned bootstrap process
	// which entry point to load, skipping cold-start resolution.
	HandshakeBootstrapSkip HandshakeKind = "bootstrap-skip"
	// HandshakeShadowConfig carries gate configuration to the preload
	// hook running inside a shadowed package manager.
	HandshakeShadowConfig HandshakeKind = "shadow-config"
)

// EnvelopeKey is the single top-level key naming the handshake message.
// Receivers that do not find this key treat the message as noise.
const EnvelopeKey = "warden_handshake"

// Well-known handshake field names. Unrecognized fields are ignored by
// receivers so the envelope stays additive across versions.
const (
	FieldKind       = "kind"
	FieldEntryPoint = "entry_point"
	FieldAPIToken   = "api_token"
	FieldProgress   = "progress"
	FieldExtras     = "extras"
)

// HandshakeEnvelope is the one structured message a parent sends to its
// freshly spawned child over the reserved channel. It is never passed via
// argv, environment, or disk.
type HandshakeEnvelope struct {
	// Kind selects the variant.
	Kind HandshakeKind
	// EntryPoint is the resolved payload entry point (bootstrap-skip).
	EntryPoint string
	// APIToken authenticates the child's own scoring queries (shadow-config).
	APIToken string
	// Progress is true when the child may render progress UI.
	Progress bool
	// Extras carries open-ended additional fields.
	Extras map[string]string
}
