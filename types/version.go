package types

// Version is the canonical project version.
// The bootstrap binary, the shim, and the handshake wire format share
// this version per the lockstep versioning policy.
const Version = "0.3.0"
