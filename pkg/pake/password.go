package pake

// passwordSalt and passwordIterations parameterize spake2.DeriveW0. Both
// endpoints must derive the identical w0 from the same shared password
// without exchanging a salt, so these are protocol constants rather than
// per-session random values.
var passwordSalt = []byte("ndnob-onboarding-pake-v1")

const passwordIterations = 100000
