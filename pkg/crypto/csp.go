// Package crypto implements guarded storage for critical security parameters.
//
// This file (csp.go) defines the CSP container that owns every piece of
// secret material the module hands out: packed private keys, decapsulated
// shared secrets, derived session keys. Secrets are read through a scoped
// view, wiped on release, and wiped again by the garbage collector if the
// owner forgets.
package crypto

import (
	"runtime"
	"sync"

	"github.com/pqgate/pqgate/internal/constants"
	qerrors "github.com/pqgate/pqgate/internal/errors"
	"github.com/pqgate/pqgate/pkg/fips"
)

// ExportPolicy controls whether plaintext secret material may leave a CSP.
type ExportPolicy uint8

const (
	// BlockPlaintext refuses Export. Wrapped export via WrapCSP remains
	// available.
	BlockPlaintext ExportPolicy = iota

	// AllowPlaintext permits Export of a copy of the secret material.
	AllowPlaintext
)

// String returns a human-readable name for the export policy.
func (p ExportPolicy) String() string {
	switch p {
	case BlockPlaintext:
		return "BlockPlaintext"
	case AllowPlaintext:
		return "AllowPlaintext"
	default:
		return "Unknown"
	}
}

// DefaultExportPolicy returns the export policy for new CSPs: plaintext
// export is blocked in FIPS-enforcing builds and allowed otherwise.
func DefaultExportPolicy() ExportPolicy {
	if fips.FIPSMode() {
		return BlockPlaintext
	}
	return AllowPlaintext
}

// CSP holds a critical security parameter: secret bytes with controlled
// access and guaranteed zeroization.
//
// Construction takes ownership of the raw bytes; the caller must not retain
// or mutate its slice afterwards. All reads go through WithBytes. Zeroize
// releases the parameter by overwriting every byte; a GC cleanup performs
// the same wipe if the owner never calls it.
type CSP struct {
	label  string
	policy ExportPolicy

	mu       sync.Mutex
	data     []byte
	released bool

	cleanup runtime.Cleanup
}

// NewCSP creates a guard around the given secret bytes with the default
// export policy. The CSP takes ownership of b.
func NewCSP(label string, b []byte) *CSP {
	return NewCSPWithPolicy(label, b, DefaultExportPolicy())
}

// NewCSPWithPolicy creates a guard with an explicit export policy. In
// FIPS-enforcing builds the policy is always BlockPlaintext; a requested
// AllowPlaintext is ignored there.
func NewCSPWithPolicy(label string, b []byte, policy ExportPolicy) *CSP {
	if fips.FIPSMode() {
		policy = BlockPlaintext
	}
	c := &CSP{label: label, policy: policy, data: b}
	c.cleanup = runtime.AddCleanup(c, func(buf []byte) { Zeroize(buf) }, b)
	return c
}

// Label returns the descriptive label given at construction. Labels identify
// the parameter in logs and must never contain secret material.
func (c *CSP) Label() string {
	return c.label
}

// Policy returns the export policy of this CSP.
func (c *CSP) Policy() ExportPolicy {
	return c.policy
}

// Len returns the current length of the guarded material, zero after release.
func (c *CSP) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Released reports whether the parameter has been zeroized.
func (c *CSP) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// WithBytes invokes f with a scoped view of the secret material. The slice
// is only valid for the duration of the call: f must not retain it, return
// it, or hand it to another goroutine. Reads after release fail with
// ErrCSPReleased.
func (c *CSP) WithBytes(f func([]byte) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return qerrors.ErrCSPReleased
	}
	return f(c.data)
}

// Export returns a copy of the secret material. The module must be
// Operational, and the export policy must allow plaintext export; in
// FIPS-enforcing builds this always fails with ErrCSPExportBlocked.
// The caller owns the returned copy and is responsible for zeroizing it.
func (c *CSP) Export() ([]byte, error) {
	if err := fips.RequireOperational(); err != nil {
		return nil, err
	}
	if c.policy == BlockPlaintext {
		return nil, qerrors.ErrCSPExportBlocked
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil, qerrors.ErrCSPReleased
	}
	out := make([]byte, len(c.data))
	copy(out, c.data)
	return out, nil
}

// Zeroize overwrites the secret material with zeros and releases the guard.
// It is idempotent; subsequent reads fail with ErrCSPReleased.
func (c *CSP) Zeroize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zeroizeLocked()
}

func (c *CSP) zeroizeLocked() {
	if c.released {
		return
	}
	Zeroize(c.data)
	// Keep the backing array reachable until the wipe is done so the
	// stores cannot be treated as dead.
	runtime.KeepAlive(c.data)
	c.cleanup.Stop()
	c.data = nil
	c.released = true
}

// SharedSecret is a 32-byte KEM shared secret under a CSP guard.
type SharedSecret struct {
	guard *CSP
}

// NewSharedSecret wraps a 32-byte shared secret. Ownership of b transfers
// to the returned value.
func NewSharedSecret(b []byte) (*SharedSecret, error) {
	if len(b) != constants.MLKEMSharedSecretSize {
		return nil, qerrors.NewCryptoError("NewSharedSecret", qerrors.ErrInvalidKeySize)
	}
	return &SharedSecret{guard: NewCSP("shared secret", b)}, nil
}

// WithBytes invokes f with a scoped view of the secret. See CSP.WithBytes.
func (s *SharedSecret) WithBytes(f func([]byte) error) error {
	return s.guard.WithBytes(f)
}

// Export returns a plaintext copy of the secret, subject to the module
// state gate and the export policy.
func (s *SharedSecret) Export() ([]byte, error) {
	return s.guard.Export()
}

// Equal compares two shared secrets in constant time. Released or nil
// secrets never compare equal.
func (s *SharedSecret) Equal(other *SharedSecret) bool {
	if s == nil || other == nil {
		return false
	}
	if s == other {
		return !s.guard.Released()
	}
	tmp := make([]byte, 0, constants.MLKEMSharedSecretSize)
	if err := s.guard.WithBytes(func(a []byte) error {
		tmp = append(tmp, a...)
		return nil
	}); err != nil {
		return false
	}
	defer Zeroize(tmp)
	var equal bool
	if err := other.guard.WithBytes(func(b []byte) error {
		equal = ConstantTimeCompare(tmp, b)
		return nil
	}); err != nil {
		return false
	}
	return equal
}

// Zeroize releases the secret. Idempotent.
func (s *SharedSecret) Zeroize() {
	s.guard.Zeroize()
}

// Released reports whether the secret has been zeroized.
func (s *SharedSecret) Released() bool {
	return s.guard.Released()
}
