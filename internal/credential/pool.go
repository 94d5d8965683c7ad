package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

// Picker returns a number in [0, n).
type Picker interface {
	Intn(n int) int
}

type globalRand struct{}

// math/rand top-level functions are safe for concurrent use.
func (globalRand) Intn(n int) int {
	return rand.Intn(n)
}

type Option func(*Pool)

func WithPicker(p Picker) Option {
	return func(pool *Pool) {
		if p != nil {
			pool.picker = p
		}
	}
}

// Pool holds the upstream api keys. It is immutable once built and can be
// shared across goroutines without locking.
type Pool struct {
	credentials []string
	picker      Picker
}

func NewPool(credentials []string, opts ...Option) (*Pool, error) {
	if len(credentials) == 0 {
		return nil, errors.New("credential pool cannot be empty")
	}

	copied := make([]string, 0, len(credentials))
	for i, c := range credentials {
		if len(strings.TrimSpace(c)) == 0 {
			return nil, fmt.Errorf("credential at index %d is empty", i)
		}

		copied = append(copied, c)
	}

	p := &Pool{
		credentials: copied,
		picker:      globalRand{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Select returns a credential chosen uniformly at random. Consecutive calls
// are independent and may return the same credential.
func (p *Pool) Select() string {
	return p.credentials[p.picker.Intn(len(p.credentials))]
}

func (p *Pool) Size() int {
	return len(p.credentials)
}

// Fingerprint identifies a credential in logs without revealing it.
func Fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])[:12]
}
