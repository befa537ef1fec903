// Package rng provides the randomness source for the round engine.
//
// It has two halves: a cryptographically strong seed generator backed by
// crypto/rand, and a deterministic seeded draw function that derives an
// unbounded sequence of independent-looking values from one seed. The
// seed is the trust anchor for the provably-fair contract; the draw
// function is what makes every outcome reproducible after the fact.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/alexbotov/roundengine/internal/domain"
)

// SeedSize is the entropy per round in bytes.
const SeedSize = 32

// ErrEntropyUnavailable indicates the OS entropy source failed. This is
// fatal at the process level: the service must stop opening rounds
// rather than degrade to a weaker generator.
var ErrEntropyUnavailable = errors.New("entropy source unavailable")

// Service generates round seeds from a cryptographically secure source.
type Service struct {
	entropy io.Reader
	mu      sync.Mutex

	lastHealthCheck time.Time
	seedsGenerated  int64
}

// New creates a seed generator backed by crypto/rand.
func New() *Service {
	return NewWithEntropy(rand.Reader)
}

// NewWithEntropy creates a seed generator over a specific entropy
// source, mainly so tests can exercise entropy failure.
func NewWithEntropy(entropy io.Reader) *Service {
	return &Service{
		entropy:         entropy,
		lastHealthCheck: time.Now(),
	}
}

// GenerateSeed returns a fresh high-entropy round seed.
func (s *Service) GenerateSeed() (domain.Seed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, SeedSize)
	if _, err := io.ReadFull(s.entropy, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}

	s.seedsGenerated++
	return domain.Seed(buf), nil
}

// Draw returns a deterministic value in [0, 1) derived from (seed, nonce).
// It is a pure one-way function of its inputs: identical inputs always
// produce the identical value, and no state is retained between calls.
// The 53-bit mantissa keeps the result exactly representable as float64.
func Draw(seed domain.Seed, nonce uint64) float64 {
	var nb [8]byte
	binary.BigEndian.PutUint64(nb[:], nonce)

	h, _ := blake2b.New256(nil)
	h.Write(seed)
	h.Write(nb[:])
	sum := h.Sum(nil)

	n := binary.BigEndian.Uint64(sum[:8]) >> 11 // 53 bits of precision
	return float64(n) / float64(1<<53)
}

// DrawInt returns a deterministic integer in [0, max) from (seed, nonce).
// max must be positive.
func DrawInt(seed domain.Seed, nonce uint64, max int) int {
	n := int(Draw(seed, nonce) * float64(max))
	if n >= max { // guards the f==0.999... edge after scaling
		n = max - 1
	}
	return n
}

// HealthResult contains RNG health check results.
type HealthResult struct {
	Healthy         bool      `json:"healthy"`
	Timestamp       time.Time `json:"timestamp"`
	SeedsGenerated  int64     `json:"seeds_generated"`
	ChiSquare       float64   `json:"chi_square"`
	ChiSquarePassed bool      `json:"chi_square_passed"`
	Error           string    `json:"error,omitempty"`
}

// HealthCheck verifies both halves of the source: that seed generation
// works and that the seeded draw is uniform across nonces for a fresh
// seed. A failure here means the service should refuse new rounds.
func (s *Service) HealthCheck() (*HealthResult, error) {
	s.mu.Lock()
	s.lastHealthCheck = time.Now()
	s.mu.Unlock()

	seed, err := s.GenerateSeed()
	if err != nil {
		return &HealthResult{
			Healthy:   false,
			Timestamp: time.Now(),
			Error:     err.Error(),
		}, err
	}

	const sampleSize = 1000
	samples := make([]int64, sampleSize)
	for i := 0; i < sampleSize; i++ {
		samples[i] = int64(DrawInt(seed, uint64(i), 100))
	}

	chiSquare, passed := chiSquareTest(samples, 100)

	return &HealthResult{
		Healthy:         passed,
		Timestamp:       time.Now(),
		SeedsGenerated:  s.seedsGenerated,
		ChiSquare:       chiSquare,
		ChiSquarePassed: passed,
	}, nil
}

// chiSquareTest performs a basic chi-square test for uniformity.
func chiSquareTest(samples []int64, bins int) (float64, bool) {
	counts := make([]int, bins)
	for _, sample := range samples {
		counts[int(sample)%bins]++
	}

	expected := float64(len(samples)) / float64(bins)

	var chiSquare float64
	for _, count := range counts {
		diff := float64(count) - expected
		chiSquare += (diff * diff) / expected
	}

	// Critical value for 99 DOF at 99% confidence is approximately 134.6
	criticalValue := 134.6
	if bins != 100 {
		criticalValue = float64(bins-1) + 2.576*math.Sqrt(2.0*float64(bins-1))
	}

	return chiSquare, chiSquare < criticalValue
}
