package xid

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

func New() string {
	return uuid.NewString()
}

// InvoiceGenerator produces INV-YYYYMMDD-NNNN numbers. The four digit suffix
// is random, so two numbers drawn on the same day can collide; the database
// unique constraint is the only thing that rejects a duplicate.
type InvoiceGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewInvoiceGenerator() *InvoiceGenerator {
	return &InvoiceGenerator{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededInvoiceGenerator is deterministic for a given seed.
func NewSeededInvoiceGenerator(seed uint64) *InvoiceGenerator {
	return &InvoiceGenerator{rng: rand.New(rand.NewPCG(seed, seed))}
}

func (g *InvoiceGenerator) Next(at time.Time) string {
	g.mu.Lock()
	n := g.rng.IntN(10000)
	g.mu.Unlock()
	return fmt.Sprintf("INV-%s-%04d", at.UTC().Format("20060102"), n)
}
