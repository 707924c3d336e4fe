package sim

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

var (
	idGeneratorMutex sync.Mutex
	idGenerator      IDGenerator
)

// IDGenerator can generate IDs
type IDGenerator interface {
	// Generate an ID
	Generate() string
}

// GetIDGenerator returns the ID generator shared by the current run. It is
// sequential, so IDs are deterministic across runs.
func GetIDGenerator() IDGenerator {
	idGeneratorMutex.Lock()
	defer idGeneratorMutex.Unlock()

	if idGenerator == nil {
		idGenerator = &sequentialIDGenerator{}
	}

	return idGenerator
}

// NewSequentialIDGenerator returns a private sequential generator whose first
// ID is "1". It does not affect the generator returned by GetIDGenerator.
func NewSequentialIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	return strconv.FormatUint(idNumber, 10)
}

// NewParallelIDGenerator returns a generator of globally unique IDs. The IDs
// are not deterministic.
func NewParallelIDGenerator() IDGenerator {
	return parallelIDGenerator{}
}

type parallelIDGenerator struct{}

func (parallelIDGenerator) Generate() string {
	return xid.New().String()
}
