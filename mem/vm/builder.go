package vm

import (
	"log"

	"github.com/sarchlab/ptsim/mem"
)

// A Builder can build a Machine.
type Builder struct {
	spec    Spec
	storage *mem.Storage
}

// MakeBuilder creates a new builder with the default spec.
func MakeBuilder() Builder {
	return Builder{
		spec: Defaults(),
	}
}

// WithSpec sets the geometry of the machine.
func (b Builder) WithSpec(spec Spec) Builder {
	b.spec = spec
	return b
}

// WithStorage sets the physical memory that the machine uses. The storage
// must hold exactly MemSize bytes in pages of PageSize bytes.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// Build returns a newly created machine. It panics if the Spec is invalid,
// so callers that take the geometry from users should Validate it first.
func (b Builder) Build(name string) *Machine {
	if err := b.spec.Validate(); err != nil {
		log.Panicf("cannot build machine %s: %v", name, err)
	}

	m := &Machine{
		name:      name,
		spec:      b.spec,
		allocator: NewPageAllocator(b.spec.PageCount),
		processes: NewProcessTable(b.spec.PageCount),
	}

	b.createStorage(m)

	return m
}

func (b Builder) createStorage(m *Machine) {
	if b.storage == nil {
		m.storage = mem.NewStorage(b.spec.MemSize, b.spec.PageSize)
		return
	}

	if b.storage.Capacity() != b.spec.MemSize ||
		b.storage.UnitSize() != b.spec.PageSize {
		panic("storage geometry does not match machine spec")
	}

	m.storage = b.storage
}
