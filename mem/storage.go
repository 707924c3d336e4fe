// Package mem provides the simulated physical memory.
package mem

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when an access falls outside the storage.
var ErrOutOfRange = errors.New(
	"accessing physical address beyond the storage capacity")

// A Storage keeps the bytes of the simulated physical memory.
//
// The storage is managed in units, where a unit is a page. All the units are
// allocated up front, so the storage always holds exactly capacity bytes.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     []byte
}

// NewStorage creates a storage of capacity bytes split into units of unitSize
// bytes. The capacity must be a multiple of the unit size.
func NewStorage(capacity, unitSize uint64) *Storage {
	if unitSize == 0 || capacity%unitSize != 0 {
		panic(fmt.Sprintf(
			"storage capacity %d is not a multiple of unit size %d",
			capacity, unitSize))
	}

	return &Storage{
		unitSize: unitSize,
		capacity: capacity,
		data:     make([]byte, capacity),
	}
}

// Capacity returns the number of bytes in the storage.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// UnitSize returns the number of bytes in a unit.
func (s *Storage) UnitSize() uint64 {
	return s.unitSize
}

func (s *Storage) mustBeInRange(address, length uint64) error {
	if address >= s.capacity || length > s.capacity-address {
		return fmt.Errorf("%w: address %d, length %d, capacity %d",
			ErrOutOfRange, address, length, s.capacity)
	}

	return nil
}

// Read returns a copy of length bytes starting at address.
func (s *Storage) Read(address uint64, length uint64) ([]byte, error) {
	if err := s.mustBeInRange(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	copy(res, s.data[address:address+length])

	return res, nil
}

// Write copies data into the storage starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	if err := s.mustBeInRange(address, uint64(len(data))); err != nil {
		return err
	}

	copy(s.data[address:], data)

	return nil
}

// ReadByteAt returns the byte at address.
func (s *Storage) ReadByteAt(address uint64) (byte, error) {
	if err := s.mustBeInRange(address, 1); err != nil {
		return 0, err
	}

	return s.data[address], nil
}

// WriteByteAt sets the byte at address.
func (s *Storage) WriteByteAt(address uint64, value byte) error {
	if err := s.mustBeInRange(address, 1); err != nil {
		return err
	}

	s.data[address] = value

	return nil
}

// ClearUnit zeroes the unit with the given index.
func (s *Storage) ClearUnit(index uint64) error {
	base := index * s.unitSize
	if err := s.mustBeInRange(base, s.unitSize); err != nil {
		return err
	}

	clear(s.data[base : base+s.unitSize])

	return nil
}
