package expense

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidID = errors.New("invalid expense id")

// ID is a generation-checked handle to a Record held by a Book. An ID never
// keeps its record alive: once the record is removed the slot's generation
// moves on and Get reports the ID as dead.
type ID struct {
	slot int
	gen  uint32
}

func (id ID) IsZero() bool { return id.gen == 0 }

// String renders the ID as "slot.generation".
func (id ID) String() string {
	return fmt.Sprintf("%d.%d", id.slot, id.gen)
}

// ParseID is the inverse of ID.String.
func ParseID(s string) (ID, error) {
	slotStr, genStr, ok := strings.Cut(s, ".")
	if !ok {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	slot, err := strconv.Atoi(slotStr)
	if err != nil || slot < 0 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	gen, err := strconv.ParseUint(genStr, 10, 32)
	if err != nil || gen == 0 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID{slot: slot, gen: uint32(gen)}, nil
}

type slot struct {
	gen    uint32
	record *Record
}

// Book owns committed records. It hands out IDs and keeps a logical clock
// that advances whenever a record is added, removed or mutated, so derived
// results can tell whether they are stale.
type Book struct {
	slots []slot
	free  []int
	order []ID
	clock uint64
}

func NewBook() *Book {
	return &Book{}
}

// Add stores r and returns its handle. From now on mutations of r advance
// the book's clock.
func (b *Book) Add(r *Record) ID {
	var idx int
	if n := len(b.free); n > 0 {
		idx = b.free[n-1]
		b.free = b.free[:n-1]
	} else {
		b.slots = append(b.slots, slot{})
		idx = len(b.slots) - 1
	}
	s := &b.slots[idx]
	s.gen++
	s.record = r
	r.clock = &b.clock

	id := ID{slot: idx, gen: s.gen}
	b.order = append(b.order, id)
	b.clock++
	return id
}

// Get returns the record behind id, or false when it has been removed.
func (b *Book) Get(id ID) (*Record, bool) {
	if id.slot < 0 || id.slot >= len(b.slots) {
		return nil, false
	}
	s := b.slots[id.slot]
	if s.gen != id.gen || s.record == nil {
		return nil, false
	}
	return s.record, true
}

// Alive reports whether id still refers to a record.
func (b *Book) Alive(id ID) bool {
	_, ok := b.Get(id)
	return ok
}

// Remove destroys the record behind id. It returns false when id was
// already dead.
func (b *Book) Remove(id ID) bool {
	r, ok := b.Get(id)
	if !ok {
		return false
	}
	r.clock = nil
	b.slots[id.slot].record = nil
	b.free = append(b.free, id.slot)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.clock++
	return true
}

// IDs returns the live handles in insertion order.
func (b *Book) IDs() []ID {
	out := make([]ID, len(b.order))
	copy(out, b.order)
	return out
}

// Last returns the most recently added live record.
func (b *Book) Last() (ID, *Record, bool) {
	if len(b.order) == 0 {
		return ID{}, nil, false
	}
	id := b.order[len(b.order)-1]
	r, _ := b.Get(id)
	return id, r, true
}

func (b *Book) Len() int { return len(b.order) }

// Version is the book's logical clock.
func (b *Book) Version() uint64 { return b.clock }
