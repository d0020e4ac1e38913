package vm

import "github.com/tsvm-lang/tsvm/pkg/ids"

// Closure is the VM's heap-allocated representation of an indirectly
// callable Value — spec.md §4.8: "a heap-allocated record (target function
// id, this-pointer, captured-data-pointer)". Unlike every other VM datum,
// closures are not flattened into the register file; `jalr` takes a pointer
// to one of these, read out of script memory via the Heap.
type Closure struct {
	Target  ids.FuncID
	This    uint64 // 0 when the target is not a method
	Capture uint64 // 0 when the target captures nothing
}

// Heap is the minimal allocator the VM needs for closures and non-primitive
// locals that escape their stack frame (spec.md's Value lifecycle: compile
// time Values are stack-lived, but the runtime objects they describe are
// not). It is intentionally just a map-backed bump allocator: the
// language's actual object model and garbage collection are out of this
// package's scope (module layout and the type registry own field offsets;
// this just needs stable addresses for closures to round-trip through the
// register file as u64).
type Heap struct {
	objects map[uint64]any
	next    uint64
}

// NewHeap creates an empty Heap. Addresses start above the stack's address
// space so a register holding an address can't be confused for one of the
// other.
func NewHeap(above uint64) *Heap {
	return &Heap{objects: make(map[uint64]any), next: above + 1}
}

// AllocClosure stores c and returns its heap address.
func (h *Heap) AllocClosure(c Closure) uint64 {
	addr := h.next
	h.next += 24 // FuncID + two pointers, 8 bytes each
	h.objects[addr] = c
	return addr
}

// Closure reads back a closure previously allocated at addr.
func (h *Heap) Closure(addr uint64) (Closure, bool) {
	c, ok := h.objects[addr].(Closure)
	return c, ok
}
