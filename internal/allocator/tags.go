// Package allocator implements a segregated-free-list, boundary-tagged
// dynamic memory allocator over a contiguous heap obtained from a Port.
//
// The heap is a single contiguous byte range bounded by a prologue block at
// the low edge and an epilogue sentinel word at the high edge. Every block
// in between carries a header and a footer word (the "boundary tags") so
// that neighbors can be located in constant time without a side table.
package allocator

import "unsafe"

const (
	// W is the machine word size in bytes.
	W = 8
	// A is the alignment granularity: a word pair, 16 bytes on a 64-bit
	// target. Every block size is a multiple of A.
	A = 2 * W
	// magic is XORed into every header to produce its footer, both
	// encoding the size a second time (for reverse traversal) and giving
	// a cheap corruption check.
	magic uint64 = 0x1122334455667788
	// minBlockSize is the smallest size a block can have (payload bytes,
	// not counting its tag pair): room for the prev/next free-list
	// pointers that overlay the payload while the block is free.
	minBlockSize = A
)

// word reads/writes a uint64 at the given address. The allocator never
// round-trips these words through a byte-oriented codec: they are native
// machine words read directly out of the heap's backing memory.
func readWord(addr uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(addr)) //nolint:gosec
}

func writeWord(addr uintptr, v uint64) {
	*(*uint64)(unsafe.Pointer(addr)) = v //nolint:gosec
}

// header returns the address of block b's header word. By convention a
// "block" is always referred to by its header address.
func header(b uintptr) uintptr { return b }

// footer returns the address of block b's footer word, computed from the
// size encoded in its own header: header(W) + payload(size) puts the
// footer at b + W + size.
func footer(b uintptr) uintptr {
	return b + W + size(b)
}

// payload returns the address of block b's payload, immediately following
// the single header word. Because the heap's first user block header sits
// at an offset of W (mod A) from the page-aligned heap start (see the heap
// layout table), header+W lands back on an A-aligned address — this is what
// gives every returned payload pointer its A-byte alignment.
func payload(b uintptr) uintptr { return b + W }

// blockFromPayload recovers a block's header address from a payload pointer
// previously returned by Alloc.
func blockFromPayload(p uintptr) uintptr { return p - W }

// size decodes the block size from its header, masking off the allocated
// bit (size is always a multiple of A, so its low bits are free to use).
func size(b uintptr) uintptr {
	return uintptr(readWord(header(b)) &^ (A - 1))
}

// allocated reports whether block b's allocated bit is set.
func allocated(b uintptr) bool {
	return readWord(header(b))&1 == 1
}

// writeTags writes a consistent header/footer pair for block b: all other
// code must route writes through this function so the two tags never
// diverge.
func writeTags(b uintptr, sz uintptr, alloc bool) {
	h := uint64(sz)
	if alloc {
		h |= 1
	}

	writeWord(header(b), h)
	writeWord(b+2*W+sz-W, h^magic)
}

// check verifies block b's boundary tags agree: footer == header XOR magic.
// It returns false on any mismatch, which the caller must treat as
// HeapCorruption and must not continue following pointers derived from b.
func check(b uintptr) bool {
	h := readWord(header(b))
	f := readWord(footer(b))

	return f^magic == h
}

// aligned rounds s up to the next multiple of A.
func aligned(s uintptr) uintptr {
	return (s + A - 1) &^ (A - 1)
}

// bytesAt views n bytes starting at addr as a Go byte slice, for zeroing
// and copying payload regions.
func bytesAt(addr uintptr, n uintptr) []byte {
	if n == 0 {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n) //nolint:gosec
}
