package allocator

import (
	"testing"
	"unsafe"
)

// syntheticBlocks carves n independent, widely-spaced block headers out of
// a single real backing array, so free-list tests can write boundary tags
// at addressable memory without going through a full Allocator.
func syntheticBlocks(t *testing.T, n int, gap uintptr) []uintptr {
	t.Helper()

	backing := make([]byte, uintptr(n)*gap+gap)
	base := uintptr(unsafe.Pointer(&backing[0])) //nolint:gosec

	addrs := make([]uintptr, n)
	for i := range addrs {
		addrs[i] = base + uintptr(i)*gap
	}

	return addrs
}

func TestClassOf_Boundaries(t *testing.T) {
	cases := []struct {
		sz    uintptr
		class int
	}{
		{1, 0},
		{512, 0},
		{513, 1},
		{1 * 1024 * 1024, 1},
		{1*1024*1024 + 1, 2},
		{128 * 1024 * 1024, 8},
		{128*1024*1024 + 1, 9},
		{^uintptr(0), 9},
	}

	for _, c := range cases {
		if got := classOf(c.sz); got != c.class {
			t.Errorf("classOf(%d) = %d, want %d", c.sz, got, c.class)
		}
	}
}

func TestFreeLists_InsertRemove_SingleBlock(t *testing.T) {
	al := newTestAllocator(t)

	p, err := al.Alloc(64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	b := blockFromPayload(p)

	if err := al.Free(p); err != nil {
		t.Fatalf("Free: %v", err)
	}

	k := classOf(size(b))
	if al.fl.class[k].head == 0 {
		t.Fatalf("class %d is empty after Free, expected the freed block", k)
	}
}

func TestFreeLists_Class0_LIFOOrder(t *testing.T) {
	var fl freeLists

	addrs := syntheticBlocks(t, 3, A+2*W)
	b1, b2, b3 := addrs[0], addrs[1], addrs[2]

	for _, b := range []uintptr{b1, b2, b3} {
		writeTags(b, A, false)
	}

	fl.insert(b1)
	fl.insert(b2)
	fl.insert(b3)

	// LIFO: most recently inserted comes off first.
	head := fl.class[0].head
	if head != b3 {
		t.Fatalf("class 0 head = %#x, want most-recently-inserted %#x", head, b3)
	}

	if blockPrev(head) != 0 {
		t.Errorf("head's prev = %#x, want 0", blockPrev(head))
	}

	fl.remove(b3)

	if fl.class[0].head != b2 {
		t.Fatalf("after removing b3, head = %#x, want %#x", fl.class[0].head, b2)
	}

	if blockPrev(fl.class[0].head) != 0 {
		t.Errorf("new head's prev = %#x, want 0", blockPrev(fl.class[0].head))
	}
}

func TestFreeLists_SortedClass_AscendingOrder(t *testing.T) {
	var fl freeLists

	sizes := []uintptr{4096, 1024, 2048, 608}
	addrs := syntheticBlocks(t, len(sizes), 8192)

	for i, sz := range sizes {
		writeTags(addrs[i], sz, false)
		fl.insert(addrs[i])
	}

	// All four sizes fall in class 1 (513 .. 1MiB); verify ascending order.
	n := fl.class[1].head

	var got []uintptr

	for n != 0 {
		got = append(got, size(n))
		n = blockNext(n)
	}

	want := []uintptr{608, 1024, 2048, 4096}

	if len(got) != len(want) {
		t.Fatalf("class 1 has %d entries, want %d", len(got), len(want))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: size = %d, want %d (full order %v)", i, got[i], want[i], got)
		}
	}
}
