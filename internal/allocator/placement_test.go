package allocator

import "testing"

func TestExtendHeap_MergesWithTrailingFreeBlock(t *testing.T) {
	al := newTestAllocator(t)

	// Force initialize() without yet consuming the initial free block, so
	// extendHeap's growth has to merge with it rather than starting fresh.
	if err := al.initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	p, err := al.Alloc(1 << 20)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	b := blockFromPayload(p)
	if !check(b) {
		t.Fatal("block from a grown heap has inconsistent boundary tags")
	}

	// The grown block absorbed the initial free block, so it starts where
	// that block started.
	if first := al.port.Start() + 5*W; b != first {
		t.Errorf("block from a grown heap starts at %#x, want the initial block's header %#x", b, first)
	}
}

func TestExtendHeap_EpilogueAndEndAgree(t *testing.T) {
	al := newTestAllocator(t)

	if _, err := al.Alloc(1 << 21); err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	end := al.port.End()

	// The epilogue word sits at end-W and must read back as exactly 1
	// (size 0, allocated) after every heap growth.
	if got := readWord(end - W); got != 1 {
		t.Errorf("epilogue word = %#x, want 1", got)
	}
}

func TestExtendHeap_ReturnedBlockIsListResident(t *testing.T) {
	al := newTestAllocator(t)

	if err := al.initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// A request larger than the initial page forces extendHeap; findBlock
	// must hand back a block that is already a member of some free class,
	// since Alloc unconditionally removes it from one.
	b, err := al.findBlock(1 << 20)
	if err != nil {
		t.Fatalf("findBlock: %v", err)
	}

	k := classOf(size(b))
	found := false

	for n := al.fl.class[k].head; n != 0; n = blockNext(n) {
		if n == b {
			found = true

			break
		}
	}

	if !found {
		t.Fatalf("block %#x returned by findBlock is not in free class %d", b, k)
	}
}

func TestExtendHeap_MultipleGrowthsStayContiguous(t *testing.T) {
	al := newTestAllocator(t)

	var pointers []uintptr

	for i := 0; i < 20; i++ {
		p, err := al.Alloc(1 << 19)
		if err != nil {
			t.Fatalf("Alloc iteration %d: %v", i, err)
		}

		pointers = append(pointers, p)
	}

	for _, p := range pointers {
		if err := al.Free(p); err != nil {
			t.Fatalf("Free: %v", err)
		}
	}

	// After freeing everything, coalescing across every heap-growth
	// boundary should leave exactly one free block spanning (almost) the
	// whole heap.
	var total uintptr

	for k := 0; k < numClasses; k++ {
		for n := al.fl.class[k].head; n != 0; n = blockNext(n) {
			total++
		}
	}

	if total != 1 {
		t.Fatalf("free blocks after freeing everything = %d, want exactly 1", total)
	}
}
