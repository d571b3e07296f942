package allocator

// splitIfNeeded turns a free block b of its current size S into an
// allocated block of size s, splitting off a new free block covering the
// remainder when there's room for one.
//
// b must already be removed from its free list; splitIfNeeded inserts the
// split-off remainder, if any, into fl itself.
func splitIfNeeded(fl *freeLists, b uintptr, s uintptr) {
	total := size(b)
	leftover := total - s

	if leftover >= A+2*W {
		writeTags(b, s, true)

		r := b + 2*W + s
		writeTags(r, leftover-2*W, false)
		fl.insert(r)

		return
	}

	// Not enough room for a standalone remainder block: the slack stays
	// as internal fragmentation inside b, which keeps its original size.
	writeTags(b, total, true)
}

// coalesce attempts to merge a freshly-freed block b with its immediate
// free neighbors on both sides, repeatedly on each side until it hits an
// allocated neighbor or the heap edge (prologue/epilogue). b must already
// have allocated=0 and refreshed tags. It returns the header address of
// the (possibly grown) merged block, already removed from any free list it
// was never in, with its neighbors' free-list entries removed. The caller
// is responsible for inserting the result into its class.
//
// A tag mismatch on either side halts that side and is reported as
// corruption, terminal for the whole heap: the caller must not continue
// using the allocator afterward.
func coalesce(fl *freeLists, b uintptr) (uintptr, error) {
	for {
		merged := false

		if left, ok, err := tryMergeLeft(fl, b); err != nil {
			return 0, err
		} else if ok {
			b = left
			merged = true
		}

		if right, ok, err := tryMergeRight(fl, b); err != nil {
			return 0, err
		} else if ok {
			b = right
			merged = true
		}

		if !merged {
			return b, nil
		}
	}
}

// tryMergeLeft inspects the word immediately preceding b's header as a
// candidate footer. If it decodes to a free block whose own header agrees,
// the left neighbor is absorbed into b and the new merged header address is
// returned.
func tryMergeLeft(fl *freeLists, b uintptr) (uintptr, bool, error) {
	candFooterAddr := b - W
	candFooterVal := readWord(candFooterAddr)
	decoded := candFooterVal ^ magic

	if decoded&1 == 1 {
		// Allocated neighbor, or the prologue footer (which decodes to
		// (2W|1) with its allocated bit set) — halt here.
		return 0, false, nil
	}

	leftSize := uintptr(decoded &^ (A - 1))
	predHeader := b - 2*W - leftSize

	if readWord(predHeader) != decoded {
		return 0, false, ErrHeapCorruption.withContext("side", "left")
	}

	fl.remove(predHeader)

	newSize := leftSize + 2*W + size(b)
	writeTags(predHeader, newSize, false)

	return predHeader, true, nil
}

// tryMergeRight is the mirror of tryMergeLeft: it inspects the word right
// after b's footer as a candidate header for the right neighbor.
func tryMergeRight(fl *freeLists, b uintptr) (uintptr, bool, error) {
	candHeaderAddr := footer(b) + W
	candHeaderVal := readWord(candHeaderAddr)

	if candHeaderVal&1 == 1 {
		// Allocated neighbor, or the epilogue word (value 1) — halt.
		return 0, false, nil
	}

	rightSize := uintptr(candHeaderVal &^ (A - 1))
	rightFooterAddr := candHeaderAddr + W + rightSize

	if readWord(rightFooterAddr)^magic != candHeaderVal {
		return 0, false, ErrHeapCorruption.withContext("side", "right")
	}

	fl.remove(candHeaderAddr)

	newSize := size(b) + 2*W + rightSize
	writeTags(b, newSize, false)

	return b, true, nil
}
