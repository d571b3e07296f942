package allocator

// findBlock is the placement engine: search the target size class and
// every larger class before growing the heap, and grow by exactly the
// number of pages the miss requires.
func (al *Allocator) findBlock(s uintptr) (uintptr, error) {
	k0 := al.fl.searchClass(s)

	for k := k0; k < numClasses; k++ {
		n := al.fl.class[k].head
		for n != 0 {
			if !check(n) {
				return 0, ErrHeapCorruption.withContext("class", k)
			}

			if size(n) >= s {
				return n, nil
			}

			n = blockNext(n)
		}
	}

	return al.extendHeap(s)
}

// extendHeap grows the heap by enough pages to cover s, rewrites the
// boundary tags at the heap edges to keep the prologue/epilogue sentinels
// intact, and returns the new free block it created, already coalesced
// with any free block that was sitting at the old tail and inserted into
// its class.
func (al *Allocator) extendHeap(s uintptr) (uintptr, error) {
	pageSize := al.port.PageSize()
	pages := pagesFor(s, pageSize)

	oldEnd := al.port.End()

	// The new block loses 2W to its own tags. Unless a free tail block is
	// there to merge with and make up the difference, one more page is
	// needed for the block to cover s.
	avail := uintptr(pages)*pageSize - 2*W
	if tail := readWord(oldEnd-2*W) ^ magic; tail&1 == 0 {
		avail += uintptr(tail&^(A-1)) + 2*W
	}

	if avail < s {
		pages++
	}

	if err := al.port.Extend(pages); err != nil {
		return 0, ErrOutOfMemory.withContext("pages", pages)
	}

	newEnd := al.port.End()
	start := al.port.Start()

	// The old epilogue word becomes the header of the new free block.
	newBlock := oldEnd - W
	newBlockSize := (newEnd - W) - newBlock - 2*W
	writeTags(newBlock, newBlockSize, false)

	// Rewrite the epilogue at the new upper edge.
	writeWord(newEnd-W, 1)

	// Rewrite the prologue header to encode the new total extent.
	writeWord(start+W, uint64((newEnd-start)|1))

	// The block we just created may be adjacent to a free block that was
	// sitting at the old tail; coalesce before handing it back so callers
	// never have to special-case a pre-merged neighbor. newBlock is not in
	// any free list yet, so coalesce only needs to absorb its left
	// neighbor (there is nothing to its right but the fresh epilogue).
	merged, err := coalesce(&al.fl, newBlock)
	if err != nil {
		return 0, err
	}

	// Insert into its class so findBlock's contract — a returned block is
	// always still a member of exactly one free list, for the caller to
	// remove — holds the same way whether the block came from a list scan
	// or from growing the heap.
	al.fl.insert(merged)

	return merged, nil
}
