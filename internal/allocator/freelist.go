package allocator

// numClasses is the number of segregated size classes.
const numClasses = 10

// classBounds[k] is the inclusive upper bound, in header-encoded size bytes,
// of class k. Class numClasses-1 has no upper bound.
var classBounds = [numClasses]uintptr{
	512,
	1 * 1024 * 1024,
	2 * 1024 * 1024,
	4 * 1024 * 1024,
	8 * 1024 * 1024,
	16 * 1024 * 1024,
	32 * 1024 * 1024,
	64 * 1024 * 1024,
	128 * 1024 * 1024,
	^uintptr(0),
}

// freeList is one size class's doubly-linked list of free blocks. The head
// is the only entry point, and prev/next pointers are stored inside each
// free block's
// payload region (the first two words, since a free block is never read as
// payload).
type freeList struct {
	head uintptr // 0 means empty; block addresses are never 0 in practice
}

// freeLists holds all ten segregated classes.
type freeLists struct {
	class [numClasses]freeList
}

func blockNext(b uintptr) uintptr { return uintptr(readWord(payload(b))) }
func blockPrev(b uintptr) uintptr { return uintptr(readWord(payload(b) + W)) }

func setBlockNext(b, v uintptr) { writeWord(payload(b), uint64(v)) }
func setBlockPrev(b, v uintptr) { writeWord(payload(b)+W, uint64(v)) }

// classOf returns the smallest class whose upper bound is >= sz.
func classOf(sz uintptr) int {
	for k := 0; k < numClasses; k++ {
		if sz <= classBounds[k] {
			return k
		}
	}

	return numClasses - 1
}

// searchClass returns the smallest non-empty class at or above classOf(sz),
// or numClasses if every class from there up is empty.
func (fl *freeLists) searchClass(sz uintptr) int {
	for k := classOf(sz); k < numClasses; k++ {
		if fl.class[k].head != 0 {
			return k
		}
	}

	return numClasses
}

// insert places b into its size class following the per-class ordering
// policy: LIFO for class 0 (fast small-block churn), ascending-sorted
// insertion for classes 1-9 (so first-fit equals best-fit).
func (fl *freeLists) insert(b uintptr) {
	k := classOf(size(b))
	cl := &fl.class[k]

	if k == 0 {
		setBlockNext(b, cl.head)
		setBlockPrev(b, 0) // explicit: the new head has no predecessor
		if cl.head != 0 {
			setBlockPrev(cl.head, b)
		}

		cl.head = b

		return
	}

	sz := size(b)

	if cl.head == 0 {
		setBlockNext(b, 0)
		setBlockPrev(b, 0)
		cl.head = b

		return
	}

	// Forward scan for the first node with size >= sz; insert before it.
	var prev uintptr

	n := cl.head
	for n != 0 && size(n) < sz {
		prev = n
		n = blockNext(n)
	}

	setBlockPrev(b, prev)
	setBlockNext(b, n)

	if n != 0 {
		setBlockPrev(n, b)
	}

	if prev != 0 {
		setBlockNext(prev, b)
	} else {
		cl.head = b
	}
}

// remove unlinks b from its size class. b must currently be a member of
// exactly one class.
func (fl *freeLists) remove(b uintptr) {
	k := classOf(size(b))
	cl := &fl.class[k]

	prev := blockPrev(b)
	next := blockNext(b)

	if prev != 0 {
		setBlockNext(prev, next)
	} else {
		cl.head = next
	}

	if next != 0 {
		setBlockPrev(next, prev)
	}

	setBlockPrev(b, 0)
	setBlockNext(b, 0)
}
