package allocator

import "sync"

// defaultReservation bounds how far the default simulated Port will let the
// heap grow before reporting OutOfMemory; see port_sim.go.
const defaultReservation = 1 << 32 // 4 GiB of virtual reservation

// Config tunes an Allocator instance. The zero Config works (one initial
// page, the default CorruptionFn) but leaves ZeroOnAlloc off; construct one
// with DefaultConfig() and override fields as needed.
type Config struct {
	// InitialPages is how many pages initialize() requests on first use.
	InitialPages int
	// ZeroOnAlloc zero-fills every payload inside Alloc, not just Calloc.
	// Default true; set false for a faster allocator that only zeroes on
	// Calloc.
	ZeroOnAlloc bool
	// CorruptionFn is invoked out of band whenever HeapCorruption is
	// detected. Defaults to logging via log/slog.
	CorruptionFn CorruptionFn
}

// DefaultConfig returns the allocator's baseline configuration.
func DefaultConfig() Config {
	return Config{
		InitialPages: 1,
		ZeroOnAlloc:  true,
		CorruptionFn: defaultCorruptionFn,
	}
}

// Allocator is an independently constructible heap: the segregated free
// lists, the port it grows through, and the lazy-initialization state.
// Each instance owns its own heap, so tests and embedders can construct
// isolated instances instead of sharing one global.
type Allocator struct {
	port        Port
	fl          freeLists
	cfg         Config
	initialized bool
	corrupted   bool
}

// New constructs an Allocator backed by the default simulated Port. Use
// NewWithPort to supply a real OS-backed Port (see port_unix.go) or a test
// double.
func New(cfg Config) *Allocator {
	return NewWithPort(cfg, newSimPort(4096, defaultReservation))
}

// NewWithPort constructs an Allocator over a caller-supplied Port.
func NewWithPort(cfg Config, port Port) *Allocator {
	if cfg.CorruptionFn == nil {
		cfg.CorruptionFn = defaultCorruptionFn
	}

	return &Allocator{port: port, cfg: cfg}
}

// initialize installs the prologue block, epilogue sentinel, and initial
// free block on first use. It sizes the initial free block from whatever
// extent Port.Extend actually returned, never from a nominal page-size
// constant, since a port may legitimately over-allocate on the first call.
func (al *Allocator) initialize() error {
	if al.initialized {
		return nil
	}

	pages := al.cfg.InitialPages
	if pages < 1 {
		pages = 1
	}

	if err := al.port.Extend(pages); err != nil {
		return ErrOutOfMemory.withContext("phase", "initialize")
	}

	start := al.port.Start()
	end := al.port.End()

	// Padding word, then prologue header/body/footer.
	writeWord(start, 0)
	writeTags(start+W, 2*W, true)

	// Epilogue sentinel at the very top.
	writeWord(end-W, 1)

	// The first user block covers everything between the prologue's
	// footer and the epilogue, sized from the real extent.
	firstBlock := start + 5*W
	firstSize := (end - W) - firstBlock - 2*W
	writeTags(firstBlock, firstSize, false)

	al.fl.insert(firstBlock)
	al.initialized = true

	return nil
}

func (al *Allocator) fail(err error) error {
	if isCorruption(err) {
		al.corrupted = true
		al.cfg.CorruptionFn(err)
	}

	return err
}

func isCorruption(err error) bool {
	ae, ok := err.(*AllocError)

	return ok && ae.Code == ErrHeapCorruption.Code
}

// Alloc services an allocation request of n bytes. It returns a payload
// address A-aligned and at least max(A, aligned(n)) bytes long, or an
// error.
func (al *Allocator) Alloc(n uintptr) (uintptr, error) {
	if al.corrupted {
		return 0, ErrHeapCorruption.withContext("reason", "allocator already corrupted")
	}

	if !al.initialized {
		if err := al.initialize(); err != nil {
			return 0, al.fail(err)
		}
	}

	s := aligned(n)
	if s < A {
		s = A
	}

	b, err := al.findBlock(s)
	if err != nil {
		return 0, al.fail(err)
	}

	if !check(b) {
		return 0, al.fail(ErrHeapCorruption.withContext("phase", "pre-alloc check"))
	}

	al.fl.remove(b)
	splitIfNeeded(&al.fl, b, s)

	p := payload(b)

	if al.cfg.ZeroOnAlloc {
		// Zeroes the whole post-split block (size(b)), not just the
		// requested s: when splitIfNeeded leaves the block unsplit, size(b)
		// is the original larger free block's size. Deliberate — the extra
		// bytes are still entirely inside this block's own payload, never
		// past the footer, and zeroing the full block means a caller who
		// later learns the block's real usable size (not just what it
		// asked for) still sees zeroed memory rather than free-list leftover.
		zero(p, size(b))
	}

	return p, nil
}

// Free releases a payload address previously returned by Alloc.
func (al *Allocator) Free(p uintptr) error {
	if al.corrupted {
		return ErrHeapCorruption.withContext("reason", "allocator already corrupted")
	}

	if p == 0 {
		return ErrInvalidPointer
	}

	b := blockFromPayload(p)
	if b < al.port.Start() || b >= al.port.End() {
		return ErrInvalidPointer
	}

	if !allocated(b) {
		return ErrDoubleFree
	}

	if !check(b) {
		return al.fail(ErrHeapCorruption.withContext("phase", "pre-free check"))
	}

	writeTags(b, size(b), false)

	merged, err := coalesce(&al.fl, b)
	if err != nil {
		return al.fail(err)
	}

	al.fl.insert(merged)

	return nil
}

// Calloc allocates space for n elements of esz bytes each, zero-filled:
// by Alloc when ZeroOnAlloc is set, otherwise here.
func (al *Allocator) Calloc(n, esz uintptr) (uintptr, error) {
	if n == 0 || esz == 0 {
		return al.Alloc(0)
	}

	if esz > ^uintptr(0)/n {
		return 0, ErrOverflowInCalloc
	}

	p, err := al.Alloc(n * esz)
	if err != nil {
		return 0, err
	}

	if !al.cfg.ZeroOnAlloc {
		zero(p, n*esz)
	}

	return p, nil
}

// Realloc allocates a new block of size s, copies min(oldSize, s) bytes
// from p, frees p, and returns the new payload address. Copying min, not
// max, of the two sizes matters when growing: copying past oldSize would
// read uninitialized or out-of-block memory.
func (al *Allocator) Realloc(p uintptr, s uintptr) (uintptr, error) {
	if p == 0 {
		return al.Alloc(s)
	}

	oldBlock := blockFromPayload(p)
	if oldBlock < al.port.Start() || oldBlock >= al.port.End() {
		return 0, ErrInvalidPointer
	}

	if !check(oldBlock) {
		return 0, al.fail(ErrHeapCorruption.withContext("phase", "pre-realloc check"))
	}

	oldSize := size(oldBlock)

	q, err := al.Alloc(s)
	if err != nil {
		return 0, err
	}

	copyLen := oldSize
	if s < copyLen {
		copyLen = s
	}

	copyMem(q, p, copyLen)

	if err := al.Free(p); err != nil {
		_ = al.Free(q)

		return 0, err
	}

	return q, nil
}

// Stats describes point-in-time allocator state for diagnostics/CLI use.
type Stats struct {
	HeapStart uintptr
	HeapEnd   uintptr
	Corrupted bool
}

// Stats returns a snapshot of the allocator's heap extent and health.
func (al *Allocator) Stats() Stats {
	return Stats{
		HeapStart: al.port.Start(),
		HeapEnd:   al.port.End(),
		Corrupted: al.corrupted,
	}
}

// Bytes views n bytes starting at a payload address as a Go byte slice,
// for callers (CLI commands, tests) that need to read or write through a
// pointer Alloc/Realloc returned.
func (al *Allocator) Bytes(addr uintptr, n uintptr) []byte {
	return bytesAt(addr, n)
}

// zero clears n bytes starting at addr.
func zero(addr uintptr, n uintptr) {
	b := bytesAt(addr, n)
	for i := range b {
		b[i] = 0
	}
}

// copyMem copies n bytes from src to dst, both payload addresses.
func copyMem(dst, src uintptr, n uintptr) {
	copy(bytesAt(dst, n), bytesAt(src, n))
}

// SafeAllocator wraps an Allocator with a single coarse mutex around every
// public entry point. The core itself assumes a single-threaded caller;
// this is the only thread-safety scheme offered, and it is off by
// default — construct one explicitly when multiple goroutines must share
// one Allocator.
type SafeAllocator struct {
	mu sync.Mutex
	al *Allocator
}

// NewSafe wraps al for concurrent use.
func NewSafe(al *Allocator) *SafeAllocator {
	return &SafeAllocator{al: al}
}

func (s *SafeAllocator) Alloc(n uintptr) (uintptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.al.Alloc(n)
}

func (s *SafeAllocator) Free(p uintptr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.al.Free(p)
}

func (s *SafeAllocator) Calloc(n, esz uintptr) (uintptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.al.Calloc(n, esz)
}

func (s *SafeAllocator) Realloc(p uintptr, sz uintptr) (uintptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.al.Realloc(p, sz)
}

func (s *SafeAllocator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.al.Stats()
}
