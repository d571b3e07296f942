//go:build linux || darwin
// +build linux darwin

package allocator

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/orizon-lang/segalloc/internal/errors"
)

// unixPort is the real OS-backed Port for linux/darwin. Go does not expose
// sbrk(2) portably, and repeated mmap(2) calls offer no contiguity
// guarantee between calls. This gets sbrk's contiguity back on top of mmap: reserve one large
// PROT_NONE region up front, then grow the usable prefix by mprotecting
// successive pages to PROT_READ|PROT_WRITE. End() only ever moves forward
// within that single reservation, so every Extend is contiguous by
// construction.
type unixPort struct {
	region   []byte
	start    uintptr
	end      uintptr
	pageSize uintptr
	reserved uintptr
}

// newUnixPort reserves `reserved` bytes of address space (unmapped for
// access until Extend grows into it) and queries the real OS page size.
func newUnixPort(reserved uintptr) (*unixPort, error) {
	pageSize := uintptr(unix.Getpagesize())

	region, err := unix.Mmap(-1, 0, int(reserved), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.PortSetupFailed(fmt.Sprintf("reserve %d bytes: %v", reserved, err))
	}

	return &unixPort{
		region:   region,
		pageSize: pageSize,
		reserved: reserved,
	}, nil
}

func (p *unixPort) Start() uintptr    { return p.start }
func (p *unixPort) End() uintptr      { return p.end }
func (p *unixPort) PageSize() uintptr { return p.pageSize }

func (p *unixPort) Extend(pages int) error {
	if pages < 1 {
		return fmt.Errorf("extend: pages must be >= 1, got %d", pages)
	}

	grow := uintptr(pages) * p.pageSize
	base := uintptrOf(&p.region[0])

	if p.start == 0 && p.end == 0 {
		if grow > p.reserved {
			return fmt.Errorf("extend: initial request exceeds reservation")
		}

		if err := unix.Mprotect(p.region[:grow], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return fmt.Errorf("allocator: mprotect: %w", err)
		}

		p.start = base
		p.end = base + grow

		return nil
	}

	used := p.end - base
	if used+grow > p.reserved {
		return fmt.Errorf("extend: reservation of %d bytes exhausted", p.reserved)
	}

	if err := unix.Mprotect(p.region[used:used+grow], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("allocator: mprotect: %w", err)
	}

	p.end += grow

	return nil
}

// Close releases the reserved address space. Pages are never returned to
// the OS during normal operation — this exists only for clean
// process-level teardown in tests and CLI commands that construct many
// short-lived allocators.
func (p *unixPort) Close() error {
	return unix.Munmap(p.region)
}
