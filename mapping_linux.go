/* SPDX-License-Identifier: BSD-2-Clause */

//go:build linux

package rangeseek

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"unsafe"

	uffd "github.com/ricardobranco777/go-userfaultfd"
	"golang.org/x/sys/unix"
)

// Mapping exposes a File as memory. Pages are filled on first access
// through the File, so they populate the same cache and counters as
// ordinary reads.
type Mapping struct {
	file     *File
	uffd     *uffd.Uffd
	addr     []byte
	size     int64
	pageSize int

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Ensure interface sanity
var _ io.Closer = (*Mapping)(nil)

// Map maps f into memory using userfaultfd. The mapping is read-only in
// spirit: writes to it are not propagated anywhere.
func Map(f *File) (*Mapping, error) {
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("rangeseek: cannot map %d bytes", size)
	}

	pageSize := unix.Getpagesize()
	length := (int(size) + pageSize - 1) &^ (pageSize - 1)

	addr, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("rangeseek: mmap: %w", err)
	}

	u, err := uffd.New(uffd.UFFD_USER_MODE_ONLY, 0)
	if err != nil {
		_ = unix.Munmap(addr)
		return nil, fmt.Errorf("rangeseek: userfaultfd: %w", err)
	}

	_, err = u.Register(
		uintptr(unsafe.Pointer(&addr[0])),
		length,
		uffd.UFFDIO_REGISTER_MODE_MISSING,
	)
	if err != nil {
		u.Close()
		_ = unix.Munmap(addr)
		return nil, fmt.Errorf("rangeseek: userfaultfd register: %w", err)
	}

	m := &Mapping{
		file:     f,
		uffd:     u,
		addr:     addr,
		size:     size,
		pageSize: pageSize,
		done:     make(chan struct{}),
	}
	go m.serve()

	return m, nil
}

// serve answers page faults until the mapping is closed.
func (m *Mapping) serve() {
	base := uintptr(unsafe.Pointer(&m.addr[0]))
	buf := make([]byte, m.pageSize)

	for {
		msg, err := m.uffd.ReadMsg()
		if err != nil {
			select {
			case <-m.done:
				return
			default:
				m.file.logger.Error("uffd read event", "error", err)
				continue
			}
		}
		if msg.Event != uffd.UFFD_EVENT_PAGEFAULT {
			m.file.logger.Debug("uffd unexpected event", "event", msg.Event)
			continue
		}

		fault := msg.GetPagefault()
		pageAddr := uintptr(fault.Address) &^ uintptr(m.pageSize-1)
		off := int64(pageAddr - base)

		clear(buf)
		// A failed read leaves the page zeroed; the faulting thread must be woken either way.
		if _, err := m.file.ReadAt(buf, off); err != nil && !errors.Is(err, io.EOF) {
			m.file.logger.Error("page fault read failed", "offset", off, "error", err)
		}
		if _, err := m.uffd.Copy(pageAddr, uintptr(unsafe.Pointer(&buf[0])), m.pageSize, 0); err != nil {
			m.file.logger.Error("uffd copy failed", "offset", off, "error", err)
		}
	}
}

// Bytes returns the mapped resource. Accessing it fetches pages lazily.
func (m *Mapping) Bytes() []byte {
	return m.addr[:m.size]
}

// Close unregisters the handler and unmaps memory. The File stays open.
func (m *Mapping) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.uffd.Close()
		m.closeErr = unix.Munmap(m.addr)
	})
	return m.closeErr
}
