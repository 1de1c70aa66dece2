// Package arena implements a fixed-capacity node store: a pre-reserved
// arena of NodeRecords addressed by 32-bit index, with atomic
// bump-pointer allocation of child slots and atomic in-flight accounting
// so concurrent descent is safe.
package arena

import (
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
)

// rootIndex is the node index reserved for the tree root. Index 0 is the
// sentinel meaning "no node": a child index is nonzero iff that child
// was expanded, and a transposition root index of 0 means unlinked.
const rootIndex uint32 = 1

// Arena is a fixed-capacity, never-reallocating store of NodeRecords.
// Indices stay valid for the lifetime of the Arena.
type Arena struct {
	nodes   []NodeRecord
	mmapped []byte // non-nil when the backing storage came from unix.Mmap
	next    atomic.Uint32
}

// New reserves an arena with room for capacity nodes (including the
// index-0 sentinel). If useHugePages is set, it first attempts to back
// the arena with a huge-page anonymous mapping and falls back to an
// ordinary mapping (and, failing that, a plain Go slice) on error.
func New(capacity uint32, useHugePages bool) (*Arena, error) {
	if capacity < 2 {
		return nil, errors.New("arena: capacity must allow at least the root node")
	}

	size := uintptr(capacity) * unsafe.Sizeof(NodeRecord{})
	a := &Arena{}

	if buf, err := reserve(size, useHugePages); err == nil {
		a.mmapped = buf
		a.nodes = unsafe.Slice((*NodeRecord)(unsafe.Pointer(&buf[0])), capacity)
	} else {
		klog.V(2).Infof("arena: falling back to heap allocation: %v", err)
		a.nodes = make([]NodeRecord, capacity)
	}

	a.next.Store(rootIndex)
	a.nodes[rootIndex].Reset(0)
	return a, nil
}

// reserve maps size bytes of anonymous, zero-filled memory. It requests
// huge pages first when asked to, retrying without them on failure -- the
// arena never fails to start just because huge pages are unavailable.
func reserve(size uintptr, useHugePages bool) ([]byte, error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANON
	if useHugePages {
		buf, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, flags|unix.MAP_HUGETLB)
		if err == nil {
			return buf, nil
		}
		klog.V(2).Infof("arena: huge-page mapping failed, retrying with ordinary pages: %v", err)
	}
	return unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, flags)
}

// Close releases the arena's backing memory, if it came from Mmap.
func (a *Arena) Close() error {
	if a.mmapped == nil {
		return nil
	}
	buf := a.mmapped
	a.mmapped = nil
	a.nodes = nil
	return unix.Munmap(buf)
}

// Root returns the index of the tree's root node.
func (a *Arena) Root() uint32 { return rootIndex }

// Capacity returns the maximum number of addressable nodes.
func (a *Arena) Capacity() uint32 { return uint32(len(a.nodes)) }

// Size returns the number of nodes allocated so far, root included.
func (a *Arena) Size() uint32 { return a.next.Load() }

// Get returns the node record at index. The returned pointer is stable
// for the arena's lifetime.
func (a *Arena) Get(index uint32) *NodeRecord {
	return &a.nodes[index]
}

// AllocateChildren atomically reserves k contiguous node slots as
// children of parent, returning the index of the first. Fails with
// ErrArenaExhausted when the arena has no room left.
func (a *Arena) AllocateChildren(parent uint32, k uint16) (uint32, error) {
	if k == 0 {
		return 0, nil
	}
	for {
		cur := a.next.Load()
		next := cur + uint32(k)
		if next > uint32(len(a.nodes)) {
			return 0, errors.WithStack(ErrArenaExhausted)
		}
		if a.next.CompareAndSwap(cur, next) {
			for i := uint32(0); i < uint32(k); i++ {
				a.nodes[cur+i].Reset(parent)
			}
			return cur, nil
		}
	}
}

// Exhausted reports whether the arena has no room for further allocation.
func (a *Arena) Exhausted() bool {
	return a.next.Load() >= uint32(len(a.nodes))
}

// Utilization returns the fraction of capacity consumed, in [0,1].
func (a *Arena) Utilization() float64 {
	return float64(a.Size()) / float64(a.Capacity())
}
