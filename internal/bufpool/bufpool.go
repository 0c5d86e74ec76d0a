// Package bufpool hands out reusable, size-classed scratch buffers for
// pending-I/O contexts (spec §4.3.2 step 5: "a query key ... copied into an
// aligned buffer because the stack does not survive I/O"). Backed by an LRU
// so a burst of differently-sized pending reads doesn't grow the pool
// without bound.
package bufpool

import lru "github.com/hashicorp/golang-lru"

// sizeClasses buffers are rounded up to, keeping the LRU's key space small.
var sizeClasses = []int{64, 256, 1024, 4096, 16384}

func classFor(n int) int {
	for _, c := range sizeClasses {
		if n <= c {
			return c
		}
	}
	return n
}

// Pool buffers []byte scratch space keyed by size class. Each class holds
// its own free-list inside the LRU value so Get/Put never allocate once the
// pool has warmed up for that class.
type Pool struct {
	free *lru.Cache // size class (int) -> *freeList
}

type freeList struct {
	bufs [][]byte
}

func New(maxClasses int) *Pool {
	c, err := lru.New(maxClasses)
	if err != nil {
		// Only returns an error for a non-positive size, which we never pass.
		panic(err)
	}
	return &Pool{free: c}
}

// Get returns a buffer of at least n bytes, reused from the pool when one
// of the right size class is free.
func (p *Pool) Get(n int) []byte {
	class := classFor(n)
	if v, ok := p.free.Get(class); ok {
		fl := v.(*freeList)
		if len(fl.bufs) > 0 {
			buf := fl.bufs[len(fl.bufs)-1]
			fl.bufs = fl.bufs[:len(fl.bufs)-1]
			return buf[:n]
		}
	}
	return make([]byte, n, class)
}

// Put returns buf to the pool for reuse. buf's capacity determines its size
// class; callers must not touch buf after Put.
func (p *Pool) Put(buf []byte) {
	class := classFor(cap(buf))
	buf = buf[:0]
	if v, ok := p.free.Get(class); ok {
		fl := v.(*freeList)
		fl.bufs = append(fl.bufs, buf)
		return
	}
	p.free.Add(class, &freeList{bufs: [][]byte{buf}})
}
