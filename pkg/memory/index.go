package memory

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

const (
	DefaultPageSize = 4096
	// MaxObjectPages bounds the number of page buckets one object is
	// linked into.
	MaxObjectPages = 1 << 20
)

// Index maps addresses to the live objects covering them. Objects are
// bucketed by page; an object spanning several pages is linked into every
// bucket it touches. Buckets are kept sorted by base address.
type Index struct {
	pageSize uint64
	mask     uint64
	pages    map[uint64][]*Object
	live     int
}

func NewIndex(pageSize uint64) (*Index, error) {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return nil, errors.Wrapf(ErrInvalidPageSize, "%d", pageSize)
	}

	return &Index{
		pageSize: pageSize,
		mask:     ^(pageSize - 1),
		pages:    make(map[uint64][]*Object),
	}, nil
}

func (x *Index) PageSize() uint64 {
	return x.pageSize
}

// Len returns the number of live objects.
func (x *Index) Len() int {
	return x.live
}

// Pages returns the number of non-empty page buckets.
func (x *Index) Pages() int {
	return len(x.pages)
}

// forPages calls f with every page touched by [base, last].
func (x *Index) forPages(base, last uint64, f func(page uint64)) {
	first, end := base&x.mask, last&x.mask
	for p := first; ; p += x.pageSize {
		f(p)
		if p == end {
			return
		}
	}
}

// Check reports whether [base, base+size) can be indexed: the range must
// not wrap around the address space and must span at most MaxObjectPages
// pages.
func (x *Index) Check(base, size uint64) error {
	if size > 0 && size-1 > math.MaxUint64-base {
		return errors.Wrapf(ErrRangeOverflow, "%#x+%d", base, size)
	}
	o := Object{Base: base, Size: size}
	if pages := (o.last()&x.mask-base&x.mask)/x.pageSize + 1; pages > MaxObjectPages {
		return errors.Wrapf(ErrObjectTooLarge, "%d bytes span %d pages", size, pages)
	}
	return nil
}

// Gap shrinks the checked range [base, base+size) to the part around addr
// that no live object covers. addr must not be covered by a live object.
func (x *Index) Gap(addr, base, size uint64) (uint64, uint64) {
	o := Object{Base: base, Size: size}
	lo, last := base, o.last()
	for _, other := range x.overlapping(lo, last) {
		if other.Base > addr {
			last = min(last, other.Base-1)
			continue
		}
		lo = max(lo, other.last()+1)
	}

	return lo, last - lo + 1
}

// Insert indexes a new object and returns it together with the live objects
// it displaced. Displaced objects are no longer indexed.
func (x *Index) Insert(base, size uint64) (*Object, []*Object) {
	o := newObject(base, size)
	return o, x.InsertObject(o)
}

// InsertObject indexes o at its current range, unlinking any live object
// overlapping it. The displaced objects are returned. The range must pass
// Check.
func (x *Index) InsertObject(o *Object) []*Object {
	displaced := x.overlapping(o.Base, o.last())
	for _, d := range displaced {
		x.unlink(d)
	}
	x.link(o)

	return displaced
}

// Find returns the live object covering addr, if any.
func (x *Index) Find(addr uint64) *Object {
	bucket := x.pages[addr&x.mask]
	// Live objects never overlap, so only the closest object starting at
	// or before addr can contain it.
	i := sort.Search(len(bucket), func(i int) bool {
		return bucket[i].Base > addr
	}) - 1
	if i < 0 || !bucket[i].Contains(addr) {
		return nil
	}
	return bucket[i]
}

// Remove unlinks the live object covering addr and returns it. Removing an
// untracked address returns nil.
func (x *Index) Remove(addr uint64) *Object {
	o := x.Find(addr)
	if o == nil {
		return nil
	}
	x.unlink(o)

	return o
}

// Objects returns the live objects ordered by base address.
func (x *Index) Objects() []*Object {
	seen := make(map[*Object]struct{}, x.live)
	out := make([]*Object, 0, x.live)
	for _, bucket := range x.pages {
		for _, o := range bucket {
			if _, ok := seen[o]; ok {
				continue
			}
			seen[o] = struct{}{}
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Base < out[j].Base
	})

	return out
}

func (x *Index) link(o *Object) {
	x.forPages(o.Base, o.last(), func(page uint64) {
		bucket := x.pages[page]
		i := sort.Search(len(bucket), func(i int) bool {
			return bucket[i].Base >= o.Base
		})
		bucket = append(bucket, nil)
		copy(bucket[i+1:], bucket[i:])
		bucket[i] = o
		x.pages[page] = bucket
	})
	o.state = stateLive
	x.live++
}

func (x *Index) unlink(o *Object) {
	x.forPages(o.Base, o.last(), func(page uint64) {
		bucket := x.pages[page]
		i := sort.Search(len(bucket), func(i int) bool {
			return bucket[i].Base >= o.Base
		})
		for ; i < len(bucket) && bucket[i].Base == o.Base; i++ {
			if bucket[i] != o {
				continue
			}
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
		if len(bucket) == 0 {
			delete(x.pages, page)
			return
		}
		x.pages[page] = bucket
	})
	x.live--
}

func (x *Index) overlapping(base, last uint64) []*Object {
	var out []*Object
	seen := make(map[*Object]struct{})
	x.forPages(base, last, func(page uint64) {
		for _, o := range x.pages[page] {
			if o.Base > last {
				break
			}
			if _, ok := seen[o]; ok || !o.overlaps(base, last) {
				continue
			}
			seen[o] = struct{}{}
			out = append(out, o)
		}
	})

	return out
}
