package memory

// Retired holds freed objects, in retirement order, until they are
// reported.
type Retired struct {
	objs []*Object
}

func (r *Retired) add(o *Object) {
	o.state = stateRetired
	r.objs = append(r.objs, o)
}

func (r *Retired) Len() int {
	return len(r.objs)
}

// Objects returns the retired objects in retirement order.
func (r *Retired) Objects() []*Object {
	out := make([]*Object, len(r.objs))
	copy(out, r.objs)

	return out
}

// Compact drops objects whose access table has been released and returns
// how many were dropped.
func (r *Retired) Compact() int {
	kept := r.objs[:0]
	for _, o := range r.objs {
		if !o.Released() {
			kept = append(kept, o)
		}
	}
	dropped := len(r.objs) - len(kept)
	for i := len(kept); i < len(r.objs); i++ {
		r.objs[i] = nil
	}
	r.objs = kept

	return dropped
}
