package campaign

import "slices"

// registry is the insertion-ordered set of authorized verifiers.
type registry struct {
	members map[string]struct{}
	order   []string
}

func newRegistry() *registry {
	return &registry{members: make(map[string]struct{})}
}

func (r *registry) add(handle string) bool {
	if _, ok := r.members[handle]; ok {
		return false
	}
	r.members[handle] = struct{}{}
	r.order = append(r.order, handle)
	return true
}

func (r *registry) remove(handle string) bool {
	if _, ok := r.members[handle]; !ok {
		return false
	}
	delete(r.members, handle)
	r.order = slices.DeleteFunc(r.order, func(h string) bool { return h == handle })
	return true
}

func (r *registry) contains(handle string) bool {
	_, ok := r.members[handle]
	return ok
}

func (r *registry) len() int {
	return len(r.order)
}

func (r *registry) list() []string {
	return slices.Clone(r.order)
}
