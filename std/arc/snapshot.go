package arc

import (
	"slices"
)

// Edge is a reference stored inside a payload.
type Edge struct {
	// Field is the path of the handle inside the payload, e.g. "Room",
	// "Tenants[2]" or "Desks[left].Lamp".
	Field string
	Kind  RefKind
	To    ID
}

// ObjectInfo describes one registered object.
type ObjectInfo struct {
	ID     ID
	Label  string
	State  State
	Strong int32
	Weak   int32
	// Edges is only filled for live objects.
	Edges []Edge
}

// Lookup describes the object registered under id.
// Reclaimed and unknown ids report false.
func (r *Registry) Lookup(id ID) (info ObjectInfo, ok bool) {
	o := r.lookup(id)
	if o == nil {
		return info, false
	}
	return r.describe(o), true
}

// Snapshot describes every registered object, ordered by id.
// Payloads are inspected without being retained, so a snapshot of a
// synchronized registry is only consistent while no handles change.
func (r *Registry) Snapshot() []ObjectInfo {
	r.table.RLock()
	objs := make([]*object, 0, len(r.objects))
	for _, o := range r.objects {
		objs = append(objs, o)
	}
	r.table.RUnlock()

	slices.SortFunc(objs, func(a, b *object) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})

	infos := make([]ObjectInfo, 0, len(objs))
	for _, o := range objs {
		infos = append(infos, r.describe(o))
	}
	return infos
}

func (r *Registry) describe(o *object) ObjectInfo {
	r.counts.lock(o.id)
	info := ObjectInfo{
		ID:     o.id,
		Label:  o.label,
		State:  o.state,
		Strong: o.strong,
		Weak:   o.weak,
	}
	value := o.value
	live := o.state == StateLive
	r.counts.unlock(o.id)

	if live {
		walkMembers(value, true, func(path string, m member) {
			m.memberRefs(func(kind RefKind, to ID) {
				info.Edges = append(info.Edges, Edge{Field: path, Kind: kind, To: to})
			})
		})
	}
	return info
}

// Live returns the ids of all live objects, ordered by id.
func (r *Registry) Live() []ID {
	var ids []ID
	for _, info := range r.Snapshot() {
		if info.State == StateLive {
			ids = append(ids, info.ID)
		}
	}
	return ids
}
