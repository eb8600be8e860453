package lens

import (
	"fmt"

	"github.com/zeusync/worldlens/ecs"
)

// refTable maps entities to small integer tokens for one session. On save,
// tokens are handed out in first-sight order, so identical world state
// serializes to identical tokens. On load, tokens bind to freshly spawned
// entities, and every reference slot is patched once the whole input has
// been decoded, which makes reference order irrelevant.
type refTable struct {
	tokens map[ecs.EntityID]uint64
	next   uint64
	bound  map[uint64]ecs.EntityID
	slots  []refSlot
}

// refSlot is a deferred patch: a pointer into component memory that will
// receive the entity a token binds to.
type refSlot struct {
	target *ecs.EntityID
	token  uint64
}

func newRefTable() *refTable {
	return &refTable{
		tokens: make(map[ecs.EntityID]uint64),
		bound:  make(map[uint64]ecs.EntityID),
	}
}

// tokenFor returns the token standing for id, assigning the next free one
// on first sight.
func (r *refTable) tokenFor(id ecs.EntityID) uint64 {
	if tok, ok := r.tokens[id]; ok {
		return tok
	}
	tok := r.next
	r.next++
	r.tokens[id] = tok
	return tok
}

// bind records the real entity a decoded token stands for. A token may be
// defined only once per session.
func (r *refTable) bind(tok uint64, id ecs.EntityID) error {
	if prev, ok := r.bound[tok]; ok && prev != id {
		return &Error{Err: ErrTokenReused, Detail: fmt.Sprintf("token %d", tok)}
	}
	r.bound[tok] = id
	return nil
}

// deferPatch queues target to be patched with the entity tok binds to.
func (r *refTable) deferPatch(target *ecs.EntityID, tok uint64) {
	r.slots = append(r.slots, refSlot{target: target, token: tok})
}

// resolve patches every queued slot. A token that was referenced but never
// bound by an identity field fails the whole load.
func (r *refTable) resolve() error {
	for _, s := range r.slots {
		id, ok := r.bound[s.token]
		if !ok {
			return &Error{Err: ErrUnresolvedReference, Detail: fmt.Sprintf("token %d", s.token)}
		}
		*s.target = id
	}
	r.slots = nil
	return nil
}
