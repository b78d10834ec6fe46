package reconcile

import (
	"atelier/pkg/models"
)

// Result is what one reconciliation pass derived from a fresh message list.
type Result struct {
	// Activated is true when this pass selected a new fragment. Repeated
	// passes over the same tail never re-activate.
	Activated bool
	// Fragment is the newly activated fragment when Activated is true.
	Fragment *models.Fragment
	// ActivatedMessageID identifies the assistant message owning Fragment.
	ActivatedMessageID string
	// InProgress is true iff the newest message is a user turn still
	// waiting for its terminal assistant reply.
	InProgress bool
}

// Reconciler decides, from a periodically refreshed message list, which
// fragment is active and whether a generation is in flight. State is one
// message ID; reconciliation is keyed by identifiers, not poll order, so a
// stale tick can never activate an older fragment than one already shown.
type Reconciler struct {
	lastActivatedMessageID string
}

// New returns a reconciler with no fragment selected.
func New() *Reconciler {
	return &Reconciler{}
}

// Apply runs one reconciliation pass over the full ordered message list.
func (r *Reconciler) Apply(msgs []models.Message) Result {
	res := Result{InProgress: InProgress(msgs)}

	// findLast: newest assistant message owning a fragment
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != models.RoleAssistant || m.Fragment == nil {
			continue
		}
		if m.ID != r.lastActivatedMessageID {
			r.lastActivatedMessageID = m.ID
			res.Activated = true
			res.Fragment = m.Fragment
			res.ActivatedMessageID = m.ID
		}
		break
	}
	return res
}

// LastActivatedMessageID exposes the selection state, mainly for tests and
// for persisting view state across reconnects.
func (r *Reconciler) LastActivatedMessageID() string {
	return r.lastActivatedMessageID
}

// InProgress reports whether the newest turn is still awaiting its
// assistant reply. Pure function of the tail element only.
func InProgress(msgs []models.Message) bool {
	if len(msgs) == 0 {
		return false
	}
	return msgs[len(msgs)-1].Role == models.RoleUser
}
