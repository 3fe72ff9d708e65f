package domain

// Snapshot is a labelled pre-image of a model.
type Snapshot struct {
	Label string
	Model *Model
}

// History keeps full-clone pre-images so structural edits can be undone
// and redone as pure data operations.
type History struct {
	limit int
	undo  []Snapshot
	redo  []Snapshot
}

// NewHistory returns a history holding at most limit undo steps.
// A limit of zero or less means unbounded.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Save records a pre-image of m before an edit labelled label.
func (h *History) Save(label string, m *Model) {
	h.undo = append(h.undo, Snapshot{Label: label, Model: m.Clone()})
	if h.limit > 0 && len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	h.redo = nil
}

// Undo returns the model as it was before the last edit. current is kept
// for Redo. ok is false when there is nothing to undo.
func (h *History) Undo(current *Model) (m *Model, label string, ok bool) {
	if len(h.undo) == 0 {
		return current, "", false
	}
	s := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, Snapshot{Label: s.Label, Model: current.Clone()})
	return s.Model, s.Label, true
}

// Redo re-applies the last undone edit.
func (h *History) Redo(current *Model) (m *Model, label string, ok bool) {
	if len(h.redo) == 0 {
		return current, "", false
	}
	s := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, Snapshot{Label: s.Label, Model: current.Clone()})
	return s.Model, s.Label, true
}

// Len returns the number of undo and redo steps available.
func (h *History) Len() (undo, redo int) { return len(h.undo), len(h.redo) }
