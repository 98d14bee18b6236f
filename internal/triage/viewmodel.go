package triage

import (
	"sync"

	"portfolio-backend/internal/domain"
)

// ViewModel holds the admin's search term, status filter and selection over
// a read-only message sequence. Derived values are recomputed on every call.
type ViewModel struct {
	mu       sync.RWMutex
	messages []domain.ContactMessage
	search   string
	filter   StatusFilter
	selected *domain.ContactMessage
}

func NewViewModel() *ViewModel {
	return &ViewModel{filter: FilterAll}
}

// SetMessages replaces the sequence with the latest snapshot. The selection
// is refreshed from the snapshot, or cleared when its id is gone.
func (v *ViewModel) SetMessages(msgs []domain.ContactMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = msgs
	if v.selected == nil {
		return
	}
	if m, ok := find(msgs, v.selected.ID); ok {
		v.selected = &m
		return
	}
	v.selected = nil
}

func (v *ViewModel) SetSearchTerm(text string) {
	v.mu.Lock()
	v.search = text
	v.mu.Unlock()
}

func (v *ViewModel) SetStatusFilter(f StatusFilter) {
	v.mu.Lock()
	v.filter = f
	v.mu.Unlock()
}

func (v *ViewModel) SearchTerm() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.search
}

func (v *ViewModel) StatusFilter() StatusFilter {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.filter
}

// Messages returns a copy of the full sequence.
func (v *ViewModel) Messages() []domain.ContactMessage {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]domain.ContactMessage(nil), v.messages...)
}

// Visible returns the filtered list in snapshot order.
func (v *ViewModel) Visible() []domain.ContactMessage {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Filter(v.messages, v.search, v.filter)
}

// KPIs counts over the full sequence.
func (v *ViewModel) KPIs() domain.MessageKPIs {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return ComputeKPIs(v.messages)
}

// Select points the selection at id. It returns false and leaves the
// selection alone when id is not in the current sequence.
func (v *ViewModel) Select(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := find(v.messages, id)
	if !ok {
		return false
	}
	v.selected = &m
	return true
}

func (v *ViewModel) ClearSelection() {
	v.mu.Lock()
	v.selected = nil
	v.mu.Unlock()
}

// Selected returns a copy of the selected message.
func (v *ViewModel) Selected() (domain.ContactMessage, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.selected == nil {
		return domain.ContactMessage{}, false
	}
	return *v.selected, true
}

// ApplyStatus mirrors a status change into the selection only. The next
// snapshot overwrites it.
func (v *ViewModel) ApplyStatus(id string, status domain.MessageStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected != nil && v.selected.ID == id {
		v.selected.Status = status
	}
}

// Forget clears the selection if it points at id.
func (v *ViewModel) Forget(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected != nil && v.selected.ID == id {
		v.selected = nil
	}
}

func find(msgs []domain.ContactMessage, id string) (domain.ContactMessage, bool) {
	for _, m := range msgs {
		if m.ID == id {
			return m, true
		}
	}
	return domain.ContactMessage{}, false
}
