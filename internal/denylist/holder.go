package denylist

import (
	"sync/atomic"

	"github.com/Waeei/waeei-backend/internal/domain"
)

// Holder owns the process-wide denylist snapshot. Readers always see a
// complete snapshot: Set swaps the pointer, it never edits the set in place.
type Holder struct {
	value atomic.Pointer[domain.Snapshot]
}

func NewHolder() *Holder {
	h := &Holder{}
	h.value.Store(domain.EmptySnapshot())
	return h
}

func (h *Holder) Get() *domain.Snapshot {
	return h.value.Load()
}

func (h *Holder) Set(s *domain.Snapshot) {
	if s == nil {
		s = domain.EmptySnapshot()
	}
	h.value.Store(s)
}

// Ready reports whether a snapshot has been loaded since startup.
func (h *Holder) Ready() bool {
	return !h.Get().LoadedAt.IsZero()
}
