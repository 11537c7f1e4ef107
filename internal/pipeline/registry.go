package pipeline

import (
	"sync"

	"github.com/liveadsvc/ssai-edge/internal/adbreak"
)

// stateRegistry holds the one AdBreakState per channel the serializer's
// critical section mutates. Creation is lazy and guarded by the
// registry's mutex, matching the teacher's lazily-created-per-key-resource
// pattern in httpclient.HostSemaphore; mutation of an already-created
// entry is the serializer's job, not this registry's.
type stateRegistry struct {
	mu     sync.Mutex
	states map[string]*adbreak.State
}

func newStateRegistry() *stateRegistry {
	return &stateRegistry{states: make(map[string]*adbreak.State)}
}

func (r *stateRegistry) get(channelID string) *adbreak.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[channelID]
	if !ok {
		s = adbreak.NoBreak(channelID)
		r.states[channelID] = s
	}
	return s
}
