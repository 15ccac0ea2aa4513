package app

import (
	"sort"
	"sync"

	"uvsense-go/types"
)

// capData is the latest known value and state of one capability.
type capData struct {
	Kind  string                 `json:"kind"`
	ID    string                 `json:"id"`
	Value any                    `json:"value,omitempty"`
	State types.CapabilityStatus `json:"state"`
}

// store keeps the latest HAL state and per-capability data for the web api.
type store struct {
	sync.RWMutex
	hal  types.HALState
	beat types.Heartbeat
	caps map[string]*capData
}

func newStore() *store {
	return &store{caps: map[string]*capData{}}
}

func (s *store) entry(kind, id string) *capData {
	k := kind + "/" + id
	e, ok := s.caps[k]
	if !ok {
		e = &capData{Kind: kind, ID: id}
		s.caps[k] = e
	}
	return e
}

func (s *store) setValue(kind, id string, v any) {
	s.Lock()
	s.entry(kind, id).Value = v
	s.Unlock()
}

func (s *store) setState(kind, id string, st types.CapabilityStatus) {
	s.Lock()
	s.entry(kind, id).State = st
	s.Unlock()
}

func (s *store) setHAL(st types.HALState) {
	s.Lock()
	s.hal = st
	s.Unlock()
}

func (s *store) setHeartbeat(hb types.Heartbeat) {
	s.Lock()
	s.beat = hb
	s.Unlock()
}

func (s *store) heartbeat() types.Heartbeat {
	s.RLock()
	defer s.RUnlock()
	return s.beat
}

// snapshot returns copies sorted by kind then id.
func (s *store) snapshot() (types.HALState, []capData) {
	s.RLock()
	defer s.RUnlock()
	out := make([]capData, 0, len(s.caps))
	for _, e := range s.caps {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return s.hal, out
}
