package measurement

import "sync"

// Store holds the current cycle's measurement. Setters write a field and its flag
// under the same lock so a reader never sees one without the other.
type Store struct {
	mu   sync.RWMutex
	data Measurement
}

func NewStore() *Store {
	return &Store{}
}

// Reset clears all flags and zeroes every field before a new acquisition.
func (s *Store) Reset() {
	s.mu.Lock()
	s.data = Measurement{}
	s.mu.Unlock()
}

func (s *Store) RecordVbat(v float32) {
	s.mu.Lock()
	s.data.Vbat = v
	s.data.Flags |= FlagVbat
	s.mu.Unlock()
}

func (s *Store) RecordVbus(v float32) {
	s.mu.Lock()
	s.data.Vbus = v
	s.data.Flags |= FlagVbus
	s.mu.Unlock()
}

func (s *Store) RecordBoot(count uint32) {
	s.mu.Lock()
	s.data.BootCount = count
	s.data.Flags |= FlagBoot
	s.mu.Unlock()
}

func (s *Store) RecordEnv(env Env) {
	s.mu.Lock()
	s.data.Env = env
	s.data.Flags |= FlagEnv
	s.mu.Unlock()
}

func (s *Store) RecordLux(lux float32) {
	s.mu.Lock()
	s.data.Lux = lux
	s.data.Flags |= FlagLux
	s.mu.Unlock()
}

func (s *Store) RecordProbeOne(t float32) {
	s.mu.Lock()
	s.data.ProbeOne = t
	s.data.Flags |= FlagProbe1
	s.mu.Unlock()
}

func (s *Store) RecordProbeTwo(t float32) {
	s.mu.Lock()
	s.data.ProbeTwo = t
	s.data.Flags |= FlagProbe2
	s.mu.Unlock()
}

// Flags returns the flags set so far in this cycle.
func (s *Store) Flags() Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Flags
}

// Snapshot returns a copy of the measurement.
func (s *Store) Snapshot() Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}
