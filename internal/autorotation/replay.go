package autorotation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/raidplan/internal/game/world"
)

// InstanceStatus describes one running encounter instance after a tick.
type InstanceStatus struct {
	ID        uuid.UUID
	Encounter string
	State     string
	Phase     string
	Elapsed   time.Duration
	// Remaining is the time to the next timed transition; zero when HasTimer is false.
	Remaining time.Duration
	HasTimer  bool
}

// Status reports every running instance, ordered by subject.
func (m *Manager) Status(now time.Duration) []InstanceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.sortedIDs()
	out := make([]InstanceStatus, 0, len(ids))
	for _, id := range ids {
		mc := m.instances[id].Machine()
		remaining, timed := mc.TimeToTransition(now)
		out = append(out, InstanceStatus{
			ID:        id,
			Encounter: mc.Definition().Module,
			State:     mc.Current().ID,
			Phase:     mc.Phase(),
			Elapsed:   mc.Elapsed(now),
			Remaining: remaining,
			HasTimer:  timed,
		})
	}
	return out
}

// FrameResult is the outcome of one replayed frame.
type FrameResult struct {
	Time            time.Duration
	Instances       []InstanceStatus
	Recommendations []Recommendation
}

// Replay ticks m once per frame of rec and calls visit with each result.
//
// Precondition: rec has been validated, so every frame contains rec.Self.
func (m *Manager) Replay(rec *world.Recording, visit func(FrameResult)) error {
	for i, f := range rec.Frames {
		self, ok := f.Actor(rec.Self)
		if !ok {
			return fmt.Errorf("autorotation.Replay: frame %d has no self actor %d", i, rec.Self)
		}
		recs := m.Tick(f, self)
		visit(FrameResult{Time: f.Now(), Instances: m.Status(f.Now()), Recommendations: recs})
	}
	return nil
}
