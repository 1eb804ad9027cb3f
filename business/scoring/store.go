package scoring

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"toolAdvisor/domain"
)

type RewardConfig struct {
	Shown     float64 `yaml:"shown"`
	Selected  float64 `yaml:"selected"`
	Completed float64 `yaml:"completed"`
	Dismissed float64 `yaml:"dismissed"`
}

// RewardFor turns a feedback type into a numeric reward.
func (r RewardConfig) RewardFor(t domain.FeedbackType) (float64, error) {
	switch t {
	case domain.FeedbackShown:
		return r.Shown, nil
	case domain.FeedbackSelected:
		return r.Selected, nil
	case domain.FeedbackCompleted:
		return r.Completed, nil
	case domain.FeedbackDismissed:
		return r.Dismissed, nil
	default:
		return 0, fmt.Errorf("unknown feedback type: %s", t)
	}
}

type StoreConfig struct {
	// how much global vs user arms matter
	WGlobal float64 `yaml:"w_global"`
	WUser   float64 `yaml:"w_user"`

	MaxArms        int     `yaml:"max_arms"`
	MaxArmsPerUser int     `yaml:"max_arms_per_user"`
	DecayRate      float64 `yaml:"decay_rate"`

	Rewards RewardConfig `yaml:"rewards"`
}

const (
	defaultWGlobal        = 0.7
	defaultWUser          = 0.3
	defaultMaxArms        = 2000
	defaultMaxArmsPerUser = 300
	minInteraction        = 1e-3
)

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		WGlobal:        defaultWGlobal,
		WUser:          defaultWUser,
		MaxArms:        defaultMaxArms,
		MaxArmsPerUser: defaultMaxArmsPerUser,
		DecayRate:      decayRate,
		Rewards: RewardConfig{
			Shown:     0,
			Selected:  1,
			Completed: 3,
			Dismissed: -1,
		},
	}
}

// ModelStore owns the learned model state for one engine instance.
type ModelStore struct {
	cfg StoreConfig
	now func() time.Time

	mu    sync.RWMutex
	state *ModelState
	dirty bool
}

func NewModelStore(cfg StoreConfig) *ModelStore {
	def := DefaultStoreConfig()
	if cfg.WGlobal == 0 && cfg.WUser == 0 {
		cfg.WGlobal = def.WGlobal
		cfg.WUser = def.WUser
	}
	if cfg.MaxArms <= 0 {
		cfg.MaxArms = def.MaxArms
	}
	if cfg.MaxArmsPerUser <= 0 {
		cfg.MaxArmsPerUser = def.MaxArmsPerUser
	}
	if cfg.DecayRate < 0 {
		cfg.DecayRate = 0
	}
	if cfg.Rewards == (RewardConfig{}) {
		cfg.Rewards = def.Rewards
	}
	return &ModelStore{
		cfg:   cfg,
		now:   time.Now,
		state: NewModelState(),
	}
}

func (s *ModelStore) Rewards() RewardConfig {
	return s.cfg.Rewards
}

// Apply folds one feedback event into the interaction matrix and the
// contextual arms, returning the reward used.
func (s *ModelStore) Apply(ev domain.FeedbackEvent) (float64, error) {
	reward, err := s.cfg.Rewards.RewardFor(ev.Type)
	if err != nil {
		return 0, err
	}
	at := ev.Timestamp
	if at.IsZero() {
		at = s.now()
	}
	x := buildFeatureVector(ev.Context, at)

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state

	row, ok := st.Interactions[ev.UserID]
	if !ok {
		row = make(map[string]float64)
		st.Interactions[ev.UserID] = row
	}
	row[ev.ToolID] += reward
	st.Events[ev.UserID]++

	gArm, ok := st.Arms[ev.ToolID]
	if !ok {
		gArm = newArmState()
		st.Arms[ev.ToolID] = gArm
	}

	userArms, ok := st.UserArms[ev.UserID]
	if !ok {
		userArms = make(map[string]*ArmState)
		st.UserArms[ev.UserID] = userArms
	}
	uArm, ok := userArms[ev.ToolID]
	if !ok {
		uArm = newArmState()
		userArms[ev.ToolID] = uArm
	}

	for _, arm := range []*ArmState{gArm, uArm} {
		applyDecay(arm, s.cfg.DecayRate)
		addOuter(&arm.A, x)
		addScaled(&arm.B, x, reward)
		arm.Count++
		arm.LastUpdated = at
	}

	capArms(st.Arms, s.cfg.MaxArms)
	capArms(userArms, s.cfg.MaxArmsPerUser)

	st.UpdatedAt = at
	s.dirty = true
	return reward, nil
}

// Decay is the periodic retraining hook: it ages every arm and interaction
// and drops what has faded out.
func (s *ModelStore) Decay() {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate := s.cfg.DecayRate
	if rate <= 0 {
		return
	}
	st := s.state
	for _, arm := range st.Arms {
		applyDecay(arm, rate)
	}
	for _, arms := range st.UserArms {
		for _, arm := range arms {
			applyDecay(arm, rate)
		}
	}
	for user, row := range st.Interactions {
		for tool, v := range row {
			v *= 1 - rate
			if v > -minInteraction && v < minInteraction {
				delete(row, tool)
				continue
			}
			row[tool] = v
		}
		if len(row) == 0 {
			delete(st.Interactions, user)
		}
	}
	s.dirty = true
}

// UserSupport is the number of feedback events seen for the user.
func (s *ModelStore) UserSupport(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Events[userID]
}

// Snapshot returns a deep copy safe to persist.
func (s *ModelStore) Snapshot() *ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *ModelStore) Restore(st *ModelState) {
	if st == nil {
		return
	}
	st = st.clone()
	st.normalize()

	s.mu.Lock()
	s.state = st
	s.dirty = false
	s.mu.Unlock()
}

// TakeDirty reports whether the state changed since the last call.
func (s *ModelStore) TakeDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dirty
	s.dirty = false
	return d
}

// Reset clears all learned state.
func (s *ModelStore) Reset() {
	s.mu.Lock()
	s.state = NewModelState()
	s.dirty = true
	s.mu.Unlock()
}

// contextualEstimate blends the global and per-user arms for a tool.
func (s *ModelStore) contextualEstimate(userID, toolID string, x vector) (mean, width float64, count int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gArm, ok := s.state.Arms[toolID]
	if !ok {
		gArm = newArmState()
	}
	uArm, ok := s.state.UserArms[userID][toolID]
	if !ok {
		uArm = newArmState()
	}

	gMean, gWidth := linearEstimate(gArm, x)
	uMean, uWidth := linearEstimate(uArm, x)

	wg, wu := s.cfg.WGlobal, s.cfg.WUser
	total := wg + wu
	mean = (wg*gMean + wu*uMean) / total
	width = (wg*gWidth + wu*uWidth) / total
	return mean, width, gArm.Count
}

// withInteractions runs fn under the read lock. fn must not retain the map.
func (s *ModelStore) withInteractions(fn func(map[string]map[string]float64)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state.Interactions)
}

// capArms keeps at most limit arms, dropping the oldest and least used first.
func capArms(arms map[string]*ArmState, limit int) {
	if limit <= 0 || len(arms) <= limit {
		return
	}

	type armInfo struct {
		toolID      string
		lastUpdated time.Time
		count       int
	}

	infos := make([]armInfo, 0, len(arms))
	for id, arm := range arms {
		infos = append(infos, armInfo{
			toolID:      id,
			lastUpdated: arm.LastUpdated,
			count:       arm.Count,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].lastUpdated.Equal(infos[j].lastUpdated) {
			if infos[i].count == infos[j].count {
				return infos[i].toolID < infos[j].toolID
			}
			return infos[i].count < infos[j].count
		}
		return infos[i].lastUpdated.Before(infos[j].lastUpdated)
	})

	toDrop := len(arms) - limit
	for i := 0; i < toDrop && i < len(infos); i++ {
		delete(arms, infos[i].toolID)
	}
}
