package scoring

import "time"

const (
	featureDim = 7
	ridge      = 0.1
)

// ArmState holds the LinUCB parameters learned for one tool.
type ArmState struct {
	A           matrix    `json:"A"`
	B           vector    `json:"b"`
	Count       int       `json:"count"`
	LastUpdated time.Time `json:"last_updated"`
}

// ModelState is the learned state behind the collaborative and contextual
// scorers. It is persisted as one document.
type ModelState struct {
	// Arms is keyed by tool id.
	Arms map[string]*ArmState `json:"arms"`
	// UserArms is keyed by user id, then tool id.
	UserArms map[string]map[string]*ArmState `json:"user_arms"`
	// Interactions accumulates feedback reward per user and tool.
	Interactions map[string]map[string]float64 `json:"interactions"`
	// Events counts feedback events per user.
	Events    map[string]int `json:"events"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func newArmState() *ArmState {
	var A matrix
	for i := 0; i < featureDim; i++ {
		A[i][i] = ridge
	}
	return &ArmState{A: A}
}

func NewModelState() *ModelState {
	return &ModelState{
		Arms:         make(map[string]*ArmState),
		UserArms:     make(map[string]map[string]*ArmState),
		Interactions: make(map[string]map[string]float64),
		Events:       make(map[string]int),
	}
}

// normalize fills nil maps left by a decoded document.
func (s *ModelState) normalize() {
	if s.Arms == nil {
		s.Arms = make(map[string]*ArmState)
	}
	if s.UserArms == nil {
		s.UserArms = make(map[string]map[string]*ArmState)
	}
	if s.Interactions == nil {
		s.Interactions = make(map[string]map[string]float64)
	}
	if s.Events == nil {
		s.Events = make(map[string]int)
	}
}

func (s *ModelState) clone() *ModelState {
	out := NewModelState()
	out.UpdatedAt = s.UpdatedAt
	for id, arm := range s.Arms {
		a := *arm
		out.Arms[id] = &a
	}
	for user, arms := range s.UserArms {
		m := make(map[string]*ArmState, len(arms))
		for id, arm := range arms {
			a := *arm
			m[id] = &a
		}
		out.UserArms[user] = m
	}
	for user, row := range s.Interactions {
		m := make(map[string]float64, len(row))
		for id, v := range row {
			m[id] = v
		}
		out.Interactions[user] = m
	}
	for user, n := range s.Events {
		out.Events[user] = n
	}
	return out
}
