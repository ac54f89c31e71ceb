package models

import (
	"time"
)

// Urgency describes how quickly the user needs help.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency maps free-form labels onto the known urgency levels, defaulting to medium.
func ParseUrgency(s string) Urgency {
	switch Urgency(s) {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return Urgency(s)
	default:
		return UrgencyMedium
	}
}

// Known need categories. The reasoning service may return other labels; those pass through as-is.
const (
	CategoryHousing         = "housing"
	CategoryFood            = "food"
	CategoryHealthcare      = "healthcare"
	CategoryTransportation  = "transportation"
	CategoryEmployment      = "employment"
	CategoryFinancial       = "financial"
	CategoryLegal           = "legal"
	CategoryFamilyServices  = "family_services"
	CategoryElderlyServices = "elderly_services"
	CategoryGeneral         = "general"
	CategoryGreeting        = "intake_greeting"
)

// Resource is a civic service or program discovered for the user.
type Resource struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Contact     string `json:"contact,omitempty"`
	URL         string `json:"url,omitempty"`
	Eligibility string `json:"eligibility,omitempty"`
	NextStep    string `json:"next_step,omitempty"`
	Source      string `json:"source,omitempty"` // search, directory
}

// StageTiming is the measured wall-clock duration of one executed stage.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

// StageTimings keeps stage durations in execution order.
type StageTimings []StageTiming

// Get returns the duration recorded for stage.
func (t StageTimings) Get(stage string) (time.Duration, bool) {
	for _, st := range t {
		if st.Stage == stage {
			return st.Duration, true
		}
	}
	return 0, false
}

// Map returns the timings keyed by stage name.
func (t StageTimings) Map() map[string]time.Duration {
	out := make(map[string]time.Duration, len(t))
	for _, st := range t {
		out[st.Stage] = st.Duration
	}
	return out
}

// Total sums all stage durations.
func (t StageTimings) Total() time.Duration {
	var total time.Duration
	for _, st := range t {
		total += st.Duration
	}
	return total
}

// Turn is one finalized request/response cycle within a session.
type Turn struct {
	ID              string       `json:"id"`
	Message         string       `json:"message"`
	NeedCategory    string       `json:"need_category"`
	Urgency         Urgency      `json:"urgency_level"`
	Reply           string       `json:"reply"`
	Resources       []Resource   `json:"resources"`
	Timings         StageTimings `json:"stage_timings"`
	SearchPerformed bool         `json:"search_performed"`
	ResponseSource  string       `json:"response_source"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Session is the conversational context keyed by an opaque id.
type Session struct {
	ID        string     `json:"id"`
	Turns     []Turn     `json:"turns"`
	Resources []Resource `json:"resources"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so callers never share slices with the store.
func (s Session) Clone() Session {
	out := s
	if s.Turns != nil {
		out.Turns = make([]Turn, len(s.Turns))
		for i, t := range s.Turns {
			t.Resources = append([]Resource(nil), t.Resources...)
			t.Timings = append(StageTimings(nil), t.Timings...)
			out.Turns[i] = t
		}
	}
	if s.Resources != nil {
		out.Resources = append([]Resource(nil), s.Resources...)
	}
	return out
}

// LastTurn returns the most recent turn, if any.
func (s Session) LastTurn() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}
