package metrics

import (
	"time"
)

// Kind classifies how an attempt ended.
type Kind int

const (
	KindSuccess Kind = iota
	KindRequestFailed
	KindCapacityExceeded
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRequestFailed:
		return "request_failed"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the result of one scheduled attempt.
type Outcome struct {
	Scenario   string
	Tags       map[string]string
	Kind       Kind
	StatusCode int
	Duration   time.Duration
	Err        error
	Checks     map[string]bool
	IssuedAt   time.Time
}

// Recorder consumes attempt outcomes. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(o Outcome)
}

// Tee fans every outcome out to each recorder in order.
func Tee(recorders ...Recorder) Recorder {
	var out tee
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type tee []Recorder

func (t tee) Record(o Outcome) {
	for _, r := range t {
		r.Record(o)
	}
}

// sampleTags returns the outcome tags plus the scenario tag.
func (o Outcome) sampleTags() map[string]string {
	tags := make(map[string]string, len(o.Tags)+1)
	for k, v := range o.Tags {
		tags[k] = v
	}
	if o.Scenario != "" {
		tags[TagScenario] = o.Scenario
	}
	return tags
}
