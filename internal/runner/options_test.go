package runner

import (
	"testing"
	"time"
)

func TestOptionsNormalizeFillsDefaults(t *testing.T) {
	var opts Options
	opts.normalize()

	if opts.ArrivalModel != ArrivalModelUniform {
		t.Errorf("ArrivalModel = %q, want %q", opts.ArrivalModel, ArrivalModelUniform)
	}
	if opts.RandomSeed == 0 {
		t.Error("RandomSeed should be time based when unset")
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a no-op logger")
	}
	if opts.Clock == nil || time.Since(opts.Clock()) > time.Minute {
		t.Error("Clock should default to the wall clock")
	}
}

func TestOptionsNormalizeKeepsExplicitValues(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	opts := Options{ArrivalModel: ArrivalModelPoisson, RandomSeed: 12345, Clock: func() time.Time { return fixed }}
	opts.normalize()

	if opts.ArrivalModel != ArrivalModelPoisson {
		t.Errorf("ArrivalModel = %q, want poisson", opts.ArrivalModel)
	}
	if opts.RandomSeed != 12345 {
		t.Errorf("RandomSeed = %d, want 12345", opts.RandomSeed)
	}
	if !opts.Clock().Equal(fixed) {
		t.Error("explicit Clock was replaced")
	}
}
