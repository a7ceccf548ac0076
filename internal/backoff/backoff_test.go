package backoff

import (
	"testing"
	"time"

	"relaybot/internal/types"
)

// fixedJitter pins the jitter so delay assertions are exact.
func fixedJitter(p Policy, d time.Duration) Policy {
	p.jitter = func() time.Duration { return d }
	return p
}

func TestDecide_FatalAlwaysStops(t *testing.T) {
	p := New(3, 2*time.Second)
	for attempt := 0; attempt < 5; attempt++ {
		if d := p.Decide(types.KindFatal, attempt); d.Retry {
			t.Fatalf("attempt %d: fatal error must not retry, got %+v", attempt, d)
		}
	}
}

func TestDecide_TransientSchedule(t *testing.T) {
	p := New(3, 2*time.Second)

	d := p.Decide(types.KindTransientService, 0)
	if !d.Retry || d.Delay != 2*time.Second {
		t.Fatalf("attempt 0: want retry after 2s, got %+v", d)
	}

	d = p.Decide(types.KindTransientService, 1)
	if !d.Retry || d.Delay != 4*time.Second {
		t.Fatalf("attempt 1: want retry after 4s, got %+v", d)
	}

	d = p.Decide(types.KindTransientService, 2)
	if d.Retry {
		t.Fatalf("attempt 2: budget spent, want stop, got %+v", d)
	}
}

func TestDecide_RateLimitedAddsJitter(t *testing.T) {
	p := fixedJitter(New(3, 2*time.Second), 300*time.Millisecond)

	d := p.Decide(types.KindRateLimited, 0)
	if !d.Retry || d.Delay != 2*time.Second+300*time.Millisecond {
		t.Fatalf("want 2.3s delay, got %+v", d)
	}

	d = p.Decide(types.KindRateLimited, 2)
	if d.Retry {
		t.Fatalf("attempt 2: want stop, got %+v", d)
	}
}

func TestDecide_JitterStaysUnderOneSecond(t *testing.T) {
	p := New(3, 2*time.Second)
	for i := 0; i < 100; i++ {
		d := p.Decide(types.KindRateLimited, 0)
		if d.Delay < 2*time.Second || d.Delay >= 3*time.Second {
			t.Fatalf("jittered delay out of [2s,3s): %v", d.Delay)
		}
	}
}

func TestDecide_DelaysNonDecreasing(t *testing.T) {
	for _, kind := range []types.ErrorKind{types.KindRateLimited, types.KindTransientService, types.KindUnknownTransient} {
		p := fixedJitter(New(5, time.Second), 0)
		var prev time.Duration
		for attempt := 0; attempt < 4; attempt++ {
			d := p.Decide(kind, attempt)
			if !d.Retry {
				break
			}
			if d.Delay < prev {
				t.Fatalf("%v: delay decreased from %v to %v at attempt %d", kind, prev, d.Delay, attempt)
			}
			prev = d.Delay
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(0, 0)
	if p.MaxAttempts() != DefaultMaxAttempts {
		t.Errorf("want default max attempts %d, got %d", DefaultMaxAttempts, p.MaxAttempts())
	}
	if d := p.Decide(types.KindTransientService, 0); d.Delay != DefaultBaseDelay {
		t.Errorf("want default base delay %v, got %v", DefaultBaseDelay, d.Delay)
	}
}
