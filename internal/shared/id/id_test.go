package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator(rand.Reader)

	a := gen.Generate()
	b := gen.Generate()

	if a.String() == b.String() {
		t.Error("generated ULIDs should be unique")
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator(rand.Reader)

	for _, prefix := range []string{ConnPrefix, RequestPrefix, EventPrefix} {
		s := gen.GenerateWithPrefix(prefix)

		if !strings.HasPrefix(s, prefix+"_") {
			t.Errorf("ID should start with %q, got: %s", prefix+"_", s)
		}
		if !IsValid(s) {
			t.Errorf("generated ID should parse: %s", s)
		}
	}
}

func TestTypedIDs(t *testing.T) {
	connID := NewConnID()
	reqID := NewRequestID()
	evtID := NewEventID()

	if !strings.HasPrefix(connID.String(), "conn_") {
		t.Errorf("ConnID should start with conn_, got: %s", connID)
	}
	if !strings.HasPrefix(reqID.String(), "req_") {
		t.Errorf("RequestID should start with req_, got: %s", reqID)
	}
	if !strings.HasPrefix(evtID.String(), "evt_") {
		t.Errorf("EventID should start with evt_, got: %s", evtID)
	}
}

func TestParse(t *testing.T) {
	s := NewConnID().String()

	prefix, u, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	if prefix != ConnPrefix {
		t.Errorf("expected prefix %q, got %q", ConnPrefix, prefix)
	}
	if len(u.String()) != 26 {
		t.Errorf("ULID part should be 26 characters, got %d", len(u.String()))
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"noprefix",
		"conn_",
		"_01ARZ3NDEKTSV4RRFFQ69G5FAV",
		"conn_notaulid",
		"conn_zzzzzzzzzzzzzzzzzzzzzzzzzzz",
	} {
		if IsValid(s) {
			t.Errorf("ID should be invalid: %q", s)
		}
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now()
	s := NewRequestID().String()
	after := time.Now()

	ts, err := Timestamp(s)
	if err != nil {
		t.Fatalf("Timestamp(%q): %v", s, err)
	}

	// ULID timestamps carry millisecond precision.
	if ts.UnixMilli() < before.UnixMilli() || ts.UnixMilli() > after.UnixMilli() {
		t.Errorf("timestamp %d outside [%d, %d]", ts.UnixMilli(), before.UnixMilli(), after.UnixMilli())
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator(rand.Reader)

	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	out := make(chan string, goroutines*perGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				out <- gen.GenerateWithPrefix(ConnPrefix)
			}
		}()
	}

	wg.Wait()
	close(out)

	seen := make(map[string]bool)
	for s := range out {
		if seen[s] {
			t.Errorf("duplicate ID under concurrency: %s", s)
		}
		seen[s] = true
	}
	if len(seen) != goroutines*perGoroutine {
		t.Errorf("expected %d unique IDs, got %d", goroutines*perGoroutine, len(seen))
	}
}

func TestLexicographicOrder(t *testing.T) {
	gen := NewGenerator(rand.Reader)

	ids := make([]string, 5)
	for i := range ids {
		ids[i] = gen.Generate().String()
		time.Sleep(2 * time.Millisecond)
	}

	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("IDs should sort by creation time: %s should be > %s", ids[i], ids[i-1])
		}
	}
}

func TestDefaultSingleton(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() should return the same instance")
	}
}

func BenchmarkGenerateWithPrefix(b *testing.B) {
	gen := NewGenerator(rand.Reader)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gen.GenerateWithPrefix(ConnPrefix)
	}
}
