package artifact

import "testing"

func TestPrimaryAppendsAcrossOpens(t *testing.T) {
	c := NewCollector(".cel")

	first := c.Open("", ".cel")
	if _, err := first.Write([]byte("a")); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	second := c.Open("", ".cel")
	if _, err := second.Write([]byte("b")); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	out, ok := c.Primary()
	if !ok {
		t.Fatalf("Expected primary to be marked opened")
	}
	if out != "ab" {
		t.Errorf("Expected writes to accumulate in call order, got %q", out)
	}
}

func TestNonPrimaryDiscarded(t *testing.T) {
	c := NewCollector(".cel")

	for _, sink := range []struct{ name, ext string }{
		{"ast", ".json"},
		{"", ".map"},
		{"main", ".cel"},
	} {
		s := c.Open(sink.name, sink.ext)
		if n, err := s.Write([]byte("dropped")); err != nil || n != 7 {
			t.Errorf("Open(%q, %q): Write = (%d, %v), want (7, nil)", sink.name, sink.ext, n, err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("Open(%q, %q): Close returned %v", sink.name, sink.ext, err)
		}
	}

	out, ok := c.Primary()
	if ok {
		t.Errorf("Expected primary to stay unopened, got %q", out)
	}
	if out != "" {
		t.Errorf("Expected discarded writes to never reach the primary, got %q", out)
	}
}

func TestPrimaryOpenedWithoutWrites(t *testing.T) {
	c := NewCollector(".cel")
	_ = c.Open("", ".cel")

	out, ok := c.Primary()
	if !ok {
		t.Errorf("Expected opened primary to report ok=true")
	}
	if out != "" {
		t.Errorf("Expected empty artifact, got %q", out)
	}
}
