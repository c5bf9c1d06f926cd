package render

import "testing"

func TestAppendWithinCapacity(t *testing.T) {
	buf := NewBuffer(make([]byte, 32))
	buf.AppendRaw(">> {'")
	buf.AppendUint(42)
	buf.AppendRaw("'}\n")
	if got := string(buf.Bytes()); got != ">> {'42'}\n" {
		t.Fatalf("got %q", got)
	}
	if buf.Truncated() {
		t.Fatal("should not be truncated")
	}
}

func TestAppendTruncatesCleanlyAtHardEnd(t *testing.T) {
	buf := NewBuffer(make([]byte, 5))
	buf.AppendRaw("hello world")
	if buf.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", buf.Len())
	}
	if !buf.Truncated() {
		t.Fatal("expected Truncated() true")
	}
	// further appends are no-ops
	before := buf.Len()
	buf.AppendRaw("more")
	if buf.Len() != before {
		t.Fatalf("cursor moved after truncation: %d -> %d", before, buf.Len())
	}
}

func TestAppendSanitizedReplacesNuls(t *testing.T) {
	buf := NewBuffer(make([]byte, 32))
	src := []byte{'X', 'N', 0x00, 'T', 0x00}
	buf.AppendSanitized(src, len(src))
	if got := string(buf.Bytes()); got != "XN T " {
		t.Fatalf("got %q", got)
	}
}

func TestAppendSanitizedTruncatesPartially(t *testing.T) {
	buf := NewBuffer(make([]byte, 3))
	src := []byte{'A', 'B', 'C', 'D', 'E'}
	buf.AppendSanitized(src, len(src))
	if got := string(buf.Bytes()); got != "ABC" {
		t.Fatalf("got %q", got)
	}
	if !buf.Truncated() {
		t.Fatal("expected Truncated() true")
	}
}

func TestResetRewindsCursor(t *testing.T) {
	buf := NewBuffer(make([]byte, 16))
	buf.AppendRaw("hello")
	buf.Reset()
	if buf.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", buf.Len())
	}
	buf.AppendRaw("hi")
	if got := string(buf.Bytes()); got != "hi" {
		t.Fatalf("got %q", got)
	}
}
