package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestRingBufferWrites(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		writes []string
		want   string
	}{
		{"simple", 64, []string{"hello"}, "hello"},
		{"exact fill", 8, []string{"AA", "BB", "CC", "DD"}, "AABBCCDD"},
		{"wrap", 10, []string{"abcdefghij", "12345"}, "fghij12345"},
		{"split write", 8, []string{"AABBCC", "DDEE"}, "BBCCDDEE"},
		{"oversized", 5, []string{"0123456789"}, "56789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRingBuffer(tt.size)
			for _, w := range tt.writes {
				n, err := rb.Write([]byte(w))
				if err != nil || n != len(w) {
					t.Fatalf("Write(%q) = %d, %v", w, n, err)
				}
			}
			if got := string(rb.Bytes()); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if rb.Len() != len(tt.want) {
				t.Errorf("expected Len=%d, got %d", len(tt.want), rb.Len())
			}
		})
	}
}

func TestRingBufferDumpToFile(t *testing.T) {
	rb := NewRingBuffer(32)
	_, _ = rb.Write([]byte("dump_test_data"))

	path := filepath.Join(t.TempDir(), "dump.jsonl")
	if err := rb.DumpToFile(path); err != nil {
		t.Fatalf("DumpToFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read dump: %v", err)
	}
	if !bytes.Equal(data, []byte("dump_test_data")) {
		t.Errorf("expected 'dump_test_data', got %q", string(data))
	}
}

func TestRingBufferConcurrent(t *testing.T) {
	rb := NewRingBuffer(1024)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, _ = rb.Write([]byte("x"))
			}
		}()
	}
	wg.Wait()

	if got := len(rb.Bytes()); got != 1000 {
		t.Errorf("expected 1000 bytes, got %d", got)
	}
}
