package repository

import (
	"fmt"
	"testing"

	"optionpulse/internal/domain/models"
)

func result(i int) *models.PredictionResult {
	return &models.PredictionResult{Symbol: fmt.Sprintf("R%d", i), ClassIndex: i}
}

func TestRingBufferRetainsLastN(t *testing.T) {
	const n, k = 5, 3
	b := NewRingBuffer(n)

	for i := 0; i < n+k; i++ {
		b.Push(result(i))
	}

	if b.Len() != n {
		t.Fatalf("Len = %d, want %d", b.Len(), n)
	}
	all := b.All()
	if len(all) != n {
		t.Fatalf("All returned %d, want %d", len(all), n)
	}
	// oldest k evicted; remaining are k..n+k-1 oldest first
	for i, r := range all {
		if r.ClassIndex != k+i {
			t.Errorf("all[%d] = %d, want %d", i, r.ClassIndex, k+i)
		}
	}
}

func TestRingBufferLastN(t *testing.T) {
	b := NewRingBuffer(4)
	for i := 0; i < 3; i++ {
		b.Push(result(i))
	}

	last2 := b.LastN(2)
	if len(last2) != 2 || last2[0].ClassIndex != 1 || last2[1].ClassIndex != 2 {
		t.Fatalf("LastN(2) = %+v", last2)
	}
	// asking for more than retained returns what exists
	if got := b.LastN(10); len(got) != 3 {
		t.Fatalf("LastN(10) returned %d, want 3", len(got))
	}
	if got := b.LastN(0); got != nil {
		t.Fatalf("LastN(0) = %v, want nil", got)
	}
}

func TestRingBufferPartialFill(t *testing.T) {
	b := NewRingBuffer(8)
	b.Push(result(0))
	b.Push(result(1))

	all := b.All()
	if len(all) != 2 || all[0].ClassIndex != 0 || all[1].ClassIndex != 1 {
		t.Fatalf("All = %+v", all)
	}
	if b.Cap() != 8 {
		t.Errorf("Cap = %d", b.Cap())
	}
}
