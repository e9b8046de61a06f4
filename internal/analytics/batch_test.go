package analytics

import (
	"fmt"
	"testing"
)

func TestChunk(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5"}
	tests := []struct {
		size int
		want string
	}{
		{2, "[[1 2] [3 4] [5]]"},
		{5, "[[1 2 3 4 5]]"},
		{10, "[[1 2 3 4 5]]"},
		{0, "[[1 2 3 4 5]]"},
		{1, "[[1] [2] [3] [4] [5]]"},
	}
	for _, tt := range tests {
		if got := fmt.Sprint(chunk(ids, tt.size)); got != tt.want {
			t.Errorf("chunk(size=%d) = %s, want %s", tt.size, got, tt.want)
		}
	}
	if got := chunk(nil, 3); got != nil {
		t.Errorf("chunk(nil) = %v, want nil", got)
	}
}

func TestChunkBatchesDoNotAlias(t *testing.T) {
	ids := []string{"1", "2", "3", "4"}
	batches := chunk(ids, 2)
	batches[0] = append(batches[0], "x")
	if ids[2] != "3" {
		t.Errorf("appending to a batch overwrote the next one: %v", ids)
	}
}
