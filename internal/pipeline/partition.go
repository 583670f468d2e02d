package pipeline

import "camtrap/internal/model"

// Partition splits results into contiguous chunks whose sizes differ by at
// most one, preserving order. The worker count is clamped to [1, len(results)];
// an empty input yields a single empty chunk.
func Partition(results model.BatchResult, workers int) []model.WorkChunk {
	n := len(results)
	if workers < 1 {
		workers = 1
	}
	if n == 0 {
		return []model.WorkChunk{{}}
	}
	if workers > n {
		workers = n
	}

	base, remainder := n/workers, n%workers
	chunks := make([]model.WorkChunk, 0, workers)
	start := 0
	for i := 0; i < workers; i++ {
		size := base
		if i < remainder {
			size++
		}
		end := start + size
		// capped so an append on one chunk can never overwrite the next
		chunks = append(chunks, model.WorkChunk(results[start:end:end]))
		start = end
	}

	return chunks
}
