package pipeline

import (
	"fmt"
	"testing"

	"go.viam.com/test"

	"camtrap/internal/model"
)

func makeBatch(n int) model.BatchResult {
	batch := make(model.BatchResult, n)
	for i := range batch {
		batch[i] = model.ImageResult{File: fmt.Sprintf("img_%03d.jpg", i)}
	}
	return batch
}

func TestPartition_Properties(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for w := 1; w <= 12; w++ {
			batch := makeBatch(n)
			chunks := Partition(batch, w)

			var joined model.BatchResult
			minSize, maxSize := n+1, -1
			for _, c := range chunks {
				joined = append(joined, c...)
				if len(c) < minSize {
					minSize = len(c)
				}
				if len(c) > maxSize {
					maxSize = len(c)
				}
			}

			if n == 0 {
				test.That(t, chunks, test.ShouldHaveLength, 1)
				test.That(t, chunks[0], test.ShouldBeEmpty)
				continue
			}
			test.That(t, len(joined), test.ShouldEqual, n)
			test.That(t, joined, test.ShouldResemble, batch)
			test.That(t, maxSize-minSize, test.ShouldBeLessThanOrEqualTo, 1)
			test.That(t, minSize, test.ShouldBeGreaterThan, 0)
		}
	}
}

func TestPartition_LargerChunksFirst(t *testing.T) {
	chunks := Partition(makeBatch(10), 4)
	sizes := []int{}
	for _, c := range chunks {
		sizes = append(sizes, len(c))
	}
	test.That(t, sizes, test.ShouldResemble, []int{3, 3, 2, 2})
}

func TestPartition_MoreWorkersThanResults(t *testing.T) {
	batch := makeBatch(3)
	test.That(t, Partition(batch, 10), test.ShouldResemble, Partition(batch, 3))
	test.That(t, Partition(batch, 10), test.ShouldHaveLength, 3)
}

func TestPartition_NonPositiveWorkers(t *testing.T) {
	batch := makeBatch(5)
	for _, w := range []int{0, -1} {
		chunks := Partition(batch, w)
		test.That(t, chunks, test.ShouldHaveLength, 1)
		test.That(t, len(chunks[0]), test.ShouldEqual, 5)
	}
}

func TestPartition_ChunksDoNotShareCapacity(t *testing.T) {
	batch := makeBatch(4)
	chunks := Partition(batch, 2)

	_ = append(chunks[0], model.ImageResult{File: "extra.jpg"})
	test.That(t, batch[2].File, test.ShouldEqual, "img_002.jpg")
}
