package util

// Batch splits elements into consecutive chunks of at most batchSize elements, preserving order.
// All chunks except possibly the last hold exactly batchSize elements.
// The returned chunks share the backing array of elements.
func Batch[T any](elements []T, batchSize int) [][]T {
	total := len(elements)
	if batchSize <= 0 {
		batchSize = 1
	}

	n := total / batchSize
	lastBatchSize := total % batchSize
	totalBatches := n
	if lastBatchSize != 0 {
		totalBatches++
	}

	batches := make([][]T, totalBatches)

	for i := 0; i < n; i++ {
		batches[i] = elements[i*batchSize : (i+1)*batchSize : (i+1)*batchSize]
	}

	if lastBatchSize != 0 {
		batches[n] = elements[n*batchSize : total : total]
	}

	return batches
}
