// Package metrics provides constants used across metric definitions.
package metrics

// Status label values.
const (
	// StatusSuccess marks a completed operation.
	StatusSuccess = "success"
	// StatusError marks a failed operation.
	StatusError = "error"
)

// Histogram bucket layout constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketFactor2 is the common exponential growth factor.
	BucketFactor2 = 2
	// BucketCount12 defines 12 exponential buckets, 1ms to ~2s.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets, 1ms to ~16s.
	BucketCount15 = 15
)
