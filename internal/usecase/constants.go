package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a storage transaction
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultProcessedTTL is how long a processed source object stays claimed
	DefaultProcessedTTL = 24 * time.Hour

	// DefaultInFlightTTL bounds a claim whose holder died mid-processing
	DefaultInFlightTTL = 5 * time.Minute
)
