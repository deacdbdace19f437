// Package retry provides bounded retry with pluggable backoff
// strategies.
//
// # Usage
//
// Execute an operation with retry:
//
//	cfg := &retry.Config{
//	    MaxRetries: 5,
//	    Backoff:    retry.NewConstantBackoff(3 * time.Second),
//	}
//	err := retry.Do(ctx, cfg, fn, &retry.Options{
//	    ShouldRetry: cloud.IsRetryableDelete,
//	})
//
// Every attempt checks the context first, and backoff waits are
// interruptible by context cancellation.
package retry
