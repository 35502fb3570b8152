package llm

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

var errNoChoices = errors.New("response contains no choices")

// BatchResult holds the outcome of one input in a batch call.
type BatchResult struct {
	Index  int
	Output string
	Err    error
}

// Batch runs call for every input with at most maxConcurrency in flight.
// Failures are collected per input, they never abort the batch.
func Batch(ctx context.Context, inputs []string, maxConcurrency int, call func(ctx context.Context, input string) (string, error)) []BatchResult {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]BatchResult, len(inputs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrency)

	for i, input := range inputs {
		group.Go(func() error {
			output, err := call(groupCtx, input)
			results[i] = BatchResult{Index: i, Output: output, Err: err}
			return nil
		})
	}

	// Workers never return errors, they record them per input.
	_ = group.Wait()

	return results
}
