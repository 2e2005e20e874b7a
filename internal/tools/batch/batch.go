package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the number of items processed at once.
const DefaultConcurrency = 4

// Result is the outcome of one item of a batch.
type Result[T any] struct {
	ID    string
	Value T
	Err   error
}

// ParseStringOrArray parses a parameter that can be either a single string or an array of strings.
// A string holding a JSON array of strings is decoded as an array.
func ParseStringOrArray(param any, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	var result []string

	switch v := param.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		if strings.HasPrefix(strings.TrimSpace(v), "[") {
			var decoded []any
			if err := json.Unmarshal([]byte(v), &decoded); err == nil {
				return ParseStringOrArray(decoded, paramName)
			}
		}
		result = []string{v}
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			if str == "" {
				return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
			}
			result = append(result, str)
		}
	case []string:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		result = append(result, v...)
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}

	return result, nil
}

// Process runs fn for every id with at most concurrency calls in flight and
// returns the results in input order. A failing item does not stop the
// others; only cancellation of ctx does.
func Process[T any](ctx context.Context, ids []string, concurrency int, fn func(ctx context.Context, id string) (T, error)) []Result[T] {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	results := make([]Result[T], len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		results[i].ID = id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Value, results[i].Err = fn(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Partition splits results into successes and failures, keeping order.
func Partition[T any](results []Result[T]) (ok, failed []Result[T]) {
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		} else {
			ok = append(ok, r)
		}
	}
	return ok, failed
}
