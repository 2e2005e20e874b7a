package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/teemow/mcp-gmail/internal/instrumentation"
	"github.com/teemow/mcp-gmail/internal/logging"
)

const (
	serviceName = "gmail"

	defaultMaxTries        = 3
	defaultInitialInterval = time.Second
	defaultMaxInterval     = 30 * time.Second

	breakerTripAfter   = 5
	breakerOpenTimeout = 30 * time.Second
)

// Observer receives API call outcomes. *instrumentation.Metrics implements it.
type Observer interface {
	RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration)
	RecordGoogleAPIRetry(ctx context.Context, service, operation string)
	RecordCircuitBreakerState(ctx context.Context, breaker, state string)
}

// Invoker executes Gmail API calls with retry on transient failures,
// optional request pacing and an optional circuit breaker.
type Invoker struct {
	logger     *slog.Logger
	observer   Observer
	newBackOff func() backoff.BackOff
	maxTries   uint
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithLogger sets the logger used for retry notifications.
func WithLogger(logger *slog.Logger) InvokerOption {
	return func(inv *Invoker) { inv.logger = logger }
}

// WithObserver reports operation outcomes, retries and breaker transitions.
func WithObserver(o Observer) InvokerOption {
	return func(inv *Invoker) { inv.observer = o }
}

// WithBackOff replaces the exponential 1s, 2s, 4s schedule. Tests pass a
// factory returning backoff.ZeroBackOff.
func WithBackOff(factory func() backoff.BackOff) InvokerOption {
	return func(inv *Invoker) { inv.newBackOff = factory }
}

// WithMaxTries sets the total number of attempts per call.
func WithMaxTries(n uint) InvokerOption {
	return func(inv *Invoker) {
		if n > 0 {
			inv.maxTries = n
		}
	}
}

// WithRateLimit paces attempts to qps requests per second. Zero disables it.
func WithRateLimit(qps float64) InvokerOption {
	return func(inv *Invoker) {
		if qps <= 0 {
			inv.limiter = nil
			return
		}
		burst := int(qps)
		if burst < 1 {
			burst = 1
		}
		inv.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

// WithCircuitBreaker guards calls with a breaker that opens after more than
// five consecutive transient failures and stays open for 30 seconds.
func WithCircuitBreaker(name string) InvokerOption {
	return func(inv *Invoker) {
		inv.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     breakerOpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures > breakerTripAfter
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !IsTransient(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				inv.log().Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
				if inv.observer != nil {
					inv.observer.RecordCircuitBreakerState(context.Background(), name, to.String())
				}
			},
		})
	}
}

// NewInvoker returns an invoker with the default retry schedule.
func NewInvoker(opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		maxTries:   defaultMaxTries,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

func defaultBackOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     defaultInitialInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         defaultMaxInterval,
	}
}

// BreakerState returns the breaker state, or "disabled".
func (inv *Invoker) BreakerState() string {
	if inv == nil || inv.breaker == nil {
		return "disabled"
	}
	return inv.breaker.State().String()
}

func (inv *Invoker) log() *slog.Logger {
	if inv.logger != nil {
		return inv.logger
	}
	return slog.Default()
}

// Do runs fn under inv's retry policy. Transient failures are retried until
// the attempt budget is spent and then reported as *TransientServiceError;
// every other failure is returned at once as *PermanentServiceError.
func Do[T any](ctx context.Context, inv *Invoker, op string, fn func(context.Context) (T, error)) (T, error) {
	if inv == nil {
		inv = NewInvoker()
	}

	ctx, span := instrumentation.StartGmailSpan(ctx, op)

	start := time.Now()
	attempts := 0

	operation := func() (T, error) {
		var zero T
		attempts++

		if inv.limiter != nil {
			if err := inv.limiter.Wait(ctx); err != nil {
				return zero, backoff.Permanent(err)
			}
		}

		v, err := call(ctx, inv.breaker, fn)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrCircuitOpen) || !IsTransient(err) {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(inv.newBackOff()),
		backoff.WithMaxTries(inv.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			inv.log().Warn("retrying gmail API call",
				logging.Operation(op),
				logging.Attempt(attempts),
				slog.Duration("backoff", next),
				logging.Err(err))
			if inv.observer != nil {
				inv.observer.RecordGoogleAPIRetry(ctx, serviceName, op)
			}
		}),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		err = classify(op, attempts, err)
	}
	instrumentation.EndSpan(span, err, attribute.Int(instrumentation.SpanAttrAttempts, attempts))
	if inv.observer != nil {
		inv.observer.RecordGoogleAPIOperation(ctx, serviceName, op, status, time.Since(start))
	}
	return v, err
}

func classify(op string, attempts int, err error) error {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrCircuitOpen):
		// The rejected attempt never reached the API.
		return &TransientServiceError{Op: op, Attempts: attempts - 1, Err: err}
	case IsTransient(err):
		return &TransientServiceError{Op: op, Attempts: attempts, Err: err}
	default:
		return &PermanentServiceError{Op: op, Err: err}
	}
}

// call runs fn once, through the breaker when one is configured.
func call[T any](ctx context.Context, breaker *gobreaker.CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	if breaker == nil {
		return fn(ctx)
	}

	var zero T
	res, err := breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}
