// Package retry реализует повтор операций с экспоненциальной задержкой.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Config определяет политику повторов.
type Config struct {
	// MaxRetries -- максимальное число попыток (включая первую).
	MaxRetries int
	// InitialDelay -- задержка перед второй попыткой.
	InitialDelay time.Duration
	// Multiplier -- во сколько раз растёт задержка после каждой неудачи.
	Multiplier float64
	// JitterFactor -- доля случайного разброса задержки (0 отключает).
	JitterFactor float64
	// RetryIf решает, имеет ли смысл повторять после данной ошибки.
	// nil означает "повторять любую ошибку".
	RetryIf func(error) bool
	// OnRetry вызывается перед каждой повторной попыткой.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig -- умеренная политика для сетевых вызовов.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// Do выполняет op до первого успеха или исчерпания попыток.
// Возвращает последнюю ошибку op.
func Do(ctx context.Context, cfg Config, op func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// DoWithResult -- то же, что Do, но с возвратом результата op.
func DoWithResult[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	var zero T
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		wait := delay
		if cfg.JitterFactor > 0 {
			jitter := time.Duration(rand.Float64() * cfg.JitterFactor * float64(delay))
			wait += jitter
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
	}
	return zero, lastErr
}
