package bulk

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
)

// ApplyFunc performs the remote mutation for op. user is the staged working
// copy. A false result is a failure.
type ApplyFunc func(ctx context.Context, op Operation, user panel.User) (bool, error)

// Executor runs planned operations under a concurrency limit, gated by a
// circuit breaker and an adaptive rate controller.
type Executor struct {
	breaker *CircuitBreaker
	rate    *RateController
	logger  *logger.Logger
}

// NewExecutor creates an executor sharing the given breaker and controller
func NewExecutor(breaker *CircuitBreaker, rate *RateController, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{breaker: breaker, rate: rate, logger: log}
}

// Execute runs ops with at most limit calls in flight. Noop operations are
// counted as skipped without calling apply. Completion order is unspecified.
func (e *Executor) Execute(ctx context.Context, ops []Operation, apply ApplyFunc, limit int) BatchResult {
	if limit <= 0 {
		limit = 1
	}

	var (
		mu  sync.Mutex
		res BatchResult
		g   errgroup.Group
	)
	g.SetLimit(limit)

	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			res.Failed++
			res.addError(err.Error())
			return
		}
		res.Successful++
	}

	for _, op := range ops {
		if op.Decision == Noop {
			res.Skipped++
			continue
		}
		op := op
		g.Go(func() error {
			record(e.run(ctx, op, apply))
			return nil
		})
	}
	_ = g.Wait()

	return res
}

func (e *Executor) run(ctx context.Context, op Operation, apply ApplyFunc) (err error) {
	if !e.breaker.CanExecute() {
		return fmt.Errorf("%s %s: %w", op.Action, op.Key.Username, errors.CircuitOpen())
	}

	if err := e.rate.Wait(ctx, e.breaker.Failures()); err != nil {
		e.breaker.releaseProbe()
		return fmt.Errorf("%s %s: %w", op.Action, op.Key.Username, err)
	}

	s := op.subject
	s.mu.Lock()
	defer s.mu.Unlock()

	undo := s.stage(op)
	user := s.user.Clone()

	ok, err := e.call(ctx, op, user, apply)
	if err == nil && !ok {
		err = fmt.Errorf("%s %s: panel rejected the request", op.Action, op.Key.Username)
	}
	if err != nil {
		undo()
		e.breaker.RecordFailure()
		e.rate.OnFailure()
		e.logger.WithFields(map[string]interface{}{
			"user":       op.Key.Username,
			"action":     string(op.Action),
			"service_id": op.Key.ServiceID,
		}).WarnWithErr(err, "Bulk operation failed")
		return err
	}

	e.breaker.RecordSuccess()
	e.rate.OnSuccess()
	e.logger.WithFields(map[string]interface{}{
		"user":       op.Key.Username,
		"action":     string(op.Action),
		"service_id": op.Key.ServiceID,
	}).Debug("Bulk operation applied")
	return nil
}

// call invokes apply, converting a panic into an error
func (e *Executor) call(ctx context.Context, op Operation, user panel.User, apply ApplyFunc) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("%s %s: panic: %v", op.Action, op.Key.Username, r)
		}
	}()
	ok, err = apply(ctx, op, user)
	if err != nil {
		err = fmt.Errorf("%s %s: %w", op.Action, op.Key.Username, err)
	}
	return ok, err
}
