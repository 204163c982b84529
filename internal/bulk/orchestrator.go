package bulk

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/metrics"
)

// Intent is the caller's desired bulk change: AssignmentIntent or CleanupIntent
type Intent interface {
	Kind() cleanup.Intent
	validate(t panel.ServerType) error
}

// AssignmentIntent adds or removes services on every listed user
type AssignmentIntent struct {
	ServiceIDs []int
	Action     Action
}

// Kind returns the intent kind
func (AssignmentIntent) Kind() cleanup.Intent { return cleanup.IntentAssignment }

func (i AssignmentIntent) validate(t panel.ServerType) error {
	if !i.Action.IsAssignment() {
		return errors.BadRequest(fmt.Sprintf("invalid assignment action %q", i.Action))
	}
	if len(i.ServiceIDs) == 0 {
		return errors.BadRequest("no service ids given")
	}
	if t != panel.ServerTypeMarzneshin {
		return errors.Configuration(fmt.Sprintf("service assignment is not supported on %s", t))
	}
	return nil
}

// CleanupIntent deletes users carrying any of the status filters
type CleanupIntent struct {
	StatusFilters []string
}

// Kind returns the intent kind
func (CleanupIntent) Kind() cleanup.Intent { return cleanup.IntentCleanup }

func (i CleanupIntent) validate(t panel.ServerType) error {
	if len(i.StatusFilters) == 0 {
		return errors.BadRequest("no status filters given")
	}
	return ValidateStatusFilters(t, i.StatusFilters)
}

// Options tunes an orchestrator
type Options struct {
	Scope            string
	BatchSize        int
	ConcurrencyLimit int
	InitialDelay     time.Duration
	MinDelay         time.Duration
	MaxDelay         time.Duration
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// InteractiveCleanupOptions are the defaults for operator-triggered cleanups
func InteractiveCleanupOptions() Options {
	return Options{
		Scope:            "interactive",
		BatchSize:        8,
		ConcurrencyLimit: 2,
		InitialDelay:     200 * time.Millisecond,
		MinDelay:         DefaultMinDelay,
		MaxDelay:         DefaultMaxDelay,
		FailureThreshold: DefaultFailureThreshold,
		RecoveryTimeout:  DefaultRecoveryTimeout,
	}
}

// InteractiveAssignmentOptions are the defaults for operator-triggered assignments
func InteractiveAssignmentOptions() Options {
	o := InteractiveCleanupOptions()
	o.Scope = "assignment"
	o.BatchSize = 20
	o.ConcurrencyLimit = 5
	return o
}

// ScheduledOptions are the conservative defaults for unattended runs
func ScheduledOptions() Options {
	o := InteractiveCleanupOptions()
	o.Scope = "scheduled"
	o.BatchSize = 5
	o.ConcurrencyLimit = 1
	o.InitialDelay = 500 * time.Millisecond
	return o
}

// Orchestrator composes the pager, planner and executor across admins.
// Its breaker and rate controller persist across runs.
type Orchestrator struct {
	client   panel.Client
	opts     Options
	breaker  *CircuitBreaker
	rate     *RateController
	executor *Executor
	pager    *Pager
	clock    clock.Clock
	logger   *logger.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(client panel.Client, opts Options, clk clock.Clock, log *logger.Logger) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 8
	}
	if opts.ConcurrencyLimit <= 0 {
		opts.ConcurrencyLimit = 1
	}
	if opts.Scope == "" {
		opts.Scope = "default"
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("bulk").With("scope", opts.Scope)

	breaker := NewCircuitBreaker(opts.Scope, opts.FailureThreshold, opts.RecoveryTimeout, clk, log)
	rate := NewRateController(opts.Scope, opts.InitialDelay, opts.MinDelay, opts.MaxDelay, clk)

	return &Orchestrator{
		client:   client,
		opts:     opts,
		breaker:  breaker,
		rate:     rate,
		executor: NewExecutor(breaker, rate, log),
		pager:    NewPager(client),
		clock:    clk,
		logger:   log,
	}
}

// Breaker exposes the orchestrator's circuit breaker
func (o *Orchestrator) Breaker() *CircuitBreaker { return o.breaker }

// Rate exposes the orchestrator's rate controller
func (o *Orchestrator) Rate() *RateController { return o.rate }

// Options returns the effective options
func (o *Orchestrator) Options() Options { return o.opts }

// Run applies intent to every user of every admin in order. Per-user
// failures only show up in the counters. A listing failure ends that admin
// and is returned, joined with any others, next to the populated result.
func (o *Orchestrator) Run(ctx context.Context, server *panel.Server, admins []string, intent Intent, sink ProgressSink) (*AggregateResult, error) {
	if server == nil {
		return nil, errors.NotFound("Server")
	}
	if len(admins) == 0 {
		return nil, errors.NotFound("Admins")
	}
	if !server.Type.IsValid() {
		return nil, unsupportedType(server.Type)
	}
	if intent == nil {
		return nil, errors.BadRequest("no intent given")
	}
	if err := intent.validate(server.Type); err != nil {
		return nil, err
	}

	start := o.clock.Now()
	log := o.logger.WithFields(map[string]interface{}{
		"server": server.Remark,
		"intent": string(intent.Kind()),
	})
	log.WithFields(map[string]interface{}{"admins": admins}).Info("Bulk run started")

	agg := &AggregateResult{Admins: make([]*AdminResult, 0, len(admins))}
	seen := make(map[string]struct{})
	planned := make(map[OperationKey]struct{})
	apply := o.applyFunc(server, intent)

	var errs []error
	for _, admin := range admins {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		ar := &AdminResult{Admin: admin}
		agg.Admins = append(agg.Admins, ar)

		err := o.pager.Walk(ctx, server, admin, seen, func(users []panel.User) error {
			ar.TotalUsers += len(users)
			agg.TotalUsers += len(users)

			for i := 0; i < len(users); i += o.opts.BatchSize {
				end := min(i+o.opts.BatchSize, len(users))

				ops, err := o.plan(server, users[i:end], intent, planned)
				if err != nil {
					return err
				}
				agg.Examined += len(ops)

				br := o.executor.Execute(ctx, ops, apply, o.opts.ConcurrencyLimit)
				deleting := intent.Kind() == cleanup.IntentCleanup
				ar.addBatch(br, deleting)
				agg.addBatch(br, deleting)
				for _, msg := range br.Errors {
					ar.Errors = appendSample(ar.Errors, msg)
					agg.addError(msg)
				}
				metrics.RecordBulkOperations(string(intent.Kind()), br.Successful, br.Failed, br.Skipped)

				notify(log, sink, admin, ar.Counters)
			}
			return nil
		})
		if err != nil {
			ar.Error = err.Error()
			agg.addError(err.Error())
			errs = append(errs, err)
			log.With("admin", admin).ErrorWithErr(err, "Aborted admin after listing failure")
			continue
		}

		log.WithFields(map[string]interface{}{
			"admin":      admin,
			"users":      ar.TotalUsers,
			"successful": ar.Successful,
			"failed":     ar.Failed,
			"skipped":    ar.Skipped,
		}).Info("Admin processed")
	}

	if !agg.consistent() {
		log.WithFields(map[string]interface{}{
			"successful":       agg.Successful,
			"failed":           agg.Failed,
			"skipped":          agg.Skipped,
			"total_operations": agg.TotalOperations,
			"examined":         agg.Examined,
		}).Warn("Bulk result counters are inconsistent")
	}

	status := "completed"
	if len(errs) > 0 {
		status = "partial"
	}
	metrics.RecordBulkRun(string(intent.Kind()), status, o.clock.Now().Sub(start))

	log.WithFields(map[string]interface{}{
		"total_users":      agg.TotalUsers,
		"total_operations": agg.TotalOperations,
		"total_deleted":    agg.TotalDeleted,
		"successful":       agg.Successful,
		"failed":           agg.Failed,
		"skipped":          agg.Skipped,
	}).Info("Bulk run finished")

	return agg, stderrors.Join(errs...)
}

// plan turns a batch of users into operations, dropping targets already
// planned earlier in the run.
func (o *Orchestrator) plan(server *panel.Server, users []panel.User, intent Intent, planned map[OperationKey]struct{}) ([]Operation, error) {
	var ops []Operation
	switch in := intent.(type) {
	case AssignmentIntent:
		for _, u := range users {
			s := newUserState(u)
			for _, sid := range in.ServiceIDs {
				op := newAssignmentOp(s, sid, in.Action)
				if _, dup := planned[op.Key]; dup {
					continue
				}
				planned[op.Key] = struct{}{}
				ops = append(ops, op)
			}
		}
	case CleanupIntent:
		filters := filterSet(in.StatusFilters)
		for _, u := range users {
			d, err := PlanCleanup(server.Type, &u, filters)
			if err != nil {
				return nil, err
			}
			op := newDeleteOp(newUserState(u), d)
			if _, dup := planned[op.Key]; dup {
				continue
			}
			planned[op.Key] = struct{}{}
			ops = append(ops, op)
		}
	default:
		return nil, errors.BadRequest(fmt.Sprintf("unsupported intent %T", intent))
	}
	return ops, nil
}

func (o *Orchestrator) applyFunc(server *panel.Server, intent Intent) ApplyFunc {
	if intent.Kind() == cleanup.IntentCleanup {
		return func(ctx context.Context, op Operation, _ panel.User) (bool, error) {
			return o.client.RemoveUser(ctx, server, op.Key.Username)
		}
	}
	return func(ctx context.Context, op Operation, user panel.User) (bool, error) {
		if warn := panel.ValidateUser(&user); warn != "" {
			o.logger.Warn(warn)
		}
		return o.client.ModifyUser(ctx, server, user.Username, panel.PrepareModify(&user))
	}
}
