package settlement

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/verdana-market/verdana-backend/internal/groups"
	"github.com/verdana-market/verdana-backend/internal/progression"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
	"github.com/verdana-market/verdana-backend/pkg/outbox/payloads"
)

// Dispatcher delivers one settlement event to every downstream consumer. Each
// consumer is idempotent keyed by order id, so delivery may be retried until
// all of them succeed.
type Dispatcher interface {
	ApplyAll(ctx context.Context, event payloads.SettlementEvent) (*progression.Result, []groups.GroupOutcome, error)
}

type dispatcher struct {
	ledger     progression.Service
	propagator groups.Propagator
	logg       *logger.Logger
}

// NewDispatcher wires the user ledger and the group propagator behind one
// delivery surface shared by the settle request path and the event worker.
func NewDispatcher(ledger progression.Service, propagator groups.Propagator, logg *logger.Logger) (Dispatcher, error) {
	if ledger == nil {
		return nil, fmt.Errorf("progression service required")
	}
	if propagator == nil {
		return nil, fmt.Errorf("group propagator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &dispatcher{ledger: ledger, propagator: propagator, logg: logg}, nil
}

// ApplyAll runs both consumers and reports every failure. A partial failure
// leaves the event unacknowledged so the outbox replay finishes the rest; the
// consumers that already ran skip themselves on the retry.
func (d *dispatcher) ApplyAll(ctx context.Context, event payloads.SettlementEvent) (*progression.Result, []groups.GroupOutcome, error) {
	logCtx := d.logg.WithOrderID(d.logg.WithUserID(ctx, event.UserID.String()), event.OrderID.String())

	var errs error

	userResult, err := d.ledger.ApplyEvent(ctx, event)
	if err != nil {
		d.logg.Error(logCtx, "user progression failed for settlement event", err)
		errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "user progression"))
	}

	groupOutcomes, err := d.propagator.Propagate(ctx, event)
	if err != nil {
		d.logg.Error(logCtx, "group propagation failed for settlement event", err)
		errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "group propagation"))
	}

	return userResult, groupOutcomes, errs
}
