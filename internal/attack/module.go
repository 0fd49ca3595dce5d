package attack

import (
	"NetDeviation/internal/model"
	"context"
)

// Module is one stage of the attack sequence.
type Module interface {
	Name() string
	Type() string
	// Execute emits the module's traffic against target and fills the outcome
	// fields of rec (magnitude, ports, banners). rec is logged even when an
	// error is returned.
	Execute(ctx context.Context, target string, rec *model.AttackRecord) error
}
