package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroFilledRates(t *testing.T) {
	s := &TrafficSummary{
		RateBuffer:  []uint64{3, 1, 4},
		RateSeconds: []int64{100, 101, 104},
	}
	assert.Equal(t, []uint64{3, 1, 0, 0, 4}, s.ZeroFilledRates())
	// The stored series is left untouched.
	assert.Equal(t, []uint64{3, 1, 4}, s.RateBuffer)
}

func TestZeroFilledRates_FallsBackWithoutSeconds(t *testing.T) {
	s := &TrafficSummary{RateBuffer: []uint64{2, 2}}
	assert.Equal(t, []uint64{2, 2}, s.ZeroFilledRates())

	empty := &TrafficSummary{}
	assert.Empty(t, empty.ZeroFilledRates())
}

func TestZeroFilledRates_WideSpanNotExpanded(t *testing.T) {
	s := &TrafficSummary{
		RateBuffer:  []uint64{1, 1},
		RateSeconds: []int64{1, 1_700_000_000},
	}
	assert.Equal(t, int64(1_700_000_000), s.RateSpan())
	assert.Equal(t, []uint64{1, 1}, s.ZeroFilledRates())
}

func TestProtocolRoundTrip(t *testing.T) {
	for _, p := range []Protocol{ProtocolTCP, ProtocolUDP, ProtocolICMP, ProtocolOther} {
		assert.Equal(t, p, ParseProtocol(p.String()))
	}
	assert.Equal(t, ProtocolOther, ParseProtocol("sctp"))
}

func TestModuleError(t *testing.T) {
	cause := errors.New("operation not permitted")
	err := fmt.Errorf("sequence: %w", &ModuleError{Module: "syn_flood", Err: cause})

	assert.ErrorIs(t, err, ErrModuleSendFailure)
	assert.ErrorIs(t, err, cause)

	var me *ModuleError
	assert.ErrorAs(t, err, &me)
	assert.Equal(t, "syn_flood", me.Module)
}

func TestAttackLogFailed(t *testing.T) {
	l := &AttackLog{Records: []AttackRecord{
		{Module: "a"}, {Module: "b", Error: "boom"}, {Module: "c"},
	}}
	failed := l.Failed()
	assert.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Module)
}
