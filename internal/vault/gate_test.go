package vault_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flipscout/flipscout/internal/vault"
)

func TestGateCheck(t *testing.T) {
	rq := require.New(t)
	gate := vault.NewGate(vault.DefaultConfig())
	rq.Equal(300.0, gate.Threshold())

	v := gate.Check(350, 280)
	rq.True(v.Safe)
	rq.Equal(50.0, v.Margin)

	// Exactly at threshold is safe.
	v = gate.Check(300, 280)
	rq.True(v.Safe)
	rq.Zero(v.Margin)

	// High expected value does not matter; worst case below threshold fails.
	v = gate.Check(299.99, 100)
	rq.False(v.Safe)
	rq.Negative(v.Margin)
}

func TestGateDefaults(t *testing.T) {
	rq := require.New(t)
	gate := vault.NewGate(vault.Config{})
	rq.Equal(300.0, gate.Threshold())

	gate = vault.NewGate(vault.Config{CustodialMinimum: 500, SafetyBuffer: 100})
	rq.Equal(600.0, gate.Threshold())
	rq.False(gate.Check(599, 400).Safe)
}
