package orchestrator

import (
	"time"

	"github.com/agentmesh/core/internal/circuit"
	"github.com/agentmesh/core/internal/provider"
)

func newTestChain(p provider.Provider) *provider.Chain {
	reg := circuit.NewRegistry(circuit.Config{FailureThreshold: 5, MonitoringPeriod: time.Minute, ResetTimeout: time.Second})
	return provider.NewChain([]provider.Provider{p}, reg, provider.ChainConfig{})
}
