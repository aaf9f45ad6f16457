package mixer

import (
	"encoding/json"
	"fmt"
)

// UnitSpec is the JSON-serializable description of one chain element. An
// empty ID asks the bus to generate one. Absent params keep the unit's
// defaults; out-of-range values are clamped by the unit.
type UnitSpec struct {
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type"`
	Bypassed bool               `json:"bypassed,omitempty"`
	Params   map[string]float64 `json:"params,omitempty"`
}

// chainState is the root JSON structure for a serialized chain.
type chainState struct {
	Units []UnitSpec `json:"units"`
}

// ParseChainConfig parses a serialized chain. An empty document yields an
// empty chain.
func ParseChainConfig(data []byte) ([]UnitSpec, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var state chainState

	err := json.Unmarshal(data, &state)
	if err != nil {
		return nil, fmt.Errorf("invalid chain config json: %w", err)
	}

	return state.Units, nil
}

// MarshalChainConfig serializes a chain, typically the result of
// Bus.Chain.
func MarshalChainConfig(units []UnitSpec) ([]byte, error) {
	data, err := json.Marshal(chainState{Units: units})
	if err != nil {
		return nil, fmt.Errorf("marshal chain config: %w", err)
	}

	return data, nil
}

// configState is the root JSON structure for a whole-engine mix config:
// bus names mapped to their chains. Each bus entry has the same shape as
// a standalone chain document.
type configState struct {
	Buses map[string]chainState `json:"buses"`
}

// LoadConfig installs bus chains from a JSON document mapping bus names to
// chain specs. Buses are created on first use; unknown effect types inside
// a chain are skipped per SetChain. An empty document is a no-op.
func (e *Engine) LoadConfig(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var state configState

	err := json.Unmarshal(data, &state)
	if err != nil {
		return fmt.Errorf("invalid mix config json: %w", err)
	}

	for name, chain := range state.Buses {
		bus, err := e.Bus(name)
		if err != nil {
			return err
		}

		if err := bus.SetChain(chain.Units); err != nil {
			return err
		}
	}

	return nil
}

// MarshalConfig serializes every bus chain, including empty ones, with
// live parameter values.
func (e *Engine) MarshalConfig() ([]byte, error) {
	e.mu.Lock()

	state := configState{Buses: make(map[string]chainState, len(e.buses))}
	for name, bus := range e.buses {
		state.Buses[name] = chainState{Units: bus.chainLocked()}
	}

	e.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal mix config: %w", err)
	}

	return data, nil
}
