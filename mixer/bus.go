package mixer

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-mixer/dsp/fx"
)

// busUnit is one installed chain element.
type busUnit struct {
	id   string
	typ  string
	unit fx.Unit
	node NodeID
}

// Bus is a stereo mix point with a fader and a serial effect chain. Audio
// entering the bus is summed, run through the fader and the chain in
// order, and handed to the bus output (the master bus for regular buses,
// the audio output for the master bus itself).
type Bus struct {
	engine *Engine
	name   string

	in    NodeID
	fader NodeID
	out   NodeID

	faderUnit *fx.Gain

	units []busUnit
}

// Name returns the bus name.
func (b *Bus) Name() string { return b.name }

// SetGainDB sets the bus fader in dB. Lock-free; ramps over the smoothing
// window.
func (b *Bus) SetGainDB(db float64) {
	b.faderUnit.SetGainDB(db)
}

// SetChain replaces the bus effect chain with units built from the given
// specs, in order. Unknown effect types are logged and skipped rather than
// failing the whole chain. Units with no explicit ID get a generated
// "<type>-<n>" ID; IDs are unique across the whole engine, so a unit can
// be addressed without naming its bus. The swap is atomic from the audio
// goroutine's view: it happens between blocks.
func (b *Bus) SetChain(specs []UnitSpec) error {
	e := b.engine

	e.mu.Lock()
	defer e.mu.Unlock()

	units, err := b.buildUnits(specs)
	if err != nil {
		return err
	}

	if err := b.removeChainLocked(); err != nil {
		return err
	}

	if err := b.installChainLocked(units); err != nil {
		return err
	}

	return e.graph.Compile()
}

// ClearChain removes every unit from the chain.
func (b *Bus) ClearChain() error {
	return b.SetChain(nil)
}

// buildUnits constructs and prepares the units for the given specs,
// skipping unknown types. Generated and colliding IDs are resolved against
// every bus, so the result is unique engine-wide.
func (b *Bus) buildUnits(specs []UnitSpec) ([]busUnit, error) {
	e := b.engine

	units := make([]busUnit, 0, len(specs))
	seen := e.takenUnitIDsLocked(b)
	typeCount := make(map[string]int, len(specs))

	for _, spec := range specs {
		factory := e.registry.Lookup(spec.Type)
		if factory == nil {
			e.log.Warn("skipping unknown effect type",
				"bus", b.name, "type", spec.Type)

			continue
		}

		unit := factory()
		if err := unit.Prepare(e.sampleRate, e.blockSize); err != nil {
			return nil, fmt.Errorf("mixer: prepare %s: %w", spec.Type, err)
		}

		typ := unit.Type()
		typeCount[typ]++

		id := strings.TrimSpace(spec.ID)
		if id != "" && seen[id] {
			e.log.Warn("regenerating colliding unit id",
				"bus", b.name, "unit", id)

			id = ""
		}

		if id == "" {
			id = fmt.Sprintf("%s-%d", typ, typeCount[typ])
		}

		for seen[id] {
			typeCount[typ]++
			id = fmt.Sprintf("%s-%d", typ, typeCount[typ])
		}

		seen[id] = true

		for name, value := range spec.Params {
			if !unit.SetParam(name, value) {
				e.log.Warn("ignoring unknown effect parameter",
					"bus", b.name, "unit", id, "param", name)
			}
		}

		unit.SetEnabled(!spec.Bypassed)

		units = append(units, busUnit{id: id, typ: typ, unit: unit})
	}

	return units, nil
}

// removeChainLocked deletes the current chain nodes and restores the
// direct fader-to-output edge.
func (b *Bus) removeChainLocked() error {
	e := b.engine

	for _, u := range b.units {
		if err := e.graph.RemoveNode(u.node); err != nil {
			return err
		}
	}

	b.units = b.units[:0]

	if !e.graph.Connected(b.fader, b.out) {
		if err := e.graph.Connect(b.fader, b.out); err != nil {
			return err
		}
	}

	return nil
}

// installChainLocked splices the units serially between the fader and the
// bus output.
func (b *Bus) installChainLocked(units []busUnit) error {
	e := b.engine

	if len(units) == 0 {
		b.units = units
		return nil
	}

	if err := e.graph.Disconnect(b.fader, b.out); err != nil {
		return err
	}

	prev := b.fader
	for i := range units {
		units[i].node = e.graph.AddNode(b.name+"/"+units[i].id, units[i].unit)

		if err := e.graph.Connect(prev, units[i].node); err != nil {
			return err
		}

		prev = units[i].node
	}

	if err := e.graph.Connect(prev, b.out); err != nil {
		return err
	}

	b.units = units

	return nil
}

// Chain returns the current chain as specs, in processing order, with the
// live parameter values.
func (b *Bus) Chain() []UnitSpec {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()

	return b.chainLocked()
}

func (b *Bus) chainLocked() []UnitSpec {
	specs := make([]UnitSpec, len(b.units))
	for i, u := range b.units {
		specs[i] = UnitSpec{
			ID:       u.id,
			Type:     u.typ,
			Bypassed: !u.unit.Enabled(),
			Params:   u.unit.Params(),
		}
	}

	return specs
}

// SetParameter sets a parameter on the identified unit. Unknown unit IDs
// and parameter names are logged and ignored; the return value reports
// whether the write landed.
func (b *Bus) SetParameter(unitID, name string, value float64) bool {
	unit := b.findUnit(unitID)
	if unit == nil {
		b.engine.log.Warn("parameter write to unknown unit",
			"bus", b.name, "unit", unitID)

		return false
	}

	if !unit.SetParam(name, value) {
		b.engine.log.Warn("ignoring unknown effect parameter",
			"bus", b.name, "unit", unitID, "param", name)

		return false
	}

	return true
}

// SetUnitEnabled toggles the identified unit. Unknown unit IDs are logged
// and ignored.
func (b *Bus) SetUnitEnabled(unitID string, enabled bool) bool {
	unit := b.findUnit(unitID)
	if unit == nil {
		b.engine.log.Warn("enable toggle for unknown unit",
			"bus", b.name, "unit", unitID)

		return false
	}

	unit.SetEnabled(enabled)

	return true
}

// Unit returns the identified live unit, or nil.
func (b *Bus) Unit(unitID string) fx.Unit {
	return b.findUnit(unitID)
}

func (b *Bus) findUnit(unitID string) fx.Unit {
	e := b.engine

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, u := range b.units {
		if u.id == unitID {
			return u.unit
		}
	}

	return nil
}
