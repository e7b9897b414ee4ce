package core

import "github.com/JonMunkholm/asvimport/internal/importerr"

// Strategy is how rows of an entity reach the store.
type Strategy int

const (
	// StrategyInsertReturning inserts row by row and reads back the key.
	StrategyInsertReturning Strategy = iota
	// StrategyCopyAppend bulk-copies rows straight into the table.
	StrategyCopyAppend
	// StrategyCopyDistinct copies rows into a scratch table and inserts
	// only the rows the target does not already hold.
	StrategyCopyDistinct
)

func (s Strategy) String() string {
	switch s {
	case StrategyInsertReturning:
		return "insert-returning"
	case StrategyCopyAppend:
		return "copy-append"
	case StrategyCopyDistinct:
		return "copy-distinct"
	default:
		return "unknown"
	}
}

// Entity describes one target table.
type Entity struct {
	Table    string
	Key      string // primary key column
	Strategy Strategy
	// Root entities are not referenced by a foreign key of an earlier
	// entity; truncating them with CASCADE empties the whole schema.
	Root bool
}

// ScratchTable returns the staging table used by StrategyCopyDistinct.
func (e Entity) ScratchTable() string {
	return "temp_" + e.Table
}

// Target entities in dependency order. Parents precede children.
const (
	EntityDataset       = "dataset"
	EntitySamplingEvent = "sampling_event"
	EntityMixs          = "mixs"
	EntityEmof          = "emof"
	EntityASV           = "asv"
	EntityOccurrence    = "occurrence"
)

var entities = []Entity{
	{Table: EntityDataset, Key: "dataset_id", Strategy: StrategyInsertReturning, Root: true},
	{Table: EntitySamplingEvent, Key: "event_id", Strategy: StrategyInsertReturning},
	{Table: EntityMixs, Key: "event_id", Strategy: StrategyCopyAppend},
	{Table: EntityEmof, Key: "measurement_id", Strategy: StrategyCopyAppend},
	{Table: EntityASV, Key: "asv_id", Strategy: StrategyCopyDistinct, Root: true},
	{Table: EntityOccurrence, Key: "occurrence_id", Strategy: StrategyCopyAppend},
}

// Entities returns the target entities in load order.
func Entities() []Entity {
	return append([]Entity(nil), entities...)
}

// Get returns the entity for a table name.
func Get(table string) (Entity, bool) {
	for _, e := range entities {
		if e.Table == table {
			return e, true
		}
	}
	return Entity{}, false
}

// lookup is Get for the load path: an unknown table is an Internal error.
func lookup(table string) (Entity, error) {
	e, ok := Get(table)
	if !ok {
		return Entity{}, importerr.Errorf(importerr.Internal, "load", table, "no entity registered for table %s", table)
	}
	return e, nil
}

// ResetTargets lists the tables a reset truncates: every root entity and
// every scratch table, in load order.
func ResetTargets() []string {
	var out []string
	for _, e := range entities {
		if e.Root {
			out = append(out, e.Table)
		}
	}
	for _, e := range entities {
		if e.Strategy == StrategyCopyDistinct {
			out = append(out, e.ScratchTable())
		}
	}
	return out
}
