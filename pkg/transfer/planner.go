package transfer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type (
	// Table describes one table participating in a transfer and the tables
	// it references via foreign keys.
	Table struct {
		Name string

		// DependsOn lists parent tables. Parents are inserted before this
		// table and deleted after it.
		DependsOn []string

		// Required marks tables expected to be non-empty in the source. An
		// import payload missing a required table is an error rather than
		// an empty table.
		Required bool
	}

	// Plan is a dependency-respecting ordering over the configured tables.
	// Both orders come from one topological sort; ties between unrelated
	// tables are broken by configuration list order so plans are
	// deterministic.
	Plan struct {
		// InsertOrder lists tables parents-first.
		InsertOrder []string

		// DeleteOrder lists tables children-first.
		DeleteOrder []string

		tables map[string]Table
	}

	// CycleError indicates the configured dependency graph is not acyclic.
	// It is a configuration bug, fatal before any table is touched.
	CycleError struct {
		Cycle []string
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic table dependency: %s", strings.Join(e.Cycle, " -> "))
}

// NewPlan computes a transfer plan from the configured tables. It fails with
// *CycleError when the dependency graph contains a cycle and with a plain
// error when a dependency names an unconfigured table.
func NewPlan(tables []Table) (*Plan, error) {
	byName := make(map[string]Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	for _, t := range tables {
		for _, dep := range t.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, errors.Errorf("table %s depends on unconfigured table %s", t.Name, dep)
			}
		}
	}

	insertOrder, err := topoSort(tables)
	if err != nil {
		return nil, err
	}

	deleteOrder := make([]string, len(insertOrder))
	for i, name := range insertOrder {
		deleteOrder[len(insertOrder)-1-i] = name
	}

	return &Plan{
		InsertOrder: insertOrder,
		DeleteOrder: deleteOrder,
		tables:      byName,
	}, nil
}

// Table returns the descriptor for name. The second return is false for
// tables outside the plan.
func (p *Plan) Table(name string) (Table, bool) {
	t, ok := p.tables[name]
	return t, ok
}

// topoSort is a stable Kahn's algorithm: on every step it picks the first
// table in configuration order whose parents are all placed. When no table
// can be placed the remainder contains a cycle, which is extracted for the
// error message.
func topoSort(tables []Table) ([]string, error) {
	placed := make(map[string]bool, len(tables))
	order := make([]string, 0, len(tables))

	for len(order) < len(tables) {
		progressed := false

		for _, t := range tables {
			if placed[t.Name] {
				continue
			}

			ready := true
			for _, dep := range t.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}

			if ready {
				placed[t.Name] = true
				order = append(order, t.Name)
				progressed = true

				// Restart from the head of the configuration list: a table
				// skipped earlier in this scan may outrank whatever this
				// placement just unblocked.
				break
			}
		}

		if !progressed {
			return nil, &CycleError{Cycle: findCycle(tables, placed)}
		}
	}

	return order, nil
}

// findCycle walks the unplaced remainder depth-first until a table repeats,
// then returns the closed path for reporting.
func findCycle(tables []Table, placed map[string]bool) []string {
	deps := make(map[string][]string, len(tables))
	var start string
	for _, t := range tables {
		if placed[t.Name] {
			continue
		}
		if start == "" {
			start = t.Name
		}
		for _, dep := range t.DependsOn {
			if !placed[dep] {
				deps[t.Name] = append(deps[t.Name], dep)
			}
		}
	}

	seen := make(map[string]int)
	path := []string{}
	current := start

	for {
		if at, ok := seen[current]; ok {
			return append(path[at:], current)
		}
		seen[current] = len(path)
		path = append(path, current)

		next := deps[current]
		if len(next) == 0 {
			// Shouldn't happen for a stuck sort, but don't loop forever.
			return path
		}
		current = next[0]
	}
}
