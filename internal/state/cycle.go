package state

import "github.com/simone-weiss/ankaios/internal/wire"

// color marks DFS visitation status for cycle detection.
type color int

const (
	white color = iota
	gray
	black
)

// DetectCycle runs a recursive DFS across the workload
// dependency graph (edges: workload -> workload it depends on) and reports
// the first cycle found, if any, as a ValidationError. Stored as adjacency
// lists keyed by workload name, per spec §9's design note.
func DetectCycle(workloads map[string]*wire.Workload) error {
	colors := make(map[string]color, len(workloads))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch colors[name] {
		case black:
			return nil
		case gray:
			cycleStart := 0
			for i, n := range path {
				if n == name {
					cycleStart = i
					break
				}
			}
			return NewValidationError("cyclic dependency: %v", append(path[cycleStart:], name))
		}

		colors[name] = gray
		path = append(path, name)

		w, ok := workloads[name]
		if ok {
			for dep := range w.Dependencies {
				if _, exists := workloads[dep]; !exists {
					continue // dangling dependency is a separate validation concern
				}
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		colors[name] = black
		return nil
	}

	for name := range workloads {
		if colors[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}
