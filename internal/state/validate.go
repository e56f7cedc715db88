package state

import "github.com/simone-weiss/ankaios/internal/wire"

// Validate checks the invariants spec.md §3 attaches to State: unique
// workload names (guaranteed by the map itself), every Cronjob.Workload
// referencing an existing workload, dependencies referencing workload
// names present in the same State, and an acyclic dependency graph.
func Validate(s *wire.State) error {
	for name, w := range s.Workloads {
		for dep := range w.Dependencies {
			if _, ok := s.Workloads[dep]; !ok {
				return NewValidationError("workload %q depends on unknown workload %q", name, dep)
			}
		}
	}
	for name, c := range s.Cronjobs {
		if _, ok := s.Workloads[c.Workload]; !ok {
			return NewValidationError("cronjob %q references unknown workload %q", name, c.Workload)
		}
	}
	if err := DetectCycle(s.Workloads); err != nil {
		return err
	}
	return nil
}
