package accesscontrol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/simone-weiss/ankaios/internal/fieldmask"
	"github.com/simone-weiss/ankaios/internal/wire"
)

// PermissionDeniedError is returned when a deny rule matches, or an allow
// list exists and no entry matches, for a path the request touches.
type PermissionDeniedError struct {
	Path string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Path)
}

// wrapped mirrors state.wrappedCurrentState so access-control paths
// ("currentState.workloads.nginx.runtime") resolve against the same
// CompleteState-shaped document the State Manager projects masks against.
type wrapped struct {
	CurrentState *wire.State `json:"currentState"`
}

// Admit evaluates every path in updateMask against the AccessRights of its
// owning workload (or, for non-workload paths, no rule set — admitted by
// default, since spec.md does not define a root rule configuration). The
// first denying or unmatched-allow-listed path fails the whole request;
// currentState is left unchanged by the caller in that case.
func Admit(old, newState *wire.State, updateMask []string) error {
	oldDoc, err := json.Marshal(wrapped{CurrentState: old})
	if err != nil {
		return fmt.Errorf("accesscontrol: marshaling old state: %w", err)
	}
	newDoc, err := json.Marshal(wrapped{CurrentState: newState})
	if err != nil {
		return fmt.Errorf("accesscontrol: marshaling new state: %w", err)
	}

	for _, path := range updateMask {
		op := classify(oldDoc, newDoc, path)
		rights := owningAccessRights(old, newState, path)
		if rights == nil {
			continue
		}
		if err := evaluate(*rights, op, path); err != nil {
			return err
		}
	}
	return nil
}

func classify(oldDoc, newDoc []byte, path string) wire.Operation {
	switch fieldmask.Classify(oldDoc, newDoc, path) {
	case fieldmask.OpAdd:
		return wire.OpAdd
	case fieldmask.OpRemove:
		return wire.OpRemove
	default:
		return wire.OpReplace
	}
}

// owningAccessRights resolves the AccessRights of the workload a path
// addresses, preferring the new state (covers ADD, where old lacks the
// workload) and falling back to old (covers REMOVE).
func owningAccessRights(old, newState *wire.State, path string) *wire.AccessRights {
	name, ok := workloadNameFromPath(path)
	if !ok {
		return nil
	}
	if w, ok := newState.Workloads[name]; ok {
		return &w.AccessRights
	}
	if w, ok := old.Workloads[name]; ok {
		return &w.AccessRights
	}
	return nil
}

// workloadNameFromPath extracts the workload name from a path shaped like
// "currentState.workloads.<name>[.<rest>]".
func workloadNameFromPath(path string) (string, bool) {
	const prefix = "currentState.workloads."
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := path[len(prefix):]
	if idx := strings.IndexByte(rest, '.'); idx >= 0 {
		rest = rest[:idx]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

func evaluate(rights wire.AccessRights, op wire.Operation, path string) error {
	for _, rule := range rights.Deny {
		if ruleMatches(rule, op, path) {
			return &PermissionDeniedError{Path: path}
		}
	}
	if len(rights.Allow) == 0 {
		return nil
	}
	for _, rule := range rights.Allow {
		if ruleMatches(rule, op, path) {
			return nil
		}
	}
	return &PermissionDeniedError{Path: path}
}

func ruleMatches(rule wire.AccessRule, op wire.Operation, path string) bool {
	if rule.Operation != op {
		return false
	}
	matched := false
	for _, mask := range rule.UpdateMask {
		if mask == path || strings.HasPrefix(path, mask+".") {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	// rule.Value is not consulted: a rule whose mask covers path matches
	// whatever value the path holds, with or without a Value list.
	return true
}
