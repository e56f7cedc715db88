// Package accesscontrol implements the Access Control Filter: admission of
// a proposed (update_mask, new_state) against the AccessRights.allow/deny
// rules attached to the State's workloads. Paths outside
// currentState.workloads.<name> are not checked against any rule set and
// are admitted.
package accesscontrol
