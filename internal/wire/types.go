package wire

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UpdateStrategy chooses the relative ordering of stop-old and start-new
// when a workload's configuration changes. Values are normative (see
// ankaios.proto); never renumber.
type UpdateStrategy int32

const (
	UpdateStrategyUnspecified  UpdateStrategy = 0
	UpdateStrategyAtLeastOnce UpdateStrategy = 1
	UpdateStrategyAtMostOnce  UpdateStrategy = 2
)

func (s UpdateStrategy) String() string {
	switch s {
	case UpdateStrategyAtLeastOnce:
		return "AT_LEAST_ONCE"
	case UpdateStrategyAtMostOnce:
		return "AT_MOST_ONCE"
	default:
		return "UNSPECIFIED"
	}
}

// UnmarshalYAML accepts either the normative integer or the human-authored
// enum name (the form the startup state artifact uses), so a hand-written
// document can say "AT_MOST_ONCE" instead of "2".
func (s *UpdateStrategy) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		switch raw {
		case "", "UNSPECIFIED":
			*s = UpdateStrategyUnspecified
		case "AT_LEAST_ONCE":
			*s = UpdateStrategyAtLeastOnce
		case "AT_MOST_ONCE":
			*s = UpdateStrategyAtMostOnce
		default:
			// An integer scalar also decodes into a string.
			var n int32
			if err := value.Decode(&n); err != nil {
				return fmt.Errorf("wire: unknown updateStrategy %q", raw)
			}
			*s = UpdateStrategy(n)
		}
		return nil
	}
	var n int32
	if err := value.Decode(&n); err != nil {
		return err
	}
	*s = UpdateStrategy(n)
	return nil
}

// AddCondition gates promotion of a dependent workload out of
// EXEC_WAITING_TO_START.
type AddCondition int32

const (
	AddCondRunning   AddCondition = 0
	AddCondSucceeded AddCondition = 1
	AddCondFailed    AddCondition = 2
)

func (c AddCondition) String() string {
	switch c {
	case AddCondSucceeded:
		return "ADD_COND_SUCCEEDED"
	case AddCondFailed:
		return "ADD_COND_FAILED"
	default:
		return "ADD_COND_RUNNING"
	}
}

// UnmarshalYAML accepts either the normative integer or the human-authored
// enum name used by the startup state artifact's workload dependency maps.
func (c *AddCondition) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		switch raw {
		case "", "ADD_COND_RUNNING":
			*c = AddCondRunning
		case "ADD_COND_SUCCEEDED":
			*c = AddCondSucceeded
		case "ADD_COND_FAILED":
			*c = AddCondFailed
		default:
			// An integer scalar also decodes into a string.
			var n int32
			if err := value.Decode(&n); err != nil {
				return fmt.Errorf("wire: unknown add condition %q", raw)
			}
			*c = AddCondition(n)
		}
		return nil
	}
	var n int32
	if err := value.Decode(&n); err != nil {
		return err
	}
	*c = AddCondition(n)
	return nil
}

// DeleteCondition gates promotion of a workload being removed out of
// EXEC_WAITING_TO_STOP.
type DeleteCondition int32

const (
	DelCondRunning                DeleteCondition = 0
	DelCondNotPendingNorRunning   DeleteCondition = 1
)

// Operation is the inferred or declared kind of a patch against a field-mask
// path: whether the path is being added, removed, or replaced.
type Operation int32

const (
	OpUnspecified Operation = 0
	OpAdd         Operation = 1
	OpRemove      Operation = 2
	OpReplace     Operation = 3
)

// ExecutionState is the authoritative per-(workloadName,agentName) lifecycle
// state. Values 0-8 and 10 are assigned; 9 is an intentional gap preserved
// for wire compatibility. An incoming 9 decodes to ExecUnknown.
type ExecutionState int32

const (
	ExecPending         ExecutionState = 0
	ExecWaitingToStart  ExecutionState = 1
	ExecStarting        ExecutionState = 2
	ExecRunning         ExecutionState = 3
	ExecSucceeded       ExecutionState = 4
	ExecFailed          ExecutionState = 5
	ExecWaitingToStop   ExecutionState = 6
	ExecStopping        ExecutionState = 7
	ExecRemoved         ExecutionState = 8
	execGap9            ExecutionState = 9
	ExecUnknown         ExecutionState = 10
)

func (e ExecutionState) String() string {
	switch e {
	case ExecPending:
		return "EXEC_PENDING"
	case ExecWaitingToStart:
		return "EXEC_WAITING_TO_START"
	case ExecStarting:
		return "EXEC_STARTING"
	case ExecRunning:
		return "EXEC_RUNNING"
	case ExecSucceeded:
		return "EXEC_SUCCEEDED"
	case ExecFailed:
		return "EXEC_FAILED"
	case ExecWaitingToStop:
		return "EXEC_WAITING_TO_STOP"
	case ExecStopping:
		return "EXEC_STOPPING"
	case ExecRemoved:
		return "EXEC_REMOVED"
	default:
		return "EXEC_UNKNOWN"
	}
}

// NormalizeExecutionState maps the preserved gap value (and any other
// unrecognized value) to ExecUnknown.
func NormalizeExecutionState(v int32) ExecutionState {
	switch ExecutionState(v) {
	case ExecPending, ExecWaitingToStart, ExecStarting, ExecRunning, ExecSucceeded,
		ExecFailed, ExecWaitingToStop, ExecStopping, ExecRemoved, ExecUnknown:
		return ExecutionState(v)
	default:
		return ExecUnknown
	}
}

// Cronjob binds a cron schedule to a workload name. Dangling Workload
// references are a ValidationError at admission time.
type Cronjob struct {
	Workload string `json:"workload" yaml:"workload"`
	Schedule string `json:"schedule" yaml:"schedule"`
}

// AccessRule is a single allow/deny entry evaluated by the access control
// filter against an inferred patch Operation and the field-mask path it
// touches.
type AccessRule struct {
	Operation  Operation `json:"operation" yaml:"operation"`
	UpdateMask []string  `json:"updateMask,omitempty" yaml:"updateMask,omitempty"`
	Value      []string  `json:"value,omitempty" yaml:"value,omitempty"`
}

// AccessRights is the allow/deny rule set attached to a Workload. It is
// checked only for paths under that workload; no rule set applies to other
// paths.
type AccessRights struct {
	Allow []AccessRule `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny  []AccessRule `json:"deny,omitempty" yaml:"deny,omitempty"`
}

// Workload is a named, runtime-specific unit of deployable work pinned to
// one agent.
type Workload struct {
	Agent          string                   `json:"agent" yaml:"agent"`
	Runtime        string                   `json:"runtime" yaml:"runtime"`
	RuntimeConfig  string                   `json:"runtimeConfig" yaml:"runtimeConfig"`
	Restart        bool                     `json:"restart" yaml:"restart"`
	UpdateStrategy UpdateStrategy           `json:"updateStrategy" yaml:"updateStrategy"`
	Dependencies   map[string]AddCondition `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Tags           map[string]string        `json:"tags,omitempty" yaml:"tags,omitempty"`
	AccessRights   AccessRights             `json:"accessRights" yaml:"accessRights,omitempty"`
}

// State is the declarative desired (or current) state tree: workloads keyed
// by name, opaque string configs, and cron bindings. Mirrors the structured
// text startup state artifact's top-level keys (§6).
type State struct {
	Workloads map[string]*Workload `json:"workloads" yaml:"workloads"`
	Configs   map[string]string    `json:"configs" yaml:"configs"`
	Cronjobs  map[string]*Cronjob  `json:"cronjobs" yaml:"cronjobs"`
}

// NewState returns a State with all maps initialized.
func NewState() *State {
	return &State{
		Workloads: map[string]*Workload{},
		Configs:   map[string]string{},
		Cronjobs:  map[string]*Cronjob{},
	}
}

// WorkloadState is a single authoritative execution-state report for a
// (workloadName, agentName) pair.
type WorkloadState struct {
	WorkloadName   string         `json:"workloadName"`
	AgentName      string         `json:"agentName"`
	ExecutionState ExecutionState `json:"executionState"`
}

// CompleteState is the triple returned in full-state queries.
type CompleteState struct {
	StartupState   *State          `json:"startupState"`
	CurrentState   *State          `json:"currentState"`
	WorkloadStates []WorkloadState `json:"workloadStates"`
}

// AddedWorkload is one entry of a per-agent UpdateWorkload diff describing a
// workload that should now be running.
type AddedWorkload struct {
	Name           string
	Agent          string
	Runtime        string
	RuntimeConfig  string
	Restart        bool
	UpdateStrategy UpdateStrategy
	Dependencies   map[string]AddCondition
	Tags           map[string]string
}

// DeletedWorkload is one entry of a per-agent UpdateWorkload diff
// describing a workload that should now be stopped and removed.
type DeletedWorkload struct {
	Name         string
	Agent        string
	Dependencies map[string]DeleteCondition
}

// UpdateWorkloadMsg is the FromServer payload fanning a diff out to one
// agent.
type UpdateWorkloadMsg struct {
	AddedWorkloads   []AddedWorkload
	DeletedWorkloads []DeletedWorkload
}

// UpdateWorkloadStateMsg carries state reports in either direction: agent to
// server (raw reports) or server to agent (aggregated republish).
type UpdateWorkloadStateMsg struct {
	WorkloadStates []WorkloadState
}

// AgentHello is the mandatory first message on an agent stream.
type AgentHello struct {
	AgentName string
}

// Goodbye is a graceful close notification.
type Goodbye struct{}

// UpdateStateRequest asks the server to apply new_state to currentState,
// scoped to UpdateMask.
type UpdateStateRequest struct {
	NewState   *State
	UpdateMask []string
}

// CompleteStateRequest asks the server to project CompleteState onto
// FieldMask.
type CompleteStateRequest struct {
	FieldMask []string
}

// RequestContent is the oneof payload of a Request: exactly one of
// UpdateState or CompleteStateReq is non-nil.
type RequestContent struct {
	UpdateState     *UpdateStateRequest
	CompleteStateReq *CompleteStateRequest
}

// Request is a CLI- or agent-originated call awaiting a Response carrying
// the same RequestID.
type Request struct {
	RequestID string
	Content   RequestContent
}

// ResponseContent is the oneof payload of a Response: exactly one field is
// non-nil.
type ResponseContent struct {
	Success       *Success
	Error         *Error
	CompleteState *CompleteState
}

// Success is the empty positive-acknowledgement response payload.
type Success struct{}

// Error carries a human-readable failure message; the taxonomy category is
// not transmitted, only rendered into Message.
type Error struct {
	Message string
}

// Response answers a Request with the same RequestID.
type Response struct {
	RequestID string
	Content   ResponseContent
}

// ToServerContent is the oneof payload of a ToServer envelope: exactly one
// field is non-nil.
type ToServerContent struct {
	AgentHello          *AgentHello
	UpdateWorkloadState *UpdateWorkloadStateMsg
	Request             *Request
	Goodbye             *Goodbye
}

// ToServer is the agent/CLI-to-server envelope, a tagged union over
// ToServerContent.
type ToServer struct {
	Content ToServerContent
}

// FromServerContent is the oneof payload of a FromServer envelope: exactly
// one field is non-nil.
type FromServerContent struct {
	UpdateWorkload      *UpdateWorkloadMsg
	UpdateWorkloadState *UpdateWorkloadStateMsg
	Response            *Response
}

// FromServer is the server-to-agent/CLI envelope, a tagged union over
// FromServerContent.
type FromServer struct {
	Content FromServerContent
}
