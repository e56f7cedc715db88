package wire

import (
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendVarint(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// appendMessage always emits the field, even for a zero-length child, since
// the child's presence (not its content) carries oneof/optional meaning.
func appendMessage(b []byte, num protowire.Number, child []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, child)
}

func appendStrings(b []byte, num protowire.Number, vs []string) []byte {
	for _, v := range vs {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	return b
}

// sortedKeys returns map keys sorted, so Marshal output is deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendStringStringMap(b []byte, num protowire.Number, m map[string]string) []byte {
	for _, k := range sortedKeys(m) {
		var entry []byte
		entry = appendString(entry, tagMapEntryKey, k)
		entry = appendString(entry, tagMapEntryValue, m[k])
		b = appendMessage(b, num, entry)
	}
	return b
}

func appendAddConditionMap(b []byte, num protowire.Number, m map[string]AddCondition) []byte {
	for _, k := range sortedKeys(m) {
		var entry []byte
		entry = appendString(entry, tagMapEntryKey, k)
		entry = appendVarint(entry, tagMapEntryValue, int64(m[k]))
		b = appendMessage(b, num, entry)
	}
	return b
}

func appendDeleteConditionMap(b []byte, num protowire.Number, m map[string]DeleteCondition) []byte {
	for _, k := range sortedKeys(m) {
		var entry []byte
		entry = appendString(entry, tagMapEntryKey, k)
		entry = appendVarint(entry, tagMapEntryValue, int64(m[k]))
		b = appendMessage(b, num, entry)
	}
	return b
}

// Marshal encodes a ToServer envelope.
func (m *ToServer) Marshal() []byte {
	var b []byte
	switch {
	case m.Content.AgentHello != nil:
		b = appendMessage(b, tagToServerAgentHello, m.Content.AgentHello.Marshal())
	case m.Content.UpdateWorkloadState != nil:
		b = appendMessage(b, tagToServerUpdateWorkloadState, m.Content.UpdateWorkloadState.Marshal())
	case m.Content.Request != nil:
		b = appendMessage(b, tagToServerRequest, m.Content.Request.Marshal())
	case m.Content.Goodbye != nil:
		b = appendMessage(b, tagToServerGoodbye, m.Content.Goodbye.Marshal())
	}
	return b
}

// Marshal encodes a FromServer envelope.
func (m *FromServer) Marshal() []byte {
	var b []byte
	switch {
	case m.Content.UpdateWorkload != nil:
		b = appendMessage(b, tagFromServerUpdateWorkload, m.Content.UpdateWorkload.Marshal())
	case m.Content.UpdateWorkloadState != nil:
		b = appendMessage(b, tagFromServerUpdateWorkloadState, m.Content.UpdateWorkloadState.Marshal())
	case m.Content.Response != nil:
		b = appendMessage(b, tagFromServerResponse, m.Content.Response.Marshal())
	}
	return b
}

func (m *AgentHello) Marshal() []byte {
	var b []byte
	b = appendString(b, tagAgentHelloAgentName, m.AgentName)
	return b
}

func (m *Goodbye) Marshal() []byte { return []byte{} }

func (m *UpdateWorkloadStateMsg) Marshal() []byte {
	var b []byte
	for i := range m.WorkloadStates {
		b = appendMessage(b, tagUpdateWorkloadStateMsgStates, m.WorkloadStates[i].Marshal())
	}
	return b
}

func (m *WorkloadState) Marshal() []byte {
	var b []byte
	b = appendString(b, tagWorkloadStateName, m.WorkloadName)
	b = appendString(b, tagWorkloadStateAgentName, m.AgentName)
	b = appendVarint(b, tagWorkloadStateExecState, int64(m.ExecutionState))
	return b
}

func (m *Request) Marshal() []byte {
	var b []byte
	b = appendString(b, tagRequestRequestID, m.RequestID)
	switch {
	case m.Content.UpdateState != nil:
		b = appendMessage(b, tagRequestUpdateState, m.Content.UpdateState.Marshal())
	case m.Content.CompleteStateReq != nil:
		b = appendMessage(b, tagRequestCompleteStateReq, m.Content.CompleteStateReq.Marshal())
	}
	return b
}

func (m *UpdateStateRequest) Marshal() []byte {
	var b []byte
	if m.NewState != nil {
		b = appendMessage(b, tagUpdateStateRequestNewState, m.NewState.Marshal())
	}
	b = appendStrings(b, tagUpdateStateRequestMask, m.UpdateMask)
	return b
}

func (m *CompleteStateRequest) Marshal() []byte {
	var b []byte
	b = appendStrings(b, tagCompleteStateRequestMask, m.FieldMask)
	return b
}

func (m *UpdateWorkloadMsg) Marshal() []byte {
	var b []byte
	for i := range m.AddedWorkloads {
		b = appendMessage(b, tagUpdateWorkloadMsgAdded, m.AddedWorkloads[i].Marshal())
	}
	for i := range m.DeletedWorkloads {
		b = appendMessage(b, tagUpdateWorkloadMsgDeleted, m.DeletedWorkloads[i].Marshal())
	}
	return b
}

func (m *Response) Marshal() []byte {
	var b []byte
	b = appendString(b, tagResponseRequestID, m.RequestID)
	switch {
	case m.Content.Success != nil:
		b = appendMessage(b, tagResponseSuccess, m.Content.Success.Marshal())
	case m.Content.Error != nil:
		b = appendMessage(b, tagResponseError, m.Content.Error.Marshal())
	case m.Content.CompleteState != nil:
		b = appendMessage(b, tagResponseCompleteState, m.Content.CompleteState.Marshal())
	}
	return b
}

func (m *Success) Marshal() []byte { return []byte{} }

func (m *Error) Marshal() []byte {
	var b []byte
	b = appendString(b, tagErrorMessage, m.Message)
	return b
}

func (m *CompleteState) Marshal() []byte {
	var b []byte
	if m.StartupState != nil {
		b = appendMessage(b, tagCompleteStateStartup, m.StartupState.Marshal())
	}
	if m.CurrentState != nil {
		b = appendMessage(b, tagCompleteStateCurrent, m.CurrentState.Marshal())
	}
	for i := range m.WorkloadStates {
		b = appendMessage(b, tagCompleteStateWorkloadStates, m.WorkloadStates[i].Marshal())
	}
	return b
}

func (m *State) Marshal() []byte {
	var b []byte
	for _, name := range sortedKeys(m.Workloads) {
		var entry []byte
		entry = appendString(entry, tagMapEntryKey, name)
		entry = appendMessage(entry, tagMapEntryValue, m.Workloads[name].Marshal())
		b = appendMessage(b, tagStateWorkloads, entry)
	}
	b = appendStringStringMap(b, tagStateConfigs, m.Configs)
	for _, name := range sortedKeys(m.Cronjobs) {
		var entry []byte
		entry = appendString(entry, tagMapEntryKey, name)
		entry = appendMessage(entry, tagMapEntryValue, m.Cronjobs[name].Marshal())
		b = appendMessage(b, tagStateCronjobs, entry)
	}
	return b
}

func (m *Cronjob) Marshal() []byte {
	if m == nil {
		return []byte{}
	}
	var b []byte
	b = appendString(b, tagCronjobWorkload, m.Workload)
	b = appendString(b, tagCronjobSchedule, m.Schedule)
	return b
}

func (m *Workload) Marshal() []byte {
	if m == nil {
		return []byte{}
	}
	var b []byte
	b = appendString(b, tagWorkloadAgent, m.Agent)
	b = appendString(b, tagWorkloadRuntime, m.Runtime)
	b = appendString(b, tagWorkloadRuntimeConfig, m.RuntimeConfig)
	b = appendBool(b, tagWorkloadRestart, m.Restart)
	b = appendVarint(b, tagWorkloadUpdateStrategy, int64(m.UpdateStrategy))
	b = appendAddConditionMap(b, tagWorkloadDependencies, m.Dependencies)
	b = appendStringStringMap(b, tagWorkloadTags, m.Tags)
	if len(m.AccessRights.Allow) > 0 || len(m.AccessRights.Deny) > 0 {
		b = appendMessage(b, tagWorkloadAccessRights, m.AccessRights.Marshal())
	}
	return b
}

func (m *AccessRights) Marshal() []byte {
	var b []byte
	for i := range m.Allow {
		b = appendMessage(b, tagAccessRightsAllow, m.Allow[i].Marshal())
	}
	for i := range m.Deny {
		b = appendMessage(b, tagAccessRightsDeny, m.Deny[i].Marshal())
	}
	return b
}

func (m *AccessRule) Marshal() []byte {
	var b []byte
	b = appendVarint(b, tagAccessRuleOperation, int64(m.Operation))
	b = appendStrings(b, tagAccessRuleUpdateMask, m.UpdateMask)
	b = appendStrings(b, tagAccessRuleValue, m.Value)
	return b
}

func (m *AddedWorkload) Marshal() []byte {
	var b []byte
	b = appendString(b, tagAddedWorkloadName, m.Name)
	b = appendString(b, tagAddedWorkloadAgent, m.Agent)
	b = appendString(b, tagAddedWorkloadRuntime, m.Runtime)
	b = appendString(b, tagAddedWorkloadRuntimeConfig, m.RuntimeConfig)
	b = appendBool(b, tagAddedWorkloadRestart, m.Restart)
	b = appendVarint(b, tagAddedWorkloadUpdateStrategy, int64(m.UpdateStrategy))
	b = appendAddConditionMap(b, tagAddedWorkloadDependencies, m.Dependencies)
	b = appendStringStringMap(b, tagAddedWorkloadTags, m.Tags)
	return b
}

func (m *DeletedWorkload) Marshal() []byte {
	var b []byte
	b = appendString(b, tagDeletedWorkloadName, m.Name)
	b = appendString(b, tagDeletedWorkloadAgent, m.Agent)
	b = appendDeleteConditionMap(b, tagDeletedWorkloadDependencies, m.Dependencies)
	return b
}
