package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// field is one decoded (tag, value) pair from a protowire byte stream.
// Only varint and length-delimited (bytes/message/string) types appear in
// this schema.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

func parseFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: consuming tag: %v", ErrMalformedEnvelope, protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: consuming varint: %v", ErrMalformedEnvelope, protowire.ParseError(m))
			}
			b = b[m:]
			fields = append(fields, field{num: num, typ: typ, varint: v})
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: consuming bytes: %v", ErrMalformedEnvelope, protowire.ParseError(m))
			}
			b = b[m:]
			fields = append(fields, field{num: num, typ: typ, bytes: v})
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("%w: skipping unsupported wire type: %v", ErrMalformedEnvelope, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return fields, nil
}

func decodeStringStringMapEntry(b []byte) (string, string, error) {
	fields, err := parseFields(b)
	if err != nil {
		return "", "", err
	}
	var key, value string
	for _, f := range fields {
		switch f.num {
		case tagMapEntryKey:
			key = string(f.bytes)
		case tagMapEntryValue:
			value = string(f.bytes)
		}
	}
	return key, value, nil
}

func decodeAddConditionMapEntry(b []byte) (string, AddCondition, error) {
	fields, err := parseFields(b)
	if err != nil {
		return "", 0, err
	}
	var key string
	var value AddCondition
	for _, f := range fields {
		switch f.num {
		case tagMapEntryKey:
			key = string(f.bytes)
		case tagMapEntryValue:
			value = AddCondition(f.varint)
		}
	}
	return key, value, nil
}

func decodeDeleteConditionMapEntry(b []byte) (string, DeleteCondition, error) {
	fields, err := parseFields(b)
	if err != nil {
		return "", 0, err
	}
	var key string
	var value DeleteCondition
	for _, f := range fields {
		switch f.num {
		case tagMapEntryKey:
			key = string(f.bytes)
		case tagMapEntryValue:
			value = DeleteCondition(f.varint)
		}
	}
	return key, value, nil
}

// UnmarshalToServer decodes a ToServer envelope. An unset or unrecognized
// variant is a protocol error per spec: callers must close the connection.
func UnmarshalToServer(data []byte) (*ToServer, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}
	m := &ToServer{}
	for _, f := range fields {
		switch f.num {
		case tagToServerAgentHello:
			hello := &AgentHello{}
			if err := hello.unmarshal(f.bytes); err != nil {
				return nil, err
			}
			m.Content.AgentHello = hello
		case tagToServerUpdateWorkloadState:
			uws := &UpdateWorkloadStateMsg{}
			if err := uws.unmarshal(f.bytes); err != nil {
				return nil, err
			}
			m.Content.UpdateWorkloadState = uws
		case tagToServerRequest:
			req := &Request{}
			if err := req.unmarshal(f.bytes); err != nil {
				return nil, err
			}
			m.Content.Request = req
		case tagToServerGoodbye:
			m.Content.Goodbye = &Goodbye{}
		}
	}
	if m.Content.AgentHello == nil && m.Content.UpdateWorkloadState == nil &&
		m.Content.Request == nil && m.Content.Goodbye == nil {
		return nil, fmt.Errorf("%w: ToServer has no recognized variant", ErrMalformedEnvelope)
	}
	return m, nil
}

// UnmarshalFromServer decodes a FromServer envelope.
func UnmarshalFromServer(data []byte) (*FromServer, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}
	m := &FromServer{}
	for _, f := range fields {
		switch f.num {
		case tagFromServerUpdateWorkload:
			uw := &UpdateWorkloadMsg{}
			if err := uw.unmarshal(f.bytes); err != nil {
				return nil, err
			}
			m.Content.UpdateWorkload = uw
		case tagFromServerUpdateWorkloadState:
			uws := &UpdateWorkloadStateMsg{}
			if err := uws.unmarshal(f.bytes); err != nil {
				return nil, err
			}
			m.Content.UpdateWorkloadState = uws
		case tagFromServerResponse:
			resp := &Response{}
			if err := resp.unmarshal(f.bytes); err != nil {
				return nil, err
			}
			m.Content.Response = resp
		}
	}
	if m.Content.UpdateWorkload == nil && m.Content.UpdateWorkloadState == nil && m.Content.Response == nil {
		return nil, fmt.Errorf("%w: FromServer has no recognized variant", ErrMalformedEnvelope)
	}
	return m, nil
}

func (m *AgentHello) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.num == tagAgentHelloAgentName {
			m.AgentName = string(f.bytes)
		}
	}
	return nil
}

func (m *UpdateWorkloadStateMsg) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.num == tagUpdateWorkloadStateMsgStates {
			var ws WorkloadState
			if err := ws.unmarshal(f.bytes); err != nil {
				return err
			}
			m.WorkloadStates = append(m.WorkloadStates, ws)
		}
	}
	return nil
}

func (m *WorkloadState) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagWorkloadStateName:
			m.WorkloadName = string(f.bytes)
		case tagWorkloadStateAgentName:
			m.AgentName = string(f.bytes)
		case tagWorkloadStateExecState:
			m.ExecutionState = NormalizeExecutionState(int32(f.varint))
		}
	}
	return nil
}

func (m *Request) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagRequestRequestID:
			m.RequestID = string(f.bytes)
		case tagRequestUpdateState:
			v := &UpdateStateRequest{}
			if err := v.unmarshal(f.bytes); err != nil {
				return err
			}
			m.Content.UpdateState = v
		case tagRequestCompleteStateReq:
			v := &CompleteStateRequest{}
			if err := v.unmarshal(f.bytes); err != nil {
				return err
			}
			m.Content.CompleteStateReq = v
		}
	}
	return nil
}

func (m *UpdateStateRequest) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagUpdateStateRequestNewState:
			s := NewState()
			if err := s.unmarshal(f.bytes); err != nil {
				return err
			}
			m.NewState = s
		case tagUpdateStateRequestMask:
			m.UpdateMask = append(m.UpdateMask, string(f.bytes))
		}
	}
	return nil
}

func (m *CompleteStateRequest) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.num == tagCompleteStateRequestMask {
			m.FieldMask = append(m.FieldMask, string(f.bytes))
		}
	}
	return nil
}

func (m *UpdateWorkloadMsg) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagUpdateWorkloadMsgAdded:
			var aw AddedWorkload
			if err := aw.unmarshal(f.bytes); err != nil {
				return err
			}
			m.AddedWorkloads = append(m.AddedWorkloads, aw)
		case tagUpdateWorkloadMsgDeleted:
			var dw DeletedWorkload
			if err := dw.unmarshal(f.bytes); err != nil {
				return err
			}
			m.DeletedWorkloads = append(m.DeletedWorkloads, dw)
		}
	}
	return nil
}

func (m *Response) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagResponseRequestID:
			m.RequestID = string(f.bytes)
		case tagResponseSuccess:
			m.Content.Success = &Success{}
		case tagResponseError:
			e := &Error{}
			if err := e.unmarshal(f.bytes); err != nil {
				return err
			}
			m.Content.Error = e
		case tagResponseCompleteState:
			cs := &CompleteState{}
			if err := cs.unmarshal(f.bytes); err != nil {
				return err
			}
			m.Content.CompleteState = cs
		}
	}
	return nil
}

func (m *Error) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.num == tagErrorMessage {
			m.Message = string(f.bytes)
		}
	}
	return nil
}

func (m *CompleteState) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagCompleteStateStartup:
			s := NewState()
			if err := s.unmarshal(f.bytes); err != nil {
				return err
			}
			m.StartupState = s
		case tagCompleteStateCurrent:
			s := NewState()
			if err := s.unmarshal(f.bytes); err != nil {
				return err
			}
			m.CurrentState = s
		case tagCompleteStateWorkloadStates:
			var ws WorkloadState
			if err := ws.unmarshal(f.bytes); err != nil {
				return err
			}
			m.WorkloadStates = append(m.WorkloadStates, ws)
		}
	}
	return nil
}

func (m *State) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagStateWorkloads:
			entry, err := parseFields(f.bytes)
			if err != nil {
				return err
			}
			var key string
			w := &Workload{}
			for _, ef := range entry {
				switch ef.num {
				case tagMapEntryKey:
					key = string(ef.bytes)
				case tagMapEntryValue:
					if err := w.unmarshal(ef.bytes); err != nil {
						return err
					}
				}
			}
			if key != "" {
				m.Workloads[key] = w
			}
		case tagStateConfigs:
			key, value, err := decodeStringStringMapEntry(f.bytes)
			if err != nil {
				return err
			}
			m.Configs[key] = value
		case tagStateCronjobs:
			entry, err := parseFields(f.bytes)
			if err != nil {
				return err
			}
			var key string
			c := &Cronjob{}
			for _, ef := range entry {
				switch ef.num {
				case tagMapEntryKey:
					key = string(ef.bytes)
				case tagMapEntryValue:
					if err := c.unmarshal(ef.bytes); err != nil {
						return err
					}
				}
			}
			if key != "" {
				m.Cronjobs[key] = c
			}
		}
	}
	return nil
}

func (m *Cronjob) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagCronjobWorkload:
			m.Workload = string(f.bytes)
		case tagCronjobSchedule:
			m.Schedule = string(f.bytes)
		}
	}
	return nil
}

func (m *Workload) unmarshal(b []byte) error {
	m.Dependencies = map[string]AddCondition{}
	m.Tags = map[string]string{}
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagWorkloadAgent:
			m.Agent = string(f.bytes)
		case tagWorkloadRuntime:
			m.Runtime = string(f.bytes)
		case tagWorkloadRuntimeConfig:
			m.RuntimeConfig = string(f.bytes)
		case tagWorkloadRestart:
			m.Restart = f.varint != 0
		case tagWorkloadUpdateStrategy:
			m.UpdateStrategy = UpdateStrategy(f.varint)
		case tagWorkloadDependencies:
			key, value, err := decodeAddConditionMapEntry(f.bytes)
			if err != nil {
				return err
			}
			m.Dependencies[key] = value
		case tagWorkloadTags:
			key, value, err := decodeStringStringMapEntry(f.bytes)
			if err != nil {
				return err
			}
			m.Tags[key] = value
		case tagWorkloadAccessRights:
			if err := m.AccessRights.unmarshal(f.bytes); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *AccessRights) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagAccessRightsAllow:
			var r AccessRule
			if err := r.unmarshal(f.bytes); err != nil {
				return err
			}
			m.Allow = append(m.Allow, r)
		case tagAccessRightsDeny:
			var r AccessRule
			if err := r.unmarshal(f.bytes); err != nil {
				return err
			}
			m.Deny = append(m.Deny, r)
		}
	}
	return nil
}

func (m *AccessRule) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagAccessRuleOperation:
			m.Operation = Operation(f.varint)
		case tagAccessRuleUpdateMask:
			m.UpdateMask = append(m.UpdateMask, string(f.bytes))
		case tagAccessRuleValue:
			m.Value = append(m.Value, string(f.bytes))
		}
	}
	return nil
}

func (m *AddedWorkload) unmarshal(b []byte) error {
	m.Dependencies = map[string]AddCondition{}
	m.Tags = map[string]string{}
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagAddedWorkloadName:
			m.Name = string(f.bytes)
		case tagAddedWorkloadAgent:
			m.Agent = string(f.bytes)
		case tagAddedWorkloadRuntime:
			m.Runtime = string(f.bytes)
		case tagAddedWorkloadRuntimeConfig:
			m.RuntimeConfig = string(f.bytes)
		case tagAddedWorkloadRestart:
			m.Restart = f.varint != 0
		case tagAddedWorkloadUpdateStrategy:
			m.UpdateStrategy = UpdateStrategy(f.varint)
		case tagAddedWorkloadDependencies:
			key, value, err := decodeAddConditionMapEntry(f.bytes)
			if err != nil {
				return err
			}
			m.Dependencies[key] = value
		case tagAddedWorkloadTags:
			key, value, err := decodeStringStringMapEntry(f.bytes)
			if err != nil {
				return err
			}
			m.Tags[key] = value
		}
	}
	return nil
}

func (m *DeletedWorkload) unmarshal(b []byte) error {
	m.Dependencies = map[string]DeleteCondition{}
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case tagDeletedWorkloadName:
			m.Name = string(f.bytes)
		case tagDeletedWorkloadAgent:
			m.Agent = string(f.bytes)
		case tagDeletedWorkloadDependencies:
			key, value, err := decodeDeleteConditionMapEntry(f.bytes)
			if err != nil {
				return err
			}
			m.Dependencies[key] = value
		}
	}
	return nil
}
