package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentID         string `json:"agent_id"`
	ClientName      string `json:"client_name,omitempty"`
}

// ACTION_SPACE (server -> client): the composed action interface of one agent.
type ActionSpaceMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id,omitempty"`
	AgentID         string `json:"agent_id"`
	AgentKind       string `json:"agent_kind"`
	MultiAction     bool   `json:"multi_action_mode"`

	Heads        []ActionHead `json:"heads"`
	ActionSpaces []int        `json:"action_spaces"`
	TotalActions int          `json:"total_actions"`

	PassivePlaceholder   bool `json:"passive_placeholder,omitempty"`
	SingleActionFastPath bool `json:"single_action_fast_path,omitempty"`

	// Populated for single-head agents only; index 0 is the no-op and is omitted.
	SingleActionMap []FlatAction `json:"single_action_map,omitempty"`
}

type ActionHead struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

type FlatAction struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Choice int    `json:"choice"`
}

// DECODE (client -> server): raw policy output for the handshaked agent.
type DecodeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Action          []int  `json:"action"`
}

// DECODED (server -> client)
type DecodedMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	ReqID           string       `json:"req_id"`
	Choices         []HeadChoice `json:"choices"`
}

type HeadChoice struct {
	Name   string `json:"name"`
	Choice int    `json:"choice"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}
