package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"foundation.ai/internal/protocol"
	"foundation.ai/internal/sim/agents"
)

// AgentSource resolves composed agents by id.
type AgentSource interface {
	Agent(id string) (*agents.Agent, bool)
}

// Server exposes composed action spaces to remote policies: a client says
// HELLO with an agent id, receives that agent's ACTION_SPACE and may then
// send DECODE requests for raw policy outputs.
type Server struct {
	src   AgentSource
	runID string
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(src AgentSource, runID string, logger *log.Logger) *Server {
	return &Server{
		src:   src,
		runID: runID,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		a := s.handshake(conn)
		if a == nil {
			return
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := writeJSON(conn, s.handle(a, msg)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handle(a *agents.Agent, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return ack("", protocol.ErrProtoBadRequest, "malformed json")
	}
	if base.Type != protocol.TypeDecode {
		return ack(base.Type, protocol.ErrProtoBadRequest, "unexpected message type")
	}
	var req protocol.DecodeMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		return ack(base.Type, protocol.ErrProtoBadRequest, err.Error())
	}
	if req.ProtocolVersion != protocol.Version {
		return ack(req.ReqID, protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	choices, err := a.ParseAction(req.Action)
	if err != nil {
		return ack(req.ReqID, agents.ErrorCode(err), err.Error())
	}
	out := protocol.DecodedMsg{
		Type:            protocol.TypeDecoded,
		ProtocolVersion: protocol.Version,
		ReqID:           req.ReqID,
		Choices:         make([]protocol.HeadChoice, len(choices)),
	}
	for i, c := range choices {
		out.Choices[i] = protocol.HeadChoice{Name: c.Name, Choice: c.Choice}
	}
	return out
}

func (s *Server) handshake(conn *websocket.Conn) *agents.Agent {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = writeJSON(conn, ack(protocol.TypeHello, protocol.ErrProtoBadRequest, "expected HELLO"))
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		_ = writeJSON(conn, ack(protocol.TypeHello, protocol.ErrProtoBadRequest, err.Error()))
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, ack(protocol.TypeHello, protocol.ErrProtoBadRequest, "bad protocol_version"))
		return nil
	}

	a, ok := s.src.Agent(hello.AgentID)
	if !ok {
		_ = writeJSON(conn, ack(protocol.TypeHello, protocol.ErrAgentNotFound, "unknown agent "+hello.AgentID))
		return nil
	}
	space, err := ActionSpace(s.runID, a)
	if err != nil {
		_ = writeJSON(conn, ack(protocol.TypeHello, agents.ErrorCode(err), err.Error()))
		return nil
	}
	if err := writeJSON(conn, space); err != nil {
		return nil
	}
	if s.log != nil {
		s.log.Printf("ws: agent=%s client=%q heads=%d", a.ID(), hello.ClientName, len(space.Heads))
	}
	return a
}

// ActionSpace describes a composed agent on the wire.
func ActionSpace(runID string, a *agents.Agent) (protocol.ActionSpaceMsg, error) {
	spaces, err := a.ActionSpaces()
	if err != nil {
		return protocol.ActionSpaceMsg{}, err
	}
	heads := a.Actions()
	out := protocol.ActionSpaceMsg{
		Type:                 protocol.TypeActionSpace,
		ProtocolVersion:      protocol.Version,
		RunID:                runID,
		AgentID:              a.ID(),
		AgentKind:            string(a.Kind()),
		MultiAction:          a.MultiAction(),
		Heads:                make([]protocol.ActionHead, len(heads)),
		ActionSpaces:         spaces,
		TotalActions:         a.TotalActions(),
		PassivePlaceholder:   a.IsPassivePlaceholder(),
		SingleActionFastPath: a.IsSingleActionFastPath(),
	}
	for i, h := range heads {
		out.Heads[i] = protocol.ActionHead{Name: h.Name, N: h.N}
	}
	if !a.MultiAction() {
		flat, err := a.SingleActionMap()
		if err != nil {
			return out, err
		}
		for _, f := range flat {
			out.SingleActionMap = append(out.SingleActionMap, protocol.FlatAction{Index: f.Index, Name: f.Name, Choice: f.Choice})
		}
	}
	return out, nil
}

func ack(ackFor, code, message string) protocol.AckMsg {
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          ackFor,
		Accepted:        false,
		Code:            code,
		Message:         message,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
