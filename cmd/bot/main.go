package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"foundation.ai/internal/protocol"
)

// bot plays a uniform random policy for one agent: it samples every action
// space it was given and asks the server to decode the sample.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		agentID  = flag.String("agent", "0", "agent id to attach to")
		name     = flag.String("name", "bot", "client name")
		every    = flag.Duration("every", time.Second, "decode interval")
		seed     = flag.Int64("seed", 0, "sampler seed (0: time based)")
		maxSteps = flag.Int("steps", 0, "stop after this many decodes (0: run until interrupted)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentID:         *agentID,
		ClientName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		logger.Fatalf("decode: %v", err)
	}
	if base.Type != protocol.TypeActionSpace {
		logger.Fatalf("handshake rejected: %s", msg)
	}
	var space protocol.ActionSpaceMsg
	if err := json.Unmarshal(msg, &space); err != nil {
		logger.Fatalf("ACTION_SPACE: %v", err)
	}
	logger.Printf("ACTION_SPACE agent=%s kind=%s heads=%d spaces=%v", space.AgentID, space.AgentKind, len(space.Heads), space.ActionSpaces)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(*seed))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	tick := time.NewTicker(*every)
	defer tick.Stop()

	for step := 1; *maxSteps == 0 || step <= *maxSteps; step++ {
		select {
		case <-stop:
			return
		case <-tick.C:
		}

		req := protocol.DecodeMsg{
			Type:            protocol.TypeDecode,
			ProtocolVersion: protocol.Version,
			ReqID:           fmt.Sprintf("D_%d", step),
			Action:          sample(r, space.ActionSpaces),
		}
		if err := conn.WriteJSON(req); err != nil {
			logger.Printf("send DECODE: %v", err)
			return
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		logger.Printf("%s -> %s", formatInts(req.Action), msg)
	}
}

func sample(r *rand.Rand, spaces []int) []int {
	out := make([]int, len(spaces))
	for i, n := range spaces {
		out[i] = r.Intn(n)
	}
	return out
}

func formatInts(v []int) string {
	b, _ := json.Marshal(v)
	return string(b)
}
