package snapshot

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version      int    `json:"version"`
	RunID        string `json:"run_id"`
	Scenario     string `json:"scenario"`
	ConfigDigest string `json:"config_digest"`
	Agents       int    `json:"agents"`
}

// ManifestV1 records every composed agent of one environment build.
type ManifestV1 struct {
	Header Header `json:"header"`

	Components []string  `json:"components"`
	Agents     []AgentV1 `json:"agents"`
}

type AgentV1 struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	MultiAction bool   `json:"multi_action_mode"`
	Region      int    `json:"region,omitempty"`
	HasRegion   bool   `json:"has_region,omitempty"`

	Actions      []ActionHeadV1 `json:"actions"`
	TotalActions int            `json:"total_actions"`
	Passive      bool           `json:"passive_placeholder,omitempty"`
	SingleFast   bool           `json:"single_action_fast_path,omitempty"`

	State []StateFieldV1 `json:"state"`
}

type ActionHeadV1 struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

// StateFieldV1 holds a state value as JSON so any value type survives gob.
type StateFieldV1 struct {
	Name string          `json:"name"`
	JSON json.RawMessage `json:"json"`
}

func (m ManifestV1) Agent(id string) (AgentV1, bool) {
	for _, a := range m.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentV1{}, false
}

// DiffAgents lists every difference between two manifests' agents, in want order.
func DiffAgents(want, got []AgentV1) []string {
	var out []string
	gotByID := make(map[string]AgentV1, len(got))
	for _, a := range got {
		gotByID[a.ID] = a
	}
	for i, w := range want {
		g, ok := gotByID[w.ID]
		if !ok {
			out = append(out, fmt.Sprintf("agent %s: missing", w.ID))
			continue
		}
		if i < len(got) && got[i].ID != w.ID {
			out = append(out, fmt.Sprintf("agent %s: position %d holds %s", w.ID, i, got[i].ID))
		}
		if w.Kind != g.Kind || w.MultiAction != g.MultiAction || w.Region != g.Region || w.HasRegion != g.HasRegion {
			out = append(out, fmt.Sprintf("agent %s: identity differs", w.ID))
		}
		if w.TotalActions != g.TotalActions || w.Passive != g.Passive || w.SingleFast != g.SingleFast {
			out = append(out, fmt.Sprintf("agent %s: action metadata differs", w.ID))
		}
		if len(w.Actions) != len(g.Actions) {
			out = append(out, fmt.Sprintf("agent %s: %d action heads, got %d", w.ID, len(w.Actions), len(g.Actions)))
		} else {
			for j := range w.Actions {
				if w.Actions[j] != g.Actions[j] {
					out = append(out, fmt.Sprintf("agent %s: head %d is %s/%d, got %s/%d", w.ID, j, w.Actions[j].Name, w.Actions[j].N, g.Actions[j].Name, g.Actions[j].N))
				}
			}
		}
		if len(w.State) != len(g.State) {
			out = append(out, fmt.Sprintf("agent %s: %d state fields, got %d", w.ID, len(w.State), len(g.State)))
		} else {
			for j := range w.State {
				if w.State[j].Name != g.State[j].Name || !bytes.Equal(w.State[j].JSON, g.State[j].JSON) {
					out = append(out, fmt.Sprintf("agent %s: state field %d (%s) differs", w.ID, j, w.State[j].Name))
				}
			}
		}
	}
	for _, g := range got {
		found := false
		for _, w := range want {
			if w.ID == g.ID {
				found = true
				break
			}
		}
		if !found {
			out = append(out, fmt.Sprintf("agent %s: unexpected", g.ID))
		}
	}
	return out
}

func WriteManifest(path string, m ManifestV1) error {
	hb, err := json.Marshal(m.Header)
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := writeManifestBody(enc, hb, &m); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func writeManifestBody(w io.Writer, header []byte, m *ManifestV1) error {
	bw := bufio.NewWriterSize(w, 256*1024)
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(m); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return bw.Flush()
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

func ReadManifest(path string) (ManifestV1, error) {
	var m ManifestV1
	f, err := os.Open(path)
	if err != nil {
		return m, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return m, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is duplicated inside the gob body.
	if _, err := br.ReadBytes('\n'); err != nil {
		return m, err
	}

	if err := gob.NewDecoder(br).Decode(&m); err != nil {
		return m, fmt.Errorf("gob decode: %w", err)
	}
	if m.Header.Version != Version {
		return m, fmt.Errorf("unsupported manifest version %d", m.Header.Version)
	}
	return m, nil
}
