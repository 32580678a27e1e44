package execctx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Preview is the shortened, human-facing projection of a context.
// It must never be sent to the model.
type Preview struct {
	Counts      map[PacketKind]int `json:"counts"`
	Lines       []PreviewLine      `json:"lines"`
	TotalChars  int                `json:"totalChars"`
	CharsByKind map[PacketKind]int `json:"charsByKind"`
}

// PreviewLine is a one-line rendering of a packet.
type PreviewLine struct {
	PacketID  string     `json:"packetId"`
	Kind      PacketKind `json:"kind"`
	Title     string     `json:"title"`
	Text      string     `json:"text"`
	Chars     int        `json:"chars"`
	Truncated bool       `json:"truncated"`
}

// NewPreview renders packets for display. Each line is capped at limit runes.
func NewPreview(packets []Packet, limit int) Preview {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	pv := Preview{
		Counts:      make(map[PacketKind]int),
		Lines:       make([]PreviewLine, 0, len(packets)),
		CharsByKind: make(map[PacketKind]int),
	}
	for _, p := range packets {
		flat := flatten(p.Content)
		chars := utf8.RuneCount(p.Content)
		text, cut := truncate(flat, limit)

		pv.Counts[p.Kind]++
		pv.CharsByKind[p.Kind] += chars
		pv.TotalChars += chars
		pv.Lines = append(pv.Lines, PreviewLine{
			PacketID:  p.ID,
			Kind:      p.Kind,
			Title:     p.Title,
			Text:      text,
			Chars:     chars,
			Truncated: cut,
		})
	}
	return pv
}

// flatten renders content on one line: JSON strings unquoted, anything else
// compacted.
func flatten(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.Join(strings.Fields(s), " ")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.Join(strings.Fields(string(raw)), " ")
	}
	return buf.String()
}

func truncate(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…", true
}

// Summary renders the context as a short multi-line text.
func (ec *ExecutionContext) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "agent %s (%s): %d packets, %d chars\n",
		ec.AgentNodeID, ec.AgentDefinitionID, len(ec.Packets), ec.InputsPreview.TotalChars)

	for _, k := range Kinds {
		if c := ec.InputsPreview.Counts[k]; c > 0 {
			fmt.Fprintf(&b, "  %s: %d (%d chars)\n", k, c, ec.InputsPreview.CharsByKind[k])
		}
	}
	for i, line := range ec.InputsPreview.Lines {
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, line.Kind, line.Title, line.Text)
	}
	for _, om := range ec.Trace.Omitted {
		fmt.Fprintf(&b, "omitted %s", om.NodeID)
		if om.RefID != "" {
			fmt.Fprintf(&b, " (%s)", om.RefID)
		}
		fmt.Fprintf(&b, ": %s\n", om.Reason)
	}
	return b.String()
}
