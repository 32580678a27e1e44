package execctx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// RecordKind names the collection an external record lives in.
type RecordKind string

const (
	RecordProduct     RecordKind = "product"
	RecordPersona     RecordKind = "persona"
	RecordKnowledge   RecordKind = "knowledge"
	RecordWorkflowRun RecordKind = "workflow_run"
	RecordRun         RecordKind = "run"
)

// Record is an external record referenced by an input node.
type Record struct {
	ID           string          `json:"id"`
	Kind         RecordKind      `json:"kind"`
	Title        string          `json:"title,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	EvidenceRefs []string        `json:"evidenceRefs,omitempty"`
}

// Resolver looks up external records. It returns nil, nil when the record
// does not exist. Implementations must be read-only.
type Resolver interface {
	Resolve(ctx context.Context, kind RecordKind, refID string) (*Record, error)
}

// MemoryResolver is a map-backed Resolver.
type MemoryResolver struct {
	mu      sync.RWMutex
	records map[RecordKind]map[string]Record
}

// NewMemoryResolver returns a resolver holding the given records.
func NewMemoryResolver(records ...Record) *MemoryResolver {
	m := &MemoryResolver{records: make(map[RecordKind]map[string]Record)}
	for _, r := range records {
		m.Put(r)
	}
	return m
}

// Put adds or replaces a record.
func (m *MemoryResolver) Put(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[r.Kind] == nil {
		m.records[r.Kind] = make(map[string]Record)
	}
	m.records[r.Kind][r.ID] = r
}

// Delete removes a record. Missing records are ignored.
func (m *MemoryResolver) Delete(kind RecordKind, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records[kind], id)
}

// Resolve implements Resolver.
func (m *MemoryResolver) Resolve(_ context.Context, kind RecordKind, refID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[kind][refID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// recordFile is the on-disk layout of a record fixture file.
type recordFile struct {
	Records []struct {
		ID           string     `yaml:"id"`
		Kind         RecordKind `yaml:"kind"`
		Title        string     `yaml:"title"`
		Payload      any        `yaml:"payload"`
		EvidenceRefs []string   `yaml:"evidenceRefs"`
	} `yaml:"records"`
}

// LoadRecords reads a YAML (or JSON) file of records into a MemoryResolver.
func LoadRecords(path string) (*MemoryResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("execctx: read records: %w", err)
	}
	return ParseRecords(data)
}

// ParseRecords parses YAML (or JSON) record data into a MemoryResolver.
func ParseRecords(data []byte) (*MemoryResolver, error) {
	var f recordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("execctx: parse records: %w", err)
	}

	m := NewMemoryResolver()
	for i, r := range f.Records {
		if r.ID == "" || r.Kind == "" {
			return nil, fmt.Errorf("execctx: record %d: id and kind are required", i)
		}
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("execctx: record %s: encode payload: %w", r.ID, err)
		}
		m.Put(Record{ID: r.ID, Kind: r.Kind, Title: r.Title, Payload: payload, EvidenceRefs: r.EvidenceRefs})
	}
	return m, nil
}
