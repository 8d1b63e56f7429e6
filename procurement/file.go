package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"procureagent"

	"gopkg.in/yaml.v3"
)

type fixtureVendor struct {
	procureagent.Vendor `yaml:",inline"`
	Replies             []string `yaml:"replies"`
}

type fixture struct {
	Vendors []fixtureVendor `yaml:"vendors"`
}

// FileDirectory serves vendors from a YAML fixture and plays each vendor's scripted
// replies as the conversation transport. Once a script runs out its last reply repeats.
type FileDirectory struct {
	vendors []fixtureVendor

	mu            sync.Mutex
	conversations map[string]*scriptedConversation
}

type scriptedConversation struct {
	vendorID string
	next     int
}

func NewFileDirectory(path string) (*FileDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDirectory(data)
}

func ParseDirectory(data []byte) (*FileDirectory, error) {
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse vendor fixture: %w", err)
	}
	seen := map[string]bool{}
	for _, v := range f.Vendors {
		if v.ID == "" {
			return nil, fmt.Errorf("vendor %q has no id", v.Name)
		}
		if seen[v.ID] {
			return nil, fmt.Errorf("duplicate vendor id %q", v.ID)
		}
		seen[v.ID] = true
	}
	return &FileDirectory{
		vendors:       f.Vendors,
		conversations: map[string]*scriptedConversation{},
	}, nil
}

// ListVendors ignores the team filter; a fixture belongs to one team.
func (d *FileDirectory) ListVendors(_ context.Context, _ string) ([]procureagent.Vendor, error) {
	out := make([]procureagent.Vendor, 0, len(d.vendors))
	for _, v := range d.vendors {
		out = append(out, v.Vendor)
	}
	return out, nil
}

func (d *FileDirectory) GetVendor(_ context.Context, vendorID string) (procureagent.Vendor, error) {
	v, ok := d.find(vendorID)
	if !ok {
		return procureagent.Vendor{}, fmt.Errorf("vendor %s not found", vendorID)
	}
	return v.Vendor, nil
}

func (d *FileDirectory) CreateConversation(_ context.Context, vendorID, title string) (string, error) {
	if _, ok := d.find(vendorID); !ok {
		return "", fmt.Errorf("vendor %s not found", vendorID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := fmt.Sprintf("fixture-%s-%d", vendorID, len(d.conversations)+1)
	d.conversations[id] = &scriptedConversation{vendorID: vendorID}
	slog.Info("PROCUREMENT_API: Fixture conversation created", "vendor_id", vendorID, "conversation_id", id, "title", title)
	return id, nil
}

func (d *FileDirectory) SendMessage(_ context.Context, conversationID, _ string) (string, error) {
	d.mu.Lock()
	conv, ok := d.conversations[conversationID]
	d.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("conversation %s not found", conversationID)
	}

	v, _ := d.find(conv.vendorID)
	if len(v.Replies) == 0 {
		return "", nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	i := min(conv.next, len(v.Replies)-1)
	conv.next++
	return v.Replies[i], nil
}

func (d *FileDirectory) find(vendorID string) (fixtureVendor, bool) {
	for _, v := range d.vendors {
		if v.ID == vendorID {
			return v, true
		}
	}
	return fixtureVendor{}, false
}
