package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"routersupervisor/internal/model"
)

// Snapshot is one immutable, fully-loaded view of the catalog.
type Snapshot struct {
	Workflows map[string]*model.WorkflowDefinition
	Tools     map[string]*model.ToolMetadata

	// ChangedWorkflows lists the names of workflows whose source content
	// hash differs from the last load, i.e. those the Ensemble Matcher
	// actually needs to re-embed.
	ChangedWorkflows []string
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		Workflows: map[string]*model.WorkflowDefinition{},
		Tools:     map[string]*model.ToolMetadata{},
	}
}

// WorkflowList returns every loaded workflow as a slice, satisfying the
// matcher package's WorkflowSource interface without this package
// depending on matcher.
func (s *Snapshot) WorkflowList() []*model.WorkflowDefinition {
	out := make([]*model.WorkflowDefinition, 0, len(s.Workflows))
	for _, wf := range s.Workflows {
		out = append(out, wf)
	}
	return out
}

// Loader discovers and parses tool metadata and workflow files under a
// configured root, tracking content hashes so an unchanged file is left out
// of Snapshot.ChangedWorkflows (and, upstream, not re-embedded) on a later
// reload. Every file is still decoded and parsed on every load.
type Loader struct {
	cfg   Config
	cache *hashCache

	// OnReload, if set, is invoked after every successful (re)load so
	// dependents (chiefly the Ensemble Matcher) can re-embed workflow
	// descriptions.
	OnReload func(*Snapshot)
}

// NewLoader constructs a Loader. The hash cache is optional: an empty
// CachePath degrades to an in-memory, per-process cache only.
func NewLoader(cfg Config) (*Loader, error) {
	cache, err := newHashCache(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("catalog: open hash cache: %w", err)
	}
	return &Loader{cfg: cfg, cache: cache}, nil
}

// Close releases the loader's cache resources.
func (l *Loader) Close() error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Close()
}

// LoadAll walks the configured root recursively, parsing every workflow
// and tool metadata file found, and publishes a refresh event.
func (l *Loader) LoadAll() (*Snapshot, error) {
	snap := newSnapshot()

	err := filepath.WalkDir(l.cfg.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("catalog: read %s: %w", path, err)
		}
		return l.loadFileInto(snap, path, content)
	})
	if err != nil {
		return nil, err
	}

	if l.OnReload != nil {
		l.OnReload(snap)
	}
	return snap, nil
}

// loadFileInto decodes one file's content and merges the resulting record
// into snap, classifying it as a workflow (has a "steps" field) or tool
// metadata otherwise.
func (l *Loader) loadFileInto(snap *Snapshot, path string, content []byte) error {
	raw, err := decodeRaw(content)
	if err != nil {
		return newValidationError(path, "", "decode: "+err.Error())
	}

	if _, isWorkflow := raw["steps"]; isWorkflow {
		wf, err := parseWorkflow(path, raw)
		if err != nil {
			return err
		}
		if order, err := modifierDeclarationOrder(content); err == nil {
			wf.ModifierOrder = order
		}
		snap.Workflows[wf.Name] = wf
		if l.cache.changed(path, contentHash(content)) {
			snap.ChangedWorkflows = append(snap.ChangedWorkflows, wf.Name)
		}
		return nil
	}

	tm, err := parseToolMetadata(path, raw)
	if err != nil {
		return err
	}
	snap.Tools[tm.Name] = tm
	return nil
}

// ImportWorkflow loads a single workflow from inline content (bypassing the
// directory walk), enforcing the overwrite contract: a name collision is
// rejected unless overwrite is true, in which case the caller is
// responsible for deleting stale embeddings/artifacts for the replaced
// name (internal/supervisor's publish step does this by invalidating the
// semantic matcher's cached embedding for it).
func (l *Loader) ImportWorkflow(snap *Snapshot, content []byte, sourceName string, overwrite bool) (*model.WorkflowDefinition, bool, error) {
	raw, err := decodeRaw(content)
	if err != nil {
		return nil, false, newValidationError(sourceName, "", "decode: "+err.Error())
	}
	wf, err := parseWorkflow(sourceName, raw)
	if err != nil {
		return nil, false, err
	}
	if order, err := modifierDeclarationOrder(content); err == nil {
		wf.ModifierOrder = order
	}

	_, existed := snap.Workflows[wf.Name]
	if existed && !overwrite {
		return nil, false, newValidationError(sourceName, "name", fmt.Sprintf("workflow %q already exists; pass overwrite=true to replace it", wf.Name))
	}

	snap.Workflows[wf.Name] = wf
	return wf, existed, nil
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
