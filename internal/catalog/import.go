package catalog

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"routersupervisor/internal/model"
)

// importSession accumulates chunks for one in-flight chunked import.
type importSession struct {
	contentType string
	sourceName  string
	buf         []byte
}

// ChunkedImporter implements the init/append/finalize/abort protocol for
// workflow payloads too large for a single request.
type ChunkedImporter struct {
	mu       sync.Mutex
	sessions map[string]*importSession
}

// NewChunkedImporter constructs an importer with no in-flight sessions.
func NewChunkedImporter() *ChunkedImporter {
	return &ChunkedImporter{sessions: map[string]*importSession{}}
}

// Init starts a new chunked import session and returns its ID.
func (ci *ChunkedImporter) Init(contentType, sourceName string) string {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	id := uuid.NewString()
	ci.sessions[id] = &importSession{contentType: contentType, sourceName: sourceName}
	return id
}

// Append adds a chunk of raw bytes to an in-flight session.
func (ci *ChunkedImporter) Append(sessionID string, chunk []byte) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	sess, ok := ci.sessions[sessionID]
	if !ok {
		return fmt.Errorf("catalog: unknown import session %q", sessionID)
	}
	sess.buf = append(sess.buf, chunk...)
	return nil
}

// Abort discards an in-flight session without importing anything.
func (ci *ChunkedImporter) Abort(sessionID string) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	if _, ok := ci.sessions[sessionID]; !ok {
		return fmt.Errorf("catalog: unknown import session %q", sessionID)
	}
	delete(ci.sessions, sessionID)
	return nil
}

// Finalize completes a session by parsing its accumulated content through
// the loader's normal ImportWorkflow path, then discards the session
// regardless of outcome.
func (ci *ChunkedImporter) Finalize(sessionID string, loader *Loader, snap *Snapshot, overwrite bool) (*model.WorkflowDefinition, bool, error) {
	ci.mu.Lock()
	sess, ok := ci.sessions[sessionID]
	if ok {
		delete(ci.sessions, sessionID)
	}
	ci.mu.Unlock()

	if !ok {
		return nil, false, fmt.Errorf("catalog: unknown import session %q", sessionID)
	}

	return loader.ImportWorkflow(snap, sess.buf, sess.sourceName, overwrite)
}
