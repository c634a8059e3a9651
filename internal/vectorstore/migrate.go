package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"routersupervisor/internal/model"
)

// legacyRecord is the flat on-disk shape used before the store adopted
// chromem-go, inferred from model.VectorRecord's own fields (id, namespace,
// vector, payload) — the natural shape a hand-rolled predecessor to this
// package would have serialized to JSON.
type legacyRecord struct {
	ID        string         `json:"id"`
	Namespace string         `json:"namespace"`
	Vector    []float32      `json:"vector"`
	Payload   map[string]any `json:"payload"`
}

// MigrateLegacyDump detects a pre-chromem JSON dump at path and re-upserts
// every record through Store.Upsert, then renames the source file with a
// ".migrated" suffix so a later startup doesn't redo the work. Absence of
// the file is not an error — most installations have nothing to migrate.
func (s *Store) MigrateLegacyDump(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("vectorstore: read legacy dump %s: %w", path, err)
	}

	var records []legacyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("vectorstore: parse legacy dump %s: %w", path, err)
	}

	migrated := 0
	for _, r := range records {
		rec := model.VectorRecord{
			ID:        r.ID,
			Namespace: model.Namespace(r.Namespace),
			Vector:    r.Vector,
			Payload:   r.Payload,
		}
		if err := s.Upsert(ctx, rec); err != nil {
			return migrated, fmt.Errorf("vectorstore: migrate record %s/%s: %w", r.Namespace, r.ID, err)
		}
		migrated++
	}

	if err := os.Rename(path, path+".migrated"); err != nil {
		log.Printf("vectorstore: migrated %d records from %s but failed to rename source: %v", migrated, path, err)
		return migrated, nil
	}

	log.Printf("vectorstore: migrated %d legacy records from %s", migrated, path)
	return migrated, nil
}
