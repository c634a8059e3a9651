// Package scene analyzes current executor state into a normalized
// SceneContext, caching it with a TTL while always refreshing the hot
// selection counts.
package scene

import (
	"context"
	"log"
	"strings"
	"time"

	"routersupervisor/internal/executor"
	"routersupervisor/internal/model"
	"routersupervisor/pkg/cache"
)

// modeAliases normalizes executor-specific mode spellings to the router's
// canonical Mode values.
var modeAliases = map[string]model.Mode{
	"object":    model.ModeObject,
	"edit_mesh": model.ModeEdit,
	"edit":      model.ModeEdit,
	"sculpt":    model.ModeSculpt,
}

// cacheKey is the single slot the scene cache ever holds; the Analyzer
// caches exactly one current scene, so a constant key plus MaxEntries:1 is
// simpler than keying by session.
const cacheKey = "current"

// Analyzer queries the executor for current scene state and normalizes it
// into a SceneContext.
type Analyzer struct {
	client executor.Client
	cache  *cache.LRU[string, model.SceneContext]
}

// Config controls the Analyzer's cache.
type Config struct {
	CacheTTL time.Duration
}

// New constructs an Analyzer. The cache holds a single entry (MaxEntries:
// 1) since there is only ever one current scene.
func New(client executor.Client, cfg Config) *Analyzer {
	return &Analyzer{
		client: client,
		cache:  cache.New[string, model.SceneContext](&cache.Config{MaxEntries: 1, TTL: cfg.CacheTTL}),
	}
}

// Analyze returns the current scene context, using the TTL cache but
// always refreshing selection counts (treated as hot data even on a cache
// hit). On an unreachable executor it returns a degraded context rather
// than an error.
func (a *Analyzer) Analyze(ctx context.Context) model.SceneContext {
	if cached, ok := a.cache.Get(cacheKey); ok {
		return a.refreshSelection(ctx, cached)
	}

	resp, err := a.client.Query(ctx, map[string]any{"request": "scene_snapshot"})
	if err != nil {
		log.Printf("scene: executor unreachable, returning degraded context: %v", err)
		return degradedContext()
	}

	sc := a.AnalyzeFrom(resp)
	a.cache.Set(cacheKey, sc)
	return sc
}

// refreshSelection re-queries just the hot selection-count fields and
// overlays them onto an otherwise-cached context, per the always-refresh
// rule for selection state.
func (a *Analyzer) refreshSelection(ctx context.Context, cached model.SceneContext) model.SceneContext {
	resp, err := a.client.Query(ctx, map[string]any{"request": "selection_snapshot"})
	if err != nil {
		return cached
	}
	if sel, ok := resp["topology"].(map[string]any); ok {
		cached.Topology = parseTopology(sel)
	}
	return cached
}

// AnalyzeFrom is a pure function over raw executor response data, exposed
// for testing without a live executor.
func (a *Analyzer) AnalyzeFrom(data map[string]any) model.SceneContext {
	sc := model.SceneContext{
		Mode:      normalizeMode(stringField(data, "mode")),
		Objects:   map[string]model.ObjectInfo{},
		FetchedAt: time.Now(),
	}

	if active, ok := data["active_object"].(string); ok {
		sc.ActiveObject = active
	}

	if objs, ok := data["objects"].(map[string]any); ok {
		for name, raw := range objs {
			if m, ok := raw.(map[string]any); ok {
				sc.Objects[name] = parseObjectInfo(m)
			}
		}
	}

	if topo, ok := data["topology"].(map[string]any); ok {
		sc.Topology = parseTopology(topo)
	}

	if active, ok := sc.Objects[sc.ActiveObject]; ok {
		sc.Proportions = computeProportions(active)
	}
	return sc
}

func normalizeMode(raw string) model.Mode {
	if m, ok := modeAliases[strings.ToLower(raw)]; ok {
		return m
	}
	if raw == "" {
		return model.ModeUnknown
	}
	return model.Mode(raw)
}

func degradedContext() model.SceneContext {
	return model.SceneContext{
		Mode:      model.ModeUnknown,
		Objects:   map[string]model.ObjectInfo{},
		Degraded:  true,
		FetchedAt: time.Now(),
	}
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func parseObjectInfo(m map[string]any) model.ObjectInfo {
	return model.ObjectInfo{
		Type:       stringField(m, "type"),
		Dimensions: floatArray3(m["dimensions"]),
		Location:   floatArray3(m["location"]),
	}
}

func floatArray3(v any) [3]float64 {
	var out [3]float64
	arr, ok := v.([]any)
	if !ok {
		return out
	}
	for i := 0; i < 3 && i < len(arr); i++ {
		if f, ok := toFloat(arr[i]); ok {
			out[i] = f
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func parseTopology(m map[string]any) model.TopologyInfo {
	intField := func(key string) int {
		if f, ok := toFloat(m[key]); ok {
			return int(f)
		}
		return 0
	}
	t := model.TopologyInfo{
		TotalVerts:    intField("total_verts"),
		TotalEdges:    intField("total_edges"),
		TotalFaces:    intField("total_faces"),
		SelectedVerts: intField("selected_verts"),
		SelectedEdges: intField("selected_edges"),
		SelectedFaces: intField("selected_faces"),
	}
	t.HasSelection = t.SelectedVerts > 0 || t.SelectedEdges > 0 || t.SelectedFaces > 0
	return t
}
