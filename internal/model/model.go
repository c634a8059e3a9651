// Package model defines the core data structures for the router supervisor.
//
// These types are shared across every component of the router: the catalog
// loader produces ToolMetadata and WorkflowDefinition records, the matcher's
// aggregator produces EnsembleResult (carrying the modifier extractor's
// overrides), the resolver stores learned mappings as VectorRecord entries
// in the parameters namespace, and the registry consumes all of the above
// to emit CorrectedToolCall sequences. MatcherResult and StoredMapping are
// declared here but no component constructs them.
package model

import "time"

// Mode is the executor's current editing mode.
type Mode string

const (
	ModeObject  Mode = "object"
	ModeEdit    Mode = "edit"
	ModeSculpt  Mode = "sculpt"
	ModeAny     Mode = "any"
	ModeUnknown Mode = "unknown"
)

// ParamType enumerates the supported parameter value types.
type ParamType string

const (
	ParamFloat  ParamType = "float"
	ParamInt    ParamType = "int"
	ParamBool   ParamType = "bool"
	ParamString ParamType = "string"
	ParamEnum   ParamType = "enum"
)

// ConfidenceLevel is the quantized summary of a normalized ensemble score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
	ConfidenceNone   ConfidenceLevel = "NONE"
)

// CorrectionReason enumerates why a tool call was corrected.
type CorrectionReason string

const (
	ReasonModeFix        CorrectionReason = "mode-fix"
	ReasonSelectionFix    CorrectionReason = "selection-fix"
	ReasonClamp           CorrectionReason = "clamp"
	ReasonPatternReplace  CorrectionReason = "pattern-replace"
	ReasonWorkflowStep    CorrectionReason = "workflow-step"
	ReasonPassthrough     CorrectionReason = "passthrough"
)

// ToolMetadata describes a single tool the executor can dispatch.
//
// Name is globally unique; records are immutable once loaded at startup.
type ToolMetadata struct {
	Name              string   `json:"name" yaml:"name"`
	Category          string   `json:"category" yaml:"category"`
	ModeRequired      Mode     `json:"mode_required" yaml:"mode_required"`
	RequiresSelection bool     `json:"requires_selection" yaml:"requires_selection"`
	Description       string   `json:"description" yaml:"description"`
	SamplePrompts     []string `json:"sample_prompts" yaml:"sample_prompts"`
}

// ParameterSchema describes one declared parameter of a workflow.
//
// Exactly one of Default, Computed, or neither (client-required) is set.
type ParameterSchema struct {
	Name          string    `json:"name" yaml:"name"`
	Type          ParamType `json:"type" yaml:"type"`
	Min           *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max           *float64  `json:"max,omitempty" yaml:"max,omitempty"`
	Default       any       `json:"default,omitempty" yaml:"default,omitempty"`
	EnumValues    []string  `json:"enum_values,omitempty" yaml:"enum_values,omitempty"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	SemanticHints []string  `json:"semantic_hints,omitempty" yaml:"semantic_hints,omitempty"`
	Computed      string    `json:"computed,omitempty" yaml:"computed,omitempty"`
	DependsOn     []string  `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// HasRange reports whether the schema declares a numeric [Min,Max] range.
func (p *ParameterSchema) HasRange() bool {
	return p.Min != nil && p.Max != nil
}

// ClientRequired reports whether the parameter has neither a default nor a
// computed expression, meaning it must come from the client or be learned.
func (p *ParameterSchema) ClientRequired() bool {
	return p.Default == nil && p.Computed == ""
}

// ModifierOverride is a YAML-declared phrase's effect on workflow parameters.
type ModifierOverride struct {
	Params          map[string]any `json:"params" yaml:"params"`
	NegativeSignals []string       `json:"negative_signals,omitempty" yaml:"negative_signals,omitempty"`
}

// WorkflowStep is one node of a workflow's ordered tool-call plan.
//
// Unknown boolean keys found at load time (beyond the declared schema) are
// retained in Filters rather than dropped, so new semantic-filter fields
// require no loader change (see DESIGN.md "Dynamic step attributes").
type WorkflowStep struct {
	Tool               string         `json:"tool" yaml:"tool"`
	Params             map[string]any `json:"params" yaml:"params"`
	Description        string         `json:"description,omitempty" yaml:"description,omitempty"`
	Condition          string         `json:"condition,omitempty" yaml:"condition,omitempty"`
	Optional           bool           `json:"optional,omitempty" yaml:"optional,omitempty"`
	DisableAdaptation  bool           `json:"disable_adaptation,omitempty" yaml:"disable_adaptation,omitempty"`
	Tags               []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Filters            map[string]bool `json:"-" yaml:"-"`
}

// IsCore reports whether the step is always executed regardless of
// confidence level: not optional, or optional-but-disable_adaptation.
func (s *WorkflowStep) IsCore() bool {
	return !s.Optional || s.DisableAdaptation
}

// WorkflowDefinition is a named, declarative recipe of ordered tool calls.
//
// Immutable once loaded; a reload publishes an entirely new snapshot.
type WorkflowDefinition struct {
	Name            string                      `json:"name" yaml:"name"`
	Description     string                      `json:"description" yaml:"description"`
	TriggerKeywords []string                    `json:"trigger_keywords" yaml:"trigger_keywords"`
	Parameters      map[string]*ParameterSchema  `json:"parameters" yaml:"parameters"`
	Modifiers       map[string]*ModifierOverride `json:"modifiers" yaml:"modifiers"`
	Steps           []*WorkflowStep             `json:"steps" yaml:"steps"`
	ShapePatterns   []string                    `json:"shape_patterns,omitempty" yaml:"shape_patterns,omitempty"`

	// ModifierOrder is the declaration order of Modifiers' keys as they
	// appeared in the source file, used only to break phrase-score ties
	// deterministically (see internal/modifier). Populated by the loader;
	// empty for workflows built directly in Go (tests construct their own
	// deterministic order instead).
	ModifierOrder []string `json:"-" yaml:"-"`
}

// ToolCall is the wire shape emitted to the opaque executor.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// InterceptedToolCall is a single ad-hoc call submitted to the supervisor.
type InterceptedToolCall struct {
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
}

// CorrectedToolCall is the supervisor's final, possibly-rewritten call.
type CorrectedToolCall struct {
	Tool            string           `json:"tool"`
	Params          map[string]any   `json:"params"`
	Timestamp       time.Time        `json:"timestamp"`
	SessionID       string           `json:"session_id"`
	OriginatingTool string           `json:"originating_tool,omitempty"`
	Reason          CorrectionReason `json:"reason"`
}

// ObjectInfo describes one scene object.
type ObjectInfo struct {
	Type       string     `json:"type"`
	Dimensions [3]float64 `json:"dimensions"`
	Location   [3]float64 `json:"location"`
}

// TopologyInfo summarizes mesh topology counts for the active object.
type TopologyInfo struct {
	TotalVerts    int  `json:"total_verts"`
	TotalEdges    int  `json:"total_edges"`
	TotalFaces    int  `json:"total_faces"`
	SelectedVerts int  `json:"selected_verts"`
	SelectedEdges int  `json:"selected_edges"`
	SelectedFaces int  `json:"selected_faces"`
	HasSelection  bool `json:"has_selection"`
}

// ProportionInfo is derived, deterministic shape analysis of the active
// object's dimensions.
type ProportionInfo struct {
	MinDim       float64 `json:"min_dim"`
	MaxDim       float64 `json:"max_dim"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	Depth        float64 `json:"depth"`
	AspectXY     float64 `json:"aspect_xy"`
	AspectXZ     float64 `json:"aspect_xz"`
	AspectYZ     float64 `json:"aspect_yz"`
	IsFlat       bool    `json:"is_flat"`
	IsTall       bool    `json:"is_tall"`
	DominantAxis string  `json:"dominant_axis"`
}

// SceneContext is the normalized, possibly-degraded snapshot of executor
// state used by the matcher, adapter, registry, and firewall.
type SceneContext struct {
	Mode            Mode                  `json:"mode"`
	ActiveObject    string                `json:"active_object,omitempty"`
	Objects         map[string]ObjectInfo `json:"objects"`
	Topology        TopologyInfo          `json:"topology"`
	Proportions     ProportionInfo        `json:"proportions"`
	Degraded        bool                  `json:"degraded"`
	FetchedAt       time.Time             `json:"fetched_at"`
}

// MatcherResult is one matcher's scoring contribution for one workflow.
type MatcherResult struct {
	WorkflowName string  `json:"workflow_name"`
	RawScore     float64 `json:"raw_score"`
	Matcher      string  `json:"matcher"`
}

// EnsembleResult is the aggregator's decision for a single prompt.
type EnsembleResult struct {
	WorkflowName        string                 `json:"workflow_name"`
	NormalizedScore     float64                `json:"normalized_score"`
	ConfidenceLevel     ConfidenceLevel        `json:"confidence_level"`
	ContributionsByMatcher map[string]float64  `json:"contributions_by_matcher"`
	Modifiers           map[string]any         `json:"modifiers"`
	RequiresAdaptation  bool                   `json:"requires_adaptation"`
}

// StoredMapping is a learned (context, parameter, value) triple persisted in
// the vector store's "parameters" namespace for future semantic reuse.
type StoredMapping struct {
	Context      string    `json:"context"`
	Embedding    []float32 `json:"embedding"`
	ParameterName string   `json:"parameter_name"`
	Value        any       `json:"value"`
	WorkflowName string    `json:"workflow_name"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsedAt   time.Time `json:"last_used_at"`
	UsageCount   int       `json:"usage_count"`
}

// Namespace is a vector-store record partition.
type Namespace string

const (
	NamespaceTools      Namespace = "tools"
	NamespaceWorkflows  Namespace = "workflows"
	NamespaceParameters Namespace = "parameters"
)

// VectorRecord is a single (namespace, id) record in the vector store.
type VectorRecord struct {
	ID        string         `json:"id"`
	Namespace Namespace      `json:"namespace"`
	Vector    []float32      `json:"vector"`
	Payload   map[string]any `json:"payload"`
}

// TelemetryEvent records one SetGoal or ProcessCall decision for
// observability: what came in, what it matched, and what went out.
type TelemetryEvent struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	SessionID    string          `json:"session_id"`
	Operation    string          `json:"operation"`
	Input        string          `json:"input"`
	WorkflowName string          `json:"workflow_name,omitempty"`
	Confidence   ConfidenceLevel `json:"confidence,omitempty"`
	AppliedRules []string        `json:"applied_rules,omitempty"`
	EmittedCalls int             `json:"emitted_calls"`
}

// SupervisorMetrics is a running count of supervisor pipeline outcomes.
type SupervisorMetrics struct {
	GoalsProcessed       int64 `json:"goals_processed"`
	CallsIntercepted     int64 `json:"calls_intercepted"`
	WorkflowsExpanded    int64 `json:"workflows_expanded"`
	FirewallBlocks       int64 `json:"firewall_blocks"`
	FirewallAutoFixes    int64 `json:"firewall_auto_fixes"`
	FirewallReplacements int64 `json:"firewall_replacements"`
}
