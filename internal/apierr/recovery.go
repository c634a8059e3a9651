package apierr

// RecoveryGenerator holds default recovery suggestions, related tools, and
// example fixes per error code, so call sites only need to set a code and
// message; the generator fills in the rest unless the call site already
// supplied its own.
type RecoveryGenerator struct {
	suggestions  map[string][]string
	relatedTools map[string][]string
	examples     map[string]map[string]any
}

// NewRecoveryGenerator builds a RecoveryGenerator with the router's
// default suggestions registered.
func NewRecoveryGenerator() *RecoveryGenerator {
	g := &RecoveryGenerator{
		suggestions:  make(map[string][]string),
		relatedTools: make(map[string][]string),
		examples:     make(map[string]map[string]any),
	}
	g.registerDefaults()
	return g
}

func (g *RecoveryGenerator) registerDefaults() {
	g.register(ErrWorkflowNotFound,
		[]string{
			"Use 'get_status' to list currently loaded workflows",
			"Import the workflow first with 'import_workflow'",
		},
		[]string{"get_status", "import_workflow"},
		nil,
	)

	g.register(ErrSessionNotFound,
		[]string{
			"Call 'set_goal' for this session before 'execute'",
			"Check the session_id was spelled consistently across calls",
		},
		[]string{"set_goal"},
		nil,
	)

	g.register(ErrToolNotFound,
		[]string{
			"Check the tool name against the loaded tool metadata",
		},
		nil,
		nil,
	)

	g.register(ErrInvalidParameter,
		[]string{
			"Check the parameter's declared type, range, or enum values",
			"Call 'set_goal' again with a corrected value",
		},
		[]string{"set_goal"},
		nil,
	)

	g.register(ErrMissingRequired,
		[]string{
			"Supply the missing parameter explicitly in the next 'set_goal' call",
			"Mention the parameter's value in the goal prompt so the modifier extractor can pick it up",
		},
		[]string{"set_goal"},
		nil,
	)

	g.register(ErrInvalidCatalogContent,
		[]string{
			"Validate the workflow file against the documented schema before importing",
			"Check for YAML/JSON syntax errors in the submitted content",
		},
		[]string{"import_workflow"},
		nil,
	)

	g.register(ErrInvalidPrompt,
		[]string{
			"Provide a non-empty goal prompt describing the desired edit",
		},
		[]string{"set_goal"},
		nil,
	)

	g.register(ErrNoPendingGoal,
		[]string{
			"Call 'set_goal' for this session first; 'execute' only runs a goal already resolved to ready",
		},
		[]string{"set_goal"},
		nil,
	)

	g.register(ErrWorkflowExists,
		[]string{
			"Pass overwrite=true to 'import_workflow' to replace the existing definition",
			"Choose a different workflow name",
		},
		[]string{"import_workflow"},
		map[string]any{"tool": "import_workflow", "params": map[string]any{"overwrite": true}},
	)

	g.register(ErrCallBlocked,
		[]string{
			"Inspect the blocked rule's reason and adjust the scene before retrying",
			"Dispatch a prerequisite call (e.g. create an object) before retrying the blocked tool",
		},
		[]string{"process_call"},
		nil,
	)

	g.register(ErrExecutorUnreachable,
		[]string{
			"Check the executor process is running and reachable",
			"Retry once connectivity is restored; the router degrades gracefully but cannot proceed without scene data",
		},
		nil,
		nil,
	)

	g.register(ErrEmbeddingFailed,
		[]string{
			"Retry the request; embedding failures are usually transient",
		},
		nil,
		nil,
	)

	g.register(ErrVectorStoreFailed,
		[]string{
			"Check the configured vector store persistence path is writable",
		},
		nil,
		nil,
	)

	g.register(ErrTooManySteps,
		[]string{
			"Split the goal into smaller workflows",
			"Raise the configured max_workflow_steps limit if this is expected",
		},
		nil,
		nil,
	)

	g.register(ErrTelemetryBacklog,
		[]string{
			"This only affects observability; tool dispatch is unaffected",
		},
		[]string{"get_status"},
		nil,
	)
}

func (g *RecoveryGenerator) register(code string, suggestions []string, tools []string, example map[string]any) {
	g.suggestions[code] = suggestions
	g.relatedTools[code] = tools
	if example != nil {
		g.examples[code] = example
	}
}

// GetSuggestions returns recovery suggestions for an error code.
func (g *RecoveryGenerator) GetSuggestions(code string) []string {
	if suggestions, ok := g.suggestions[code]; ok {
		return suggestions
	}
	return []string{"Check the error code and message for more details"}
}

// GetRelatedTools returns related tools for an error code.
func (g *RecoveryGenerator) GetRelatedTools(code string) []string {
	return g.relatedTools[code]
}

// GetExample returns an example fix for an error code, if one is registered.
func (g *RecoveryGenerator) GetExample(code string) map[string]any {
	return g.examples[code]
}

// Enhance fills in any of err's recovery fields that are still empty from
// this generator's defaults for err.Code.
func (g *RecoveryGenerator) Enhance(err *StructuredError) *StructuredError {
	if err == nil {
		return nil
	}
	if len(err.RecoverySuggestions) == 0 {
		err.RecoverySuggestions = g.GetSuggestions(err.Code)
	}
	if len(err.RelatedTools) == 0 {
		err.RelatedTools = g.GetRelatedTools(err.Code)
	}
	if err.ExampleFix == nil {
		if ex := g.GetExample(err.Code); ex != nil {
			err.ExampleFix = ex
		}
	}
	return err
}

// DefaultGenerator is the package-wide recovery generator instance.
var DefaultGenerator = NewRecoveryGenerator()

// Enhance adds recovery information to err using DefaultGenerator.
func Enhance(err *StructuredError) *StructuredError {
	return DefaultGenerator.Enhance(err)
}
