package mcptools

// --- MCP tool types for the refinery server mode (serve-mcp) ---
// These let an assistant run refinements and inspect past runs through
// structured tool calls instead of shelling out to the CLI.

// EvidenceInput is one supporting source offered to the fixers.
type EvidenceInput struct {
	Source  string `json:"source" jsonschema:"where the evidence comes from"`
	Title   string `json:"title,omitempty" jsonschema:"optional title"`
	URL     string `json:"url,omitempty" jsonschema:"optional link"`
	Excerpt string `json:"excerpt" jsonschema:"the quoted passage"`
}

// RefineDocumentInput is the input for the refine_document tool.
type RefineDocumentInput struct {
	Document    string          `json:"document" jsonschema:"the draft to refine"`
	RunID       string          `json:"runId,omitempty" jsonschema:"optional run ID (generated when empty)"`
	MaxAttempts int             `json:"maxAttempts,omitempty" jsonschema:"refinement attempts allowed (default from config)"`
	Evidence    []EvidenceInput `json:"evidence,omitempty" jsonschema:"supporting sources for evidence edits"`
}

// RefineDocumentOutput is the result of the refine_document tool.
type RefineDocumentOutput struct {
	RunID            string    `json:"runId"`
	Success          bool      `json:"success"`
	FinalScore       float64   `json:"finalScore"`
	Tier             string    `json:"tier"`
	Verdict          string    `json:"verdict"`
	Refunded         bool      `json:"refunded"`
	Attempts         int       `json:"attempts"`
	ScoreProgression []float64 `json:"scoreProgression"`
	EditsApplied     int       `json:"editsApplied"`
	WarningReason    string    `json:"warningReason,omitempty"`
	FinalDocument    string    `json:"finalDocument"`
}

// QualityGateInput is the input for the quality_gate tool.
type QualityGateInput struct {
	Document string `json:"document" jsonschema:"the document to score"`
}

// QualityGateOutput is the result of the quality_gate tool.
type QualityGateOutput struct {
	OverallScore    float64            `json:"overallScore"`
	Tier            string             `json:"tier"`
	Publishable     bool               `json:"publishable"`
	WarningBadge    bool               `json:"warningBadge"`
	DimensionScores map[string]float64 `json:"dimensionScores"`
	Critique        string             `json:"critique,omitempty"`
}

// GetRunInput is the input for the get_run tool.
type GetRunInput struct {
	RunID  string `json:"runId" jsonschema:"the run to fetch"`
	Format string `json:"format,omitempty" jsonschema:"json (default) or mermaid"`
}

// GetRunOutput is the result of the get_run tool. Exactly one of Report or
// Mermaid is set.
type GetRunOutput struct {
	RunID   string     `json:"runId"`
	Report  *RunDetail `json:"report,omitempty"`
	Mermaid string     `json:"mermaid,omitempty"`
}

// RunDetail is the per-attempt breakdown of a stored run.
type RunDetail struct {
	Success          bool            `json:"success"`
	FinalScore       float64         `json:"finalScore"`
	Tier             string          `json:"tier"`
	Refunded         bool            `json:"refunded"`
	ScoreProgression []float64       `json:"scoreProgression"`
	Attempts         []AttemptDetail `json:"attempts"`
	FinalDocument    string          `json:"finalDocument"`
}

// AttemptDetail summarizes one refinement round.
type AttemptDetail struct {
	Attempt     int      `json:"attempt"`
	ScoreBefore float64  `json:"scoreBefore"`
	ScoreAfter  float64  `json:"scoreAfter"`
	Fixers      []string `json:"fixers"`
	Applied     int      `json:"applied"`
	Skipped     int      `json:"skipped"`
}

// ListRunsInput is the input for the list_runs tool.
type ListRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum runs to return (default 20)"`
}

// ListRunsOutput is the result of the list_runs tool.
type ListRunsOutput struct {
	Runs []RunSummary `json:"runs"`
}

// RunSummary is a brief overview of one stored run.
type RunSummary struct {
	RunID      string  `json:"runId"`
	CreatedAt  string  `json:"createdAt"`
	FinalScore float64 `json:"finalScore"`
	Success    bool    `json:"success"`
	Attempts   int     `json:"attempts"`
	Tier       string  `json:"tier"`
}
