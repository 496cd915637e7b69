package gemini

// promptData is passed to the prompt template.
type promptData struct {
	Emails []promptEmail
}

// promptEmail is the per-email view rendered into the prompt.
type promptEmail struct {
	ID      string
	From    string
	Date    string
	Subject string
	Labels  string
	Snippet string
}

// ResponseSchema is the JSON document the model is asked to return.
type ResponseSchema struct {
	Episodes []EpisodeSchema `json:"episodes"`
	Facts    []FactSchema    `json:"facts"`
	Patterns []PatternSchema `json:"patterns"`
}

// EpisodeSchema is one episode in the model response.
type EpisodeSchema struct {
	EmailID string `json:"emailId"`
	Summary string `json:"summary"`
}

// FactSchema is one fact in the model response.
type FactSchema struct {
	Subject       string  `json:"subject"`
	Predicate     string  `json:"predicate"`
	Object        string  `json:"object"`
	Confidence    float64 `json:"confidence"`
	SourceEmailID string  `json:"sourceEmailId,omitempty"`
}

// PatternSchema is one pattern in the model response.
type PatternSchema struct {
	Trigger   string `json:"trigger"`
	Action    string `json:"action"`
	Frequency int    `json:"frequency"`
}
