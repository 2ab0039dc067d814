package model

// Summary is the structured output the model must produce. The struct tags
// drive both the JSON schema embedded in the prompt and the validation of the
// model's reply, so they must stay the single source of truth for the shape.
type Summary struct {
	Summary   string   `json:"summary" description:"A concise summary of what the project is about, as a single string"`
	CoolFacts []string `json:"coolFacts" description:"The coolest or most interesting facts about the project"`
}

// RepoSummary is the successful result of one summarize request.
type RepoSummary struct {
	Repo      RepoRef
	Readme    string
	Summary   string
	CoolFacts []string
}
