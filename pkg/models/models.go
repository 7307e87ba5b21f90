package models

// Chunk is a contiguous span [Start, End) of a resume's normalized text.
// Offsets are byte offsets. Text is the span without its trailing separator.
type Chunk struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// ScoredChunk is a chunk with its similarity to the job description, in [0,1].
type ScoredChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// MatchResult is the outcome of matching one resume against one job description.
type MatchResult struct {
	FinalMatchScore    int           `json:"final_match_score"`
	TopChunks          []ScoredChunk `json:"top_chunks"`
	FilteredResumeText string        `json:"filtered_resume_text"`
}

// TopChunk is the wire form of a ranked chunk.
type TopChunk struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// MatchResponse is the success body of the match endpoint.
type MatchResponse struct {
	FinalMatchScore    int        `json:"final_match_score"`
	TopChunks          []TopChunk `json:"top_chunks"`
	FilteredResumeText string     `json:"filtered_resume_text"`
}

// ErrorResponse is the failure body of the match endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Response converts a result into its wire schema. TopChunks is never nil.
func (r MatchResult) Response() MatchResponse {
	out := MatchResponse{
		FinalMatchScore:    r.FinalMatchScore,
		TopChunks:          make([]TopChunk, 0, len(r.TopChunks)),
		FilteredResumeText: r.FilteredResumeText,
	}
	for _, c := range r.TopChunks {
		out.TopChunks = append(out.TopChunks, TopChunk{
			Text:  c.Text,
			Score: c.Similarity,
			Start: c.Start,
			End:   c.End,
		})
	}
	return out
}
