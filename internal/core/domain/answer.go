package domain

import "math"

type Outcome string

const (
	OutcomeGrounded Outcome = "grounded"
	OutcomeFallback Outcome = "fallback"
)

const (
	WebAnswerPrefix      = "Not found in the case study database. Based on the web: "
	WebAnswerPlaceholder = "Answer generated from web search."
	WebUnavailableAnswer = "Not found in the case study database. Web search is unavailable."
)

// WebResult is what the web-search capability returns.
type WebResult struct {
	Text        string
	CitationURL string
}

// Evidence is a candidate rendered for provenance display.
type Evidence struct {
	CaseID    string  `json:"case_id"`
	Title     string  `json:"title"`
	URL       string  `json:"url,omitempty"`
	ChunkID   string  `json:"chunk_id"`
	Text      string  `json:"text"`
	Snippet   string  `json:"snippet"`
	Order     int     `json:"order"`
	CharStart int     `json:"char_start"`
	CharEnd   int     `json:"char_end"`
	Score     float64 `json:"score"`
}

type Answer struct {
	Question    string     `json:"question"`
	Outcome     Outcome    `json:"outcome"`
	Grounded    bool       `json:"grounded"`
	Text        string     `json:"text"`
	CitationURL string     `json:"citation_url,omitempty"`
	BestScore   float64    `json:"best_score"`
	Evidence    []Evidence `json:"evidence"`
}

const snippetRunes = 220

func NewEvidence(c Candidate) Evidence {
	return Evidence{
		CaseID:    c.CaseID,
		Title:     c.Title,
		URL:       c.URL,
		ChunkID:   c.ChunkID,
		Text:      c.Text,
		Snippet:   snippet(c.Text, snippetRunes),
		Order:     c.Order,
		CharStart: c.CharStart,
		CharEnd:   c.CharEnd,
		Score:     RoundScore(c.Score),
	}
}

// RoundScore rounds to three decimals.
func RoundScore(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func snippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
