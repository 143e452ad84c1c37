package model

// FAQEntry is one question/answer pair of the knowledge base.
type FAQEntry struct {
	ID       string `json:"id" yaml:"id"`
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
	Category string `json:"category" yaml:"category"`
}

// FAQHit is a ranked knowledge-base match.
type FAQHit struct {
	FAQEntry
	Score float32 `json:"score"`
}
