package search

import (
	"crypto/md5" //nolint:gosec // content hash for stable IDs, not security
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/insureai/internal/model"
)

//go:embed faq.yaml
var defaultCorpus []byte

const defaultCategory = "general"

type corpusFile struct {
	FAQs []model.FAQEntry `yaml:"faqs"`
}

// LoadCorpus reads a YAML corpus from path, or the built-in corpus when path is empty.
func LoadCorpus(path string) ([]model.FAQEntry, error) {
	if path == "" {
		return ParseCorpus(defaultCorpus)
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("search: read corpus: %w", err)
	}
	entries, err := ParseCorpus(data)
	if err != nil {
		return nil, fmt.Errorf("search: %s: %w", path, err)
	}
	return entries, nil
}

// ParseCorpus decodes a YAML corpus. Every entry gets its ID from its
// question; an empty question or answer, or a repeated question, is an error.
func ParseCorpus(data []byte) ([]model.FAQEntry, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("search: parse corpus: %w", err)
	}
	if len(f.FAQs) == 0 {
		return nil, fmt.Errorf("search: corpus has no faqs")
	}

	seen := make(map[string]int, len(f.FAQs))
	entries := make([]model.FAQEntry, 0, len(f.FAQs))
	for i, e := range f.FAQs {
		e.Question = strings.TrimSpace(e.Question)
		e.Answer = strings.TrimSpace(e.Answer)
		e.Category = strings.TrimSpace(e.Category)
		if e.Question == "" || e.Answer == "" {
			return nil, fmt.Errorf("search: faq %d: question and answer are required", i+1)
		}
		if e.Category == "" {
			e.Category = defaultCategory
		}
		e.ID = EntryID(e.Question)
		if prev, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("search: faq %d repeats the question of faq %d", i+1, prev+1)
		}
		seen[e.ID] = i
		entries = append(entries, e)
	}
	return entries, nil
}

// EntryID is the stable ID of a question: the hex MD5 of its text.
func EntryID(question string) string {
	sum := md5.Sum([]byte(question)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// PointID converts an EntryID into the UUID form Qdrant requires.
func PointID(entryID string) (uuid.UUID, error) {
	b, err := hex.DecodeString(entryID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("search: invalid entry id %q: %w", entryID, err)
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil, fmt.Errorf("search: invalid entry id %q: %w", entryID, err)
	}
	return id, nil
}
