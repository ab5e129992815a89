package dict

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Dictionary maps question ids to keyword aliases used for filename
// classification. It is immutable for the duration of a run.
type Dictionary struct {
	questions []Question
}

// Question is one question slot with its aliases and optional score weight.
type Question struct {
	ID      int
	Aliases []string
	Weight  float64
}

// specQuestion maps to [[questions]] entries in the dictionary file.
type specQuestion struct {
	ID      int      `toml:"id"`
	Aliases []string `toml:"aliases"`
	Weight  float64  `toml:"weight"`
}

type specRoot struct {
	Questions []specQuestion `toml:"questions"`
}

// Parse reads a question dictionary from a TOML file.
func Parse(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary file: %w", err)
	}
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary TOML: %w", err)
	}

	qs := make([]Question, 0, len(root.Questions))
	seen := map[int]bool{}
	for _, q := range root.Questions {
		if q.ID <= 0 {
			return nil, fmt.Errorf("question id must be positive, got %d", q.ID)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		if len(q.Aliases) == 0 {
			return nil, fmt.Errorf("question %d has no aliases", q.ID)
		}
		seen[q.ID] = true
		aliases := make([]string, len(q.Aliases))
		for i, a := range q.Aliases {
			aliases[i] = strings.ToLower(a)
		}
		qs = append(qs, Question{ID: q.ID, Aliases: aliases, Weight: q.Weight})
	}
	return New(qs), nil
}

// New builds a dictionary from question entries. Entries are kept in
// ascending id order so classification is deterministic.
func New(questions []Question) *Dictionary {
	qs := make([]Question, len(questions))
	copy(qs, questions)
	sort.Slice(qs, func(i, j int) bool { return qs[i].ID < qs[j].ID })
	return &Dictionary{questions: qs}
}

// Questions returns the question entries in ascending id order.
func (d *Dictionary) Questions() []Question {
	return d.questions
}

// Len returns the number of question slots.
func (d *Dictionary) Len() int {
	return len(d.questions)
}

// MaxID returns the highest question id, or 0 for an empty dictionary.
func (d *Dictionary) MaxID() int {
	if len(d.questions) == 0 {
		return 0
	}
	return d.questions[len(d.questions)-1].ID
}

// Match returns the id of the first question (ascending id order) that has
// an alias contained in the filename, case-insensitively. The boolean is
// false when no question matches.
func (d *Dictionary) Match(filename string) (int, bool) {
	lower := strings.ToLower(filename)
	for _, q := range d.questions {
		for _, alias := range q.Aliases {
			if strings.Contains(lower, alias) {
				return q.ID, true
			}
		}
	}
	return 0, false
}

// Weights returns the score weight per question id. Questions without an
// explicit weight are omitted.
func (d *Dictionary) Weights() map[int]float64 {
	out := map[int]float64{}
	for _, q := range d.questions {
		if q.Weight != 0 {
			out[q.ID] = q.Weight
		}
	}
	return out
}
