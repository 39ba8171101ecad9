package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims entity type names",
			input:    []string{"  Candidate ", "JobPost  ", "  Interview"},
			expected: []string{"Candidate", "JobPost", "Interview"},
		},
		{
			name:     "keeps first occurrence in order",
			input:    []string{"JobPost", "Candidate", "JobPost", "Country", "Candidate"},
			expected: []string{"JobPost", "Candidate", "Country"},
		},
		{
			name:     "drops blanks",
			input:    []string{"Candidate", "", "  ", "JobPost"},
			expected: []string{"Candidate", "JobPost"},
		},
		{
			name:     "case sensitive",
			input:    []string{"Candidate", "candidate"},
			expected: []string{"Candidate", "candidate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "blank", input: "  ", expected: nil},
		{name: "only separators", input: ",, ,", expected: nil},
		{name: "brokers", input: "eu-kafka:9092, us-kafka:9092", expected: []string{"eu-kafka:9092", "us-kafka:9092"}},
		{name: "depends on with duplicates", input: " Candidate, JobPost,,Candidate ", expected: []string{"Candidate", "JobPost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input))
		})
	}
}
