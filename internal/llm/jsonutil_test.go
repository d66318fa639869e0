package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "Here you go:\n```json\n{\"a\": 1}\n```\nthanks", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around", `Sure! {"reason_type": "Typo", "reason_text": "fixed {x}"} done`, `{"reason_type": "Typo", "reason_text": "fixed {x}"}`},
		{"trailing comma", "{\"a\": 1,\n}", "{\"a\": 1}"},
		{"nested", `{"a": {"b": [1, 2,]}} {"c": 3}`, `{"a": {"b": [1, 2]}}`},
		{"escaped quote", `{"t": "say \"}\" now"}`, `{"t": "say \"}\" now"}`},
		{"none", "no json here", ""},
		{"unbalanced", `{"a": 1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}
