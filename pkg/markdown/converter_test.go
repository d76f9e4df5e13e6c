package markdown

import (
	"strings"
	"testing"
)

func TestToTelegramHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
		avoid []string
	}{
		{
			name:  "bold and italic",
			input: "**bold** and *italic*",
			want:  []string{"<b>bold</b>", "<i>italic</i>"},
			avoid: []string{"<strong>", "<em>"},
		},
		{
			name:  "inline code",
			input: "use `fmt.Println`",
			want:  []string{"<code>fmt.Println</code>"},
		},
		{
			name:  "list items become bullets",
			input: "- first\n- second",
			want:  []string{"• first", "• second"},
			avoid: []string{"<ul>", "<li>"},
		},
		{
			name:  "unsupported tags stripped",
			input: "# Heading\n\ntext",
			want:  []string{"Heading", "text"},
			avoid: []string{"<h1>", "</h1>"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToTelegramHTML(tt.input)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("ToTelegramHTML(%q) = %q, missing %q", tt.input, got, w)
				}
			}
			for _, a := range tt.avoid {
				if strings.Contains(got, a) {
					t.Errorf("ToTelegramHTML(%q) = %q, should not contain %q", tt.input, got, a)
				}
			}
		})
	}
}

func TestToTelegramHTMLPlainTextPassthrough(t *testing.T) {
	got := ToTelegramHTML("hello there")
	if got != "hello there" {
		t.Errorf("plain text changed: %q", got)
	}
}
