package llm

import (
	"strings"
	"testing"
)

func TestFormatPrompt(t *testing.T) {
	f := NewPromptFormatter()

	out, err := f.FormatPrompt("topic_research", map[string]string{"topic": "Go generics"})
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if !strings.Contains(out, "Topic: Go generics") {
		t.Fatalf("variable not substituted: %q", out)
	}
	if strings.Contains(out, "{topic}") {
		t.Fatalf("placeholder left in output")
	}
}

func TestFormatPromptMultipleVariables(t *testing.T) {
	f := NewPromptFormatter()

	out, err := f.FormatPrompt("seo_generation", map[string]string{
		"final": "the article body",
		"image": "a hero image",
	})
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if !strings.Contains(out, "the article body") || !strings.Contains(out, "a hero image") {
		t.Fatalf("missing substitution in %q", out)
	}
}

func TestFormatPromptValueWithBraces(t *testing.T) {
	f := NewPromptFormatter()

	// Stage artifacts feed back in as variables and routinely contain
	// braces; the formatter must not mistake them for placeholders.
	research := "Key findings:\n{\"angle\": \"fairness\", \"facts\": [\"a\", \"b\"]}"
	out, err := f.FormatPrompt("topic_campaign", map[string]string{"research": research})
	if err != nil {
		t.Fatalf("artifact with braces rejected: %v", err)
	}
	if !strings.Contains(out, research) {
		t.Fatalf("artifact not inserted verbatim: %q", out)
	}
}

func TestFormatPromptValueWithPlaceholderToken(t *testing.T) {
	f := NewPromptFormatter()

	// A value that spells out another placeholder is inserted as-is, not
	// substituted again.
	out, err := f.FormatPrompt("article_draft", map[string]string{
		"topic":    "templating pitfalls",
		"campaign": "mention the literal {topic} marker",
	})
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if !strings.Contains(out, "the literal {topic} marker") {
		t.Fatalf("value was rescanned during substitution: %q", out)
	}
}

func TestFormatPromptUnknownTemplate(t *testing.T) {
	f := NewPromptFormatter()
	if _, err := f.FormatPrompt("no_such_template", nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

func TestFormatPromptMissingVariable(t *testing.T) {
	f := NewPromptFormatter()
	if _, err := f.FormatPrompt("article_draft", map[string]string{"topic": "Go generics"}); err == nil {
		t.Fatalf("expected error when {campaign} has no value")
	}
}

func TestAllTemplatesPresent(t *testing.T) {
	f := NewPromptFormatter()
	for _, name := range []string{
		"topic_research", "topic_campaign", "article_draft",
		"editing_criteria", "final_article", "image_description", "seo_generation",
	} {
		if _, ok := f.templates[name]; !ok {
			t.Fatalf("missing template %s", name)
		}
	}
	if f.SystemPrompt() == "" {
		t.Fatalf("empty system prompt")
	}
}
