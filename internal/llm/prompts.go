package llm

import (
	"fmt"
	"regexp"
	"strings"
)

const systemPrompt = "You are a writing assistant for an internal content " +
	"production team. You produce clear, well-structured marketing and " +
	"editorial content in a professional tone."

// promptTemplates holds the per-stage prompt bodies. Variables use
// {name} placeholders filled in by FormatPrompt.
var promptTemplates = map[string]string{
	"topic_research": `Analyze the following topic for a blog article and produce a research summary.

Topic: {topic}

Cover the key questions readers have, the angles worth exploring, and any background facts the writer should know. Return a structured summary.`,

	"topic_campaign": `Based on the research below, propose a content campaign for this topic.

Research:
{research}

Suggest an article title, a target audience, the desired tone, and an outline of sections.`,

	"article_draft": `Write a full article draft.

Topic: {topic}

Campaign plan:
{campaign}

Follow the outline from the campaign plan. Write complete prose, not bullet fragments.`,

	"editing_criteria": `Edit the draft below for clarity, flow and correctness. Keep the author's structure.

Draft:
{draft}

Return the edited article followed by a short list of the changes you made.`,

	"final_article": `Produce the publication-ready version of this article.

Edited draft:
{edit}

Apply final polish: tighten the introduction, verify the conclusion lands, and ensure consistent heading levels. Return only the final article text.`,

	"image_description": `Write a description of a hero image for this article, suitable for an image generation model and as alt text.

Article:
{final}

Return one paragraph.`,

	"seo_generation": `Generate SEO metadata for this article.

Article:
{final}

Image description:
{image}

Return: a title tag (max 60 characters), a meta description (max 155 characters), and 3 primary keywords.`,
}

// PromptFormatter renders named prompt templates with {variable}
// substitution.
type PromptFormatter struct {
	templates map[string]string
}

// NewPromptFormatter returns a formatter over the built-in templates.
func NewPromptFormatter() *PromptFormatter {
	return &PromptFormatter{templates: promptTemplates}
}

// SystemPrompt returns the shared system prompt for all pipeline stages.
func (f *PromptFormatter) SystemPrompt() string {
	return systemPrompt
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// FormatPrompt renders the named template. Unknown template names and
// missing variables are errors so a typo fails loudly instead of sending a
// literal {variable} to the model. Placeholders are collected from the raw
// template, never from substituted values: artifacts containing braces
// (JSON, code) pass through untouched.
func (f *PromptFormatter) FormatPrompt(name string, vars map[string]string) (string, error) {
	tmpl, ok := f.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template: %s", name)
	}

	names := placeholders(tmpl)
	pairs := make([]string, 0, len(names)*2)
	for _, key := range names {
		value, ok := vars[key]
		if !ok {
			return "", fmt.Errorf("missing variable {%s} for template %s", key, name)
		}
		pairs = append(pairs, "{"+key+"}", value)
	}

	// A single Replacer pass never rescans replaced text, so a value that
	// itself contains a placeholder token is inserted verbatim.
	return strings.NewReplacer(pairs...).Replace(tmpl), nil
}

// placeholders returns the distinct {name} tokens of a template, in order
// of first appearance.
func placeholders(tmpl string) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		key := match[1]
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, key)
	}
	return names
}
