package usecase

import (
	"fmt"
	"strings"
)

// BuildTranslationPrompt renders the instruction sent to the model for a post body
// and, when title is non-empty, the topic title.
func BuildTranslationPrompt(content, targetLanguage, title string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Translate the following HTML content to %s.\n\n", targetLanguage)
	b.WriteString("CRITICAL REQUIREMENTS:\n")
	fmt.Fprintf(&b, "- Translate every part of the content that is not already in %s, even when several languages are mixed and the result repeats information that already appears in %s. Only a very small fragment in another language may be left as is.\n", targetLanguage, targetLanguage)
	b.WriteString("- The input is HTML with links, formatting and forum-specific markup.\n")
	b.WriteString("- Translate ONLY the text nodes. Do NOT translate or change HTML tags, attributes, URLs, CSS classes or IDs.\n")
	b.WriteString("- Preserve ALL HTML tags exactly as they are (<a>, <p>, <div>, <span>, etc.) and keep every href unchanged.\n")
	b.WriteString("- Preserve line breaks and whitespace structure. Do NOT add or remove any HTML tags.\n")
	b.WriteString("- Do NOT wrap the output in Markdown code fences (``` or ```html).\n")
	b.WriteString("- Do NOT include document-level tags such as <html>, <head> or <body>.\n\n")
	fmt.Fprintf(&b, "If the content is already in %s, return the original HTML unchanged.\n", targetLanguage)

	if title != "" {
		b.WriteString("\nThis post opens a topic. Also translate the topic title.\n")
		fmt.Fprintf(&b, "Topic title: %s\n", title)
	}

	b.WriteString("\nReturn your response in the following JSON format:\n")
	if title != "" {
		b.WriteString("{\n  \"translated_content\": \"translated HTML content here\",\n  \"translated_title\": \"translated title here\"\n}\n")
	} else {
		b.WriteString("{\n  \"translated_content\": \"translated HTML content here\"\n}\n")
	}

	b.WriteString("\nRequirements for the JSON values:\n")
	b.WriteString("- translated_content MUST be pure HTML, without Markdown code fences.\n")
	b.WriteString("- Do NOT include <html>, <head> or <body> wrappers.\n")
	b.WriteString("- Return ONLY valid JSON. No explanations and no text outside the JSON object.\n\n")
	b.WriteString("HTML content to translate:\n")
	b.WriteString(content)
	b.WriteString("\n")

	return b.String()
}

// BuildTitlePrompt renders the minimal fallback prompt for a topic title.
func BuildTitlePrompt(title, targetLanguage string) string {
	return fmt.Sprintf("Translate the following text to %s.\nReturn ONLY the translated text, no quotes, no extra words.\n\nText:\n%s\n", targetLanguage, title)
}
