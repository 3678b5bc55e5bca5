package config

import (
	"log"
	"os"
	"strings"
)

// defaultSystemPrompt is used when SYSTEM_PROMPT_FILE is unset or unreadable
// (spec §6: "Missing file → a generic fallback message").
const defaultSystemPrompt = `You are a financial analysis assistant. You may call the available tools to gather market data, then either reuse an existing analysis or generate a new one. Always conclude with exactly one fenced JSON block describing either a reuse_decision or a script_generation verdict.`

// defaultAnalysisTemplate is used when ANALYSIS_MESSAGE_TEMPLATE_FILE is
// unset or unreadable.
const defaultAnalysisTemplate = `Question: {user_question}`

const templatePlaceholder = "{user_question}"

// LoadSystemPrompt reads path and returns its contents, falling back to a
// built-in generic message on any read error — matching the teacher's
// prompt.PromptLoader "missing file logs a warning, never fails startup" idiom.
func LoadSystemPrompt(path string) string {
	if path == "" {
		return defaultSystemPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[Config] SYSTEM_PROMPT_FILE %q unreadable (%v), using built-in fallback", path, err)
		return defaultSystemPrompt
	}
	return string(data)
}

// LoadAnalysisMessage reads the message template at path, substitutes
// userQuestion for the single {user_question} placeholder, and falls back
// to a minimal built-in template if the file is missing or unreadable.
func LoadAnalysisMessage(path, userQuestion string) string {
	template := defaultAnalysisTemplate
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			template = string(data)
		} else {
			log.Printf("[Config] ANALYSIS_MESSAGE_TEMPLATE_FILE %q unreadable (%v), using built-in fallback", path, err)
		}
	}
	return strings.ReplaceAll(template, templatePlaceholder, userQuestion)
}
