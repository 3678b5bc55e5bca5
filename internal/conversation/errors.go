package conversation

import "fmt"

func errIterationBudget(max int) error {
	return fmt.Errorf("conversation: exceeded iteration budget of %d dispatch round-trips", max)
}

func errToolCallBudget(max int) error {
	return fmt.Errorf("conversation: exceeded tool call budget of %d calls for this request", max)
}

func errNoStructuredResponse() error {
	return fmt.Errorf("conversation: model response carried no tool calls and no recognized verdict")
}

func errScriptGenerationFailed(detail string) error {
	if detail == "" {
		detail = "no further detail provided"
	}
	return fmt.Errorf("conversation: script generation failed: %s", detail)
}

func errForbiddenTools(names []string) error {
	return fmt.Errorf("conversation: model requested forbidden or unknown tool(s): %v", names)
}
