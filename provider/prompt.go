package provider

import (
	"fmt"
	"strings"
)

const systemInstruction = "You are a professional LinkedIn content writer. " +
	"Write a single LinkedIn post. Return only the post text, with no preamble."

// BuildPrompt assembles the generation prompt from the request fields.
// Prompt construction is deliberately minimal; the core's job is credential
// brokering, not prompt engineering.
func BuildPrompt(req GenerateRequest) string {
	var sb strings.Builder
	sb.WriteString(systemInstruction)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Topic: %s\n", req.Topic)
	if req.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", req.Tone)
	}
	if req.Audience != "" {
		fmt.Fprintf(&sb, "Audience: %s\n", req.Audience)
	}
	return sb.String()
}
