package usecase

import (
	"strings"

	"meeting-summarizer/internal/domain"
)

const summarizerSystemPrompt = "You are an AI that summarizes transcripts clearly and concisely."

func buildSummaryMessages(transcript, instruction string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: summarizerSystemPrompt},
		{Role: "user", Content: buildSummaryRequest(transcript, instruction)},
	}
}

func buildSummaryRequest(transcript, instruction string) string {
	var b strings.Builder
	b.WriteString("Transcript: ")
	b.WriteString(strings.TrimSpace(transcript))
	if instruction = normalizePromptInput(instruction); instruction != "" {
		b.WriteString("\n\nInstruction: ")
		b.WriteString(instruction)
	}
	return b.String()
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
