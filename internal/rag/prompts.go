package rag

import (
	"strings"

	"github.com/hyperjump/kaiwa/internal/models"
)

const contextualizeInstruction = "Given a chat history and the latest user question which might reference context in the chat history, " +
	"formulate a standalone question which can be understood without the chat history. " +
	"Do NOT answer the question, just reformulate it if needed and otherwise return it as is."

const answerInstruction = "You are an assistant for question-answering tasks. " +
	"Use only the following pieces of retrieved context to answer the question. " +
	"If the context is not enough to answer, say that you don't know. " +
	"Use three sentences maximum and keep the answer concise."

// writeTranscript renders history as alternating Human/Assistant lines.
func writeTranscript(b *strings.Builder, history []models.Turn) {
	for _, t := range history {
		b.WriteString("Human: ")
		b.WriteString(t.Question)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.Answer)
		b.WriteString("\n")
	}
}

// RewritePrompt builds the prompt that turns question into a standalone query.
func RewritePrompt(history []models.Turn, question string) string {
	var b strings.Builder
	b.WriteString(contextualizeInstruction)
	b.WriteString("\n\nChat history:\n")
	writeTranscript(&b, history)
	b.WriteString("\nLatest question: ")
	b.WriteString(question)
	b.WriteString("\nStandalone question:")
	return b.String()
}

// AnswerPrompt builds the prompt that answers question from the chunk texts.
// Chunks are joined in the given order.
func AnswerPrompt(chunks []*models.Chunk, history []models.Turn, question string) string {
	var b strings.Builder
	b.WriteString(answerInstruction)
	b.WriteString("\n\nContext:\n")
	for i, ch := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(ch.Content)
	}
	if len(history) > 0 {
		b.WriteString("\n\nChat history:\n")
		writeTranscript(&b, history)
	} else {
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
