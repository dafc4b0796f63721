// Package llm defines the chat-completion contract used by the crew, studio
// and RAG packages. Provider adapters live in sub-packages and translate the
// provider's HTTP errors into coded errors from internal/errors.
package llm
