// Package knowledge serves per-platform writing guidelines that are appended
// to post-generation prompts.
package knowledge
