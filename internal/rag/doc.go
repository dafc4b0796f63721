// Package rag stores documents as sentence embeddings in a vector store and
// answers questions with the closest documents as LLM context.
package rag
