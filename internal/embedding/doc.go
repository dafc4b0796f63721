// Package embedding turns text into sentence vectors for the RAG pipeline.
// Adapters exist for the OpenAI embeddings API, a Hugging Face
// text-embeddings-inference server and a local Python script that wraps
// sentence-transformers.
package embedding
