// Package vectorstore stores document embeddings and answers nearest-neighbour
// queries. The in-memory store ranks by cosine similarity; the pinecone and
// pgvector sub-packages delegate ranking to the database.
package vectorstore
