// Package scrape downloads article pages and extracts their paragraph text
// for the crew's scrape tool and for URL ingestion into the vector store.
package scrape
