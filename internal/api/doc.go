// Package api exposes the HTTP surface of the content studio: the HTML form
// pages, the JSON content endpoints, document ingestion and question
// answering, and the asynchronous task endpoints backed by the task queue.
package api
