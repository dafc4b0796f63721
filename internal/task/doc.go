// Package task runs content jobs asynchronously. A Service persists submitted
// tasks and publishes their IDs to a queue (in-memory, Redis list or
// RabbitMQ); a Processor claims them, calls an Executor, retries retryable
// failures up to MaxRetries and raises alerts on terminal ones.
package task
