// Package newscrew is a Go client for the NewsCrew HTTP API.
package newscrew
