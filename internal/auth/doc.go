// Package auth guards the HTTP API with static bearer tokens. Each token maps
// to a named subject carrying a permission list; the middleware rejects
// missing, unknown or under-privileged tokens and writes one audit line per
// request.
package auth
