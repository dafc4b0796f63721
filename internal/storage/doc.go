// Package storage defines the content archive: every digest, article and set
// of social posts the service produces is saved as a Record. Backends live in
// the bolt and mysql subpackages.
package storage
