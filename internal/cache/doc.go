// Package cache provides the byte cache used to memoise news searches.
package cache
