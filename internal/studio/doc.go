// Package studio exposes the content operations of NewsCrew: news digests
// and content packs produced by crews, single posts, summaries, refinements,
// images and memes. Every crew result is archived so that history can be
// listed and failed async tasks can fall back to the latest archived content.
package studio
