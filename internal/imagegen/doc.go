// Package imagegen generates illustrations for posts through Together AI
// (FLUX.1-schnell) or the OpenAI images API, and renders classic top/bottom
// caption memes onto a template image.
package imagegen
