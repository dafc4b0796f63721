// Package news retrieves articles for a topic from Bing News, serper.dev or a
// set of RSS feeds. All searchers drop articles without a link, apply the
// optional publication-date cut-off and de-duplicate by URL.
package news
