// Package feed turns upstream listing pages into the song queue: a proxy
// client, a tolerant item parser, and the single-flight fetch pipeline.
package feed
