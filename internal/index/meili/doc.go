// Package meili implements the index client against a Meilisearch server.
package meili
