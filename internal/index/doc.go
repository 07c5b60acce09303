// Package index defines the document model and the narrow client contract
// curator uses to talk to a search index. Adapters live in the meili and
// local subpackages; selection happens once at startup from configuration.
package index
