// Command curator is the CLI for the semantic file organizer: it syncs a
// directory tree into a search index, answers queries against it, and
// reorganizes files into tag-derived folders.
package main
