// Package tagger derives weighted semantic tags for files. The dictionary
// provider works from path tokens alone; the Ollama provider asks a local
// model and degrades to the dictionary through the fallback pair.
package tagger
