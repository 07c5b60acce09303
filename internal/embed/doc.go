// Package embed computes text embeddings through one or more Ollama servers
// with round-robin distribution and failover.
package embed
