package main

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestSyncCommandIndexesTree(t *testing.T) {
	cfgPath := writeCLIConfig(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"invoices/january.pdf":  "invoice one",
		"invoices/february.pdf": "invoice two",
		"notes/ideas.txt":       "ideas",
	})

	out, _, err := runCLI(t, nil, "--config", cfgPath, "--json", "sync", root)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	var result struct {
		Root   string `json:"root"`
		Counts struct {
			Added int `json:"added"`
		} `json:"counts"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("parse sync output: %v\n%s", err, out)
	}
	if result.Counts.Added != 3 {
		t.Errorf("added = %d, want 3", result.Counts.Added)
	}
	if result.Root != root {
		t.Errorf("root = %q, want %q", result.Root, root)
	}

	// Second pass over an unchanged tree adds nothing.
	out, _, err = runCLI(t, nil, "--config", cfgPath, "--json", "sync", root)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("parse second sync output: %v", err)
	}
	if result.Counts.Added != 0 {
		t.Errorf("second sync added = %d, want 0", result.Counts.Added)
	}
}

func TestSearchCommandFindsIndexedFiles(t *testing.T) {
	cfgPath := writeCLIConfig(t)
	root := t.TempDir()
	target := filepath.Join(root, "invoices", "january.pdf")
	writeTree(t, root, map[string]string{
		"invoices/january.pdf": "invoice",
		"notes/ideas.txt":      "ideas",
	})

	if _, _, err := runCLI(t, nil, "--config", cfgPath, "sync", root); err != nil {
		t.Fatalf("sync: %v", err)
	}

	out, _, err := runCLI(t, nil, "--config", cfgPath, "--json", "search", "invoices")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var hits []struct {
		Path  string  `json:"path"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(out), &hits); err != nil {
		t.Fatalf("parse search output: %v\n%s", err, out)
	}
	if len(hits) == 0 || hits[0].Path != target {
		t.Fatalf("hits = %+v, want %s first", hits, target)
	}

	// Table output for the same query mentions the path.
	out, _, err = runCLI(t, nil, "--config", cfgPath, "search", "invoices")
	if err != nil {
		t.Fatalf("table search: %v", err)
	}
	requireContains(t, out, "january.pdf")
}
