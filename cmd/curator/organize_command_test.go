package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"curator/internal/organizer"
)

func TestOrganizeDryRunLeavesFilesInPlace(t *testing.T) {
	cfgPath := writeCLIConfig(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"scans/invoice-jan.pdf": "jan",
		"scans/invoice-feb.pdf": "feb",
	})

	out, _, err := runCLI(t, nil, "--config", cfgPath, "--json", "organize", "--dry-run", root)
	if err != nil {
		t.Fatalf("organize --dry-run: %v", err)
	}

	var report struct {
		Mode    string `json:"mode"`
		Planned int    `json:"planned"`
		Moved   int    `json:"moved"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("parse report: %v\n%s", err, out)
	}
	if report.Mode != "preview" || report.Planned != 2 || report.Moved != 0 {
		t.Errorf("report = %+v", report)
	}
	if _, err := os.Stat(filepath.Join(root, "scans", "invoice-jan.pdf")); err != nil {
		t.Errorf("dry run moved a file: %v", err)
	}
}

func TestOrganizeAppliesWhenConfirmed(t *testing.T) {
	cfgPath := writeCLIConfig(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"scans/invoice-jan.pdf": "jan",
		"scans/invoice-feb.pdf": "feb",
	})

	out, _, err := runCLI(t, strings.NewReader("y\n"), "--config", cfgPath, "organize", root)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	requireContains(t, out, "2 moved")

	if _, err := os.Stat(filepath.Join(root, "scans", "invoice-jan.pdf")); err == nil {
		t.Error("source file still present after confirmed apply")
	}
}

func TestOrganizeAbortsOnDecline(t *testing.T) {
	cfgPath := writeCLIConfig(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"scans/invoice-jan.pdf": "jan",
		"scans/invoice-feb.pdf": "feb",
	})

	out, _, err := runCLI(t, strings.NewReader("n\n"), "--config", cfgPath, "organize", root)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	requireContains(t, out, "Aborted")

	if _, err := os.Stat(filepath.Join(root, "scans", "invoice-jan.pdf")); err != nil {
		t.Errorf("declined run moved a file: %v", err)
	}
}

func TestOrganizeYesSkipsPrompt(t *testing.T) {
	cfgPath := writeCLIConfig(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"scans/invoice-jan.pdf": "jan",
		"scans/invoice-feb.pdf": "feb",
	})

	out, _, err := runCLI(t, nil, "--config", cfgPath, "organize", "--yes", root)
	if err != nil {
		t.Fatalf("organize --yes: %v", err)
	}
	if strings.Contains(out, "[y/N]") {
		t.Error("--yes still prompted for confirmation")
	}
	requireContains(t, out, "2 moved")
}

func TestInterruptedApplyStillRendersReport(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmdCtx := newCommandContext(nil, nil)

	report := &organizer.Report{
		Mode:    organizer.ModeApply,
		Moved:   1,
		Planned: 1,
		Entries: []organizer.Entry{{
			Source:      "/data/scans/a.pdf",
			Destination: "/data/archive/a.pdf",
			Status:      organizer.StatusMoved,
		}},
	}

	err := renderReportThenErr(cmd, cmdCtx, report, context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	requireContains(t, out.String(), "1 moved")
	requireContains(t, out.String(), "a.pdf")
}
