package protect

import (
	"path/filepath"
	"sort"
	"strings"

	"curator/internal/config"
	"curator/internal/scanner"
)

// Zone is a directory subtree excluded from reorganization, with the reason
// it was protected.
type Zone struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Detector identifies protected zones among scanned paths.
type Detector struct {
	markers   map[string]struct{}
	vcs       map[string]struct{}
	suffixes  []string
	manifests map[string]struct{}
}

// NewDetector builds a detector from the configured marker-directory, VCS
// marker, and manifest-filename sets. VCS markers protect their containing
// directory (the project root), not just the marker entry. Marker names
// beginning with a dot also match as bundle suffixes ("MyApp.app" matches
// marker ".app").
func NewDetector(cfg config.Protection) *Detector {
	d := &Detector{
		markers:   make(map[string]struct{}, len(cfg.MarkerDirs)),
		vcs:       make(map[string]struct{}, len(cfg.VCSMarkers)),
		manifests: make(map[string]struct{}, len(cfg.ManifestFiles)),
	}
	for _, name := range cfg.MarkerDirs {
		d.markers[name] = struct{}{}
		if strings.HasPrefix(name, ".") && len(name) > 1 {
			d.suffixes = append(d.suffixes, name)
		}
	}
	for _, name := range cfg.VCSMarkers {
		d.vcs[name] = struct{}{}
	}
	for _, name := range cfg.ManifestFiles {
		d.manifests[name] = struct{}{}
	}
	return d
}

// Set holds the zones detected in one pass and answers containment queries.
type Set struct {
	root   string
	byPath map[string]Zone
}

// Detect evaluates every scanned path top-down and returns the protected
// zones. Shallowest match wins; once a directory is protected its descendants
// are not re-evaluated, and protection is never revoked by deeper entries.
func (d *Detector) Detect(root string, records []scanner.FileRecord) *Set {
	set := &Set{root: filepath.Clean(root), byPath: make(map[string]Zone)}

	manifestDirs := d.manifestDirs(set.root, records)
	if zone, ok := manifestDirs[set.root]; ok {
		set.add(zone)
	}

	// Shallow paths are evaluated first so the shallowest zone wins no matter
	// how the caller ordered the records.
	paths := make([]string, 0, len(records))
	for _, record := range records {
		paths = append(paths, record.Path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		rel, err := filepath.Rel(set.root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		components := strings.Split(filepath.ToSlash(rel), "/")
		current := set.root
		for i, component := range components {
			last := i == len(components)-1
			if _, protected := set.byPath[current]; protected {
				break
			}
			// A VCS marker protects its container even when it is a file
			// (worktree and submodule gitlinks).
			if _, ok := d.vcs[component]; ok {
				set.add(Zone{Path: current, Reason: "vcs marker " + component})
				break
			}
			if !last && d.matchMarker(component) {
				set.add(Zone{Path: filepath.Join(current, component), Reason: "marker directory " + component})
				break
			}
			if zone, ok := manifestDirs[current]; ok {
				set.add(zone)
				break
			}
			if !last {
				current = filepath.Join(current, component)
			}
		}
	}
	return set
}

// manifestDirs maps each directory that directly contains a recognized
// project manifest to its zone.
func (d *Detector) manifestDirs(root string, records []scanner.FileRecord) map[string]Zone {
	dirs := make(map[string]Zone)
	for _, record := range records {
		name := filepath.Base(record.Path)
		if _, ok := d.manifests[name]; !ok {
			continue
		}
		dir := filepath.Dir(record.Path)
		if !strings.HasPrefix(dir, root) {
			continue
		}
		if _, exists := dirs[dir]; !exists {
			dirs[dir] = Zone{Path: dir, Reason: "project manifest " + name}
		}
	}
	return dirs
}

func (d *Detector) matchMarker(name string) bool {
	if _, ok := d.markers[name]; ok {
		return true
	}
	for _, suffix := range d.suffixes {
		if name != suffix && strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func (s *Set) add(zone Zone) {
	if _, exists := s.byPath[zone.Path]; exists {
		return
	}
	s.byPath[zone.Path] = zone
}

// Protected reports whether path lies inside any protected zone. Every
// ancestor up to the detection root is consulted, so protection is
// prefix-closed.
func (s *Set) Protected(path string) (Zone, bool) {
	current := filepath.Clean(path)
	for {
		if zone, ok := s.byPath[current]; ok {
			return zone, true
		}
		if current == s.root {
			return Zone{}, false
		}
		parent := filepath.Dir(current)
		if parent == current {
			return Zone{}, false
		}
		current = parent
	}
}

// Zones returns the detected zones sorted by path.
func (s *Set) Zones() []Zone {
	zones := make([]Zone, 0, len(s.byPath))
	for _, zone := range s.byPath {
		zones = append(zones, zone)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Path < zones[j].Path })
	return zones
}
