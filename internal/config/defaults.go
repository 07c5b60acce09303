package config

const (
	defaultDataDir             = "~/.local/share/curator"
	defaultLogDir              = "~/.local/share/curator/logs"
	defaultIndexBackend        = "local"
	defaultIndexURL            = "http://127.0.0.1:7700"
	defaultIndexName           = "curator"
	defaultIndexTimeoutSeconds = 30
	defaultOllamaURL           = "http://127.0.0.1:11434"
	defaultTagModel            = "llama3.2"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDims       = 768
	defaultOllamaTimeout       = 60
	defaultTaggerProvider      = "dictionary"
	defaultMaxTags             = 8
	defaultMinClusterSize      = 2
	defaultFallbackFolder      = "misc"
	defaultMaxFolderNameLen    = 40
	defaultMaxDepth            = 2
	defaultSimilarity          = 0.7
	defaultMoveWorkers         = 4
	defaultScanWorkers         = 4
	defaultProviderConcurrency = 4
	defaultDebounceSeconds     = 2
	defaultLogLevel            = "info"
	defaultLogFormat           = "console"
)

// defaultMarkerDirs lists directory names that protect themselves and every
// descendant: version control trees, dependency folders, build output,
// virtualenvs, and platform bundles.
var defaultMarkerDirs = []string{
	".git",
	".hg",
	".svn",
	".bzr",
	".fossil",
	"CVS",
	"node_modules",
	"target",
	"dist",
	"build",
	".gradle",
	".mvn",
	"venv",
	".venv",
	"__pycache__",
	".pytest_cache",
	".tox",
	".mypy_cache",
	".app",
	".framework",
	".xcodeproj",
	".xcworkspace",
}

// defaultVCSMarkers lists version-control entries whose presence protects
// their containing directory, not just the marker itself.
var defaultVCSMarkers = []string{
	".git",
	".hg",
	".svn",
	".bzr",
	".fossil",
	"CVS",
}

// defaultManifestFiles lists project-config filenames whose presence protects
// the containing directory as a project root.
var defaultManifestFiles = []string{
	"package.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"Cargo.toml",
	"go.mod",
	"requirements.txt",
	"setup.py",
	"pyproject.toml",
	"pom.xml",
	"build.gradle",
	"composer.json",
	"Gemfile",
	"Dockerfile",
	"docker-compose.yml",
	".gitignore",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Index: Index{
			Backend:        defaultIndexBackend,
			URL:            defaultIndexURL,
			IndexName:      defaultIndexName,
			TimeoutSeconds: defaultIndexTimeoutSeconds,
		},
		Ollama: Ollama{
			URLs:           []string{defaultOllamaURL},
			TagModel:       defaultTagModel,
			EmbeddingModel: defaultEmbeddingModel,
			EmbeddingDims:  defaultEmbeddingDims,
			TimeoutSeconds: defaultOllamaTimeout,
		},
		Tagger: Tagger{
			Provider: defaultTaggerProvider,
			MaxTags:  defaultMaxTags,
		},
		Protection: Protection{
			MarkerDirs:    append([]string(nil), defaultMarkerDirs...),
			VCSMarkers:    append([]string(nil), defaultVCSMarkers...),
			ManifestFiles: append([]string(nil), defaultManifestFiles...),
		},
		Organizer: Organizer{
			MinClusterSize:      defaultMinClusterSize,
			FallbackFolder:      defaultFallbackFolder,
			MaxFolderNameLength: defaultMaxFolderNameLen,
			MaxDepth:            defaultMaxDepth,
			SimilarityThreshold: defaultSimilarity,
			MoveWorkers:         defaultMoveWorkers,
		},
		Workflow: Workflow{
			ScanWorkers:         defaultScanWorkers,
			ProviderConcurrency: defaultProviderConcurrency,
			DebounceSeconds:     defaultDebounceSeconds,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
