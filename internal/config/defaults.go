package config

import "github.com/anatolykoptev/go-wdtag/hub"

const (
	defaultGeneralThreshold   = 0.35
	defaultCharacterThreshold = 0.85
	defaultOutput             = "Metadata"
	defaultOutputDir          = "./captions"
	defaultWorkers            = 1
	defaultDuplicateThreshold = 10
	defaultModelDir           = "~/.cache/wdtag/models"
	defaultMetadataReader     = ReaderExifTool
	defaultLedgerPath         = "~/.local/share/wdtag/ledger.db"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Metadata reader backends.
const (
	ReaderExifTool = "exiftool"
	ReaderNative   = "native"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Tagger: Tagger{
			GeneralThreshold:   defaultGeneralThreshold,
			CharacterThreshold: defaultCharacterThreshold,
			HideRating:         true,
			Output:             defaultOutput,
			OutputDir:          defaultOutputDir,
			Workers:            defaultWorkers,
			DuplicateThreshold: defaultDuplicateThreshold,
		},
		Model: Model{
			Repo:     hub.DefaultRepo,
			Dir:      defaultModelDir,
			Endpoint: hub.DefaultEndpoint,
		},
		Metadata: Metadata{
			Reader: defaultMetadataReader,
		},
		Ledger: Ledger{
			Enabled: true,
			Path:    defaultLedgerPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
