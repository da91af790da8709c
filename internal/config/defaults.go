package config

const (
	defaultDataDir   = "~/.local/share/vintner"
	defaultLogDir    = "~/.local/share/vintner/logs"
	defaultExportDir = "~/.local/share/vintner/exports"

	defaultAPIBaseURL            = "http://localhost:8000"
	defaultUploadTimeoutSeconds  = 120
	defaultOcrTimeoutSeconds     = 300
	defaultCompareTimeoutSeconds = 180
	defaultHealthTimeoutSeconds  = 15
	defaultDriveTimeoutSeconds   = 60
	defaultCatalogTimeoutSeconds = 60

	defaultPublishChunkSize = 10
	maxPublishChunkSize     = 50

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			ExportDir: defaultExportDir,
		},
		API: API{
			BaseURL:               defaultAPIBaseURL,
			UploadTimeoutSeconds:  defaultUploadTimeoutSeconds,
			OcrTimeoutSeconds:     defaultOcrTimeoutSeconds,
			CompareTimeoutSeconds: defaultCompareTimeoutSeconds,
			HealthTimeoutSeconds:  defaultHealthTimeoutSeconds,
		},
		Drive: Drive{
			MirrorUploads:         true,
			RequestTimeoutSeconds: defaultDriveTimeoutSeconds,
		},
		Catalog: Catalog{
			RequestTimeoutSeconds: defaultCatalogTimeoutSeconds,
		},
		Publish: Publish{
			ChunkSize: defaultPublishChunkSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
