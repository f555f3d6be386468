package ingest

// Config controls upload acceptance for the ingestion pipeline.
type Config struct {
	// MaxUploadSizeBytes is the largest upload accepted, in bytes.
	// Larger files are rejected before anything is written to disk.
	MaxUploadSizeBytes int64 `yaml:"max_upload_size_bytes" env:"MAX_UPLOAD_SIZE_BYTES" env-default:"209715200"`
}
