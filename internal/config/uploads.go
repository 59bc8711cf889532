package config

// UploadConfig describes where uploaded images live on disk and how they are
// addressed from the outside.
type UploadConfig struct {
	Dir      string // directory files are written to
	MaxBytes int64  // upper bound for a single upload
	BaseURL  string // public prefix, files are served at BaseURL + "/" + stored name
}

func LoadUploadConfig() UploadConfig {
	uc := UploadConfig{
		Dir:      envStr("UPLOAD_DIR", "uploads"),
		MaxBytes: envInt64("UPLOAD_MAX_BYTES", 5<<20),
		BaseURL:  envStr("UPLOAD_BASE_URL", "/uploads"),
	}
	if uc.MaxBytes <= 0 {
		uc.MaxBytes = 5 << 20
	}
	return uc
}
