package bmconfig

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct-tag validation over cfg using go-playground/validator,
// plus a handful of cross-field checks the tag language can't express
// (which disk backend needs which sub-config filled in).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("bmconfig: %w", err)
	}
	return validateDiskBackend(&cfg.Disk)
}

func validateDiskBackend(c *DiskConfig) error {
	switch c.Backend {
	case "local":
		if c.Local.Root == "" {
			return fmt.Errorf("bmconfig: disk.local.root is required when disk.backend=local")
		}
	case "badger":
		if c.Badger.Dir == "" {
			return fmt.Errorf("bmconfig: disk.badger.dir is required when disk.backend=badger")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("bmconfig: disk.s3.bucket is required when disk.backend=s3")
		}
	}
	return nil
}
