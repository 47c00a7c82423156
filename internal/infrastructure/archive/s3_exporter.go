// Package archive ships archived UPLs to cold storage after close-cart
// has already committed them to the archive document store. Export
// failures are logged, never returned to the caller: cold-storage
// mirroring is best-effort and must not block or fail a close-cart.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"uplregistry/internal/domain/upl/entities"
	"uplregistry/internal/infrastructure/storage"
)

// S3Exporter mirrors archived UPLs into an S3-compatible bucket on top
// of the shared StorageProvider abstraction, rather than talking to the
// AWS SDK directly.
type S3Exporter struct {
	provider storage.StorageProvider
	prefix   string
	logger   zerolog.Logger
}

type S3Config struct {
	// Provider selects the backing StorageProvider: "s3" (default) talks
	// to a real or S3-compatible bucket; "local" mirrors archived UPLs
	// to a directory tree instead, for development and integration tests
	// that run without real object storage credentials.
	Provider  string
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func NewS3Exporter(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for archive export")
	}
	providerType := cfg.Provider
	if providerType == "" {
		providerType = "s3"
	}

	provider, err := storage.NewFactory(logger).CreateProvider(&storage.StorageConfig{
		Provider:  providerType,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing %s storage provider: %w", providerType, err)
	}

	return &S3Exporter{provider: provider, prefix: cfg.Prefix, logger: logger}, nil
}

func (e *S3Exporter) key(id entities.UplId) string {
	if e.prefix == "" {
		return fmt.Sprintf("archive/%s.json", id)
	}
	return fmt.Sprintf("%s/archive/%s.json", e.prefix, id)
}

// Export uploads one archived UPL. Called after the registry has already
// moved it into the archive collection; a failure here is logged and
// swallowed, never surfaced to the close-cart caller.
func (e *S3Exporter) Export(ctx context.Context, upl *entities.Upl) {
	data, err := json.Marshal(upl)
	if err != nil {
		e.logger.Error().Err(err).Str("upl_id", string(upl.ID)).Msg("encoding upl for cold archive export")
		return
	}
	key := e.key(upl.ID)
	_, err = e.provider.Upload(ctx, key, bytes.NewReader(data), "application/json", nil)
	if err != nil {
		e.logger.Error().Err(err).Str("upl_id", string(upl.ID)).Str("key", key).Msg("cold archive export failed")
		return
	}
	e.logger.Debug().Str("upl_id", string(upl.ID)).Str("key", key).Msg("exported upl to cold archive")
}

// ExportBatch fires one export per upl. Callers that want fire-and-forget
// semantics should invoke this in a separate goroutine after close-cart
// returns.
func (e *S3Exporter) ExportBatch(ctx context.Context, upls []*entities.Upl) {
	for _, u := range upls {
		e.Export(ctx, u)
	}
}
