package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/ericksa/lexiguard/internal/store"
	apperrors "github.com/ericksa/lexiguard/pkg/errors"
)

// Fingerprint is the lowercase hex SHA-256 of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Finder looks records up by fingerprint.
type Finder interface {
	FindByHash(ctx context.Context, hash string) (*store.Record, error)
}

// FindByFingerprint returns the first stored record for hash. A miss is not
// an error.
func FindByFingerprint(ctx context.Context, f Finder, hash string) (*store.Record, bool, error) {
	rec, err := f.FindByHash(ctx, hash)
	if store.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.CodePersistence, "failed to look up fingerprint")
	}
	return rec, true, nil
}
