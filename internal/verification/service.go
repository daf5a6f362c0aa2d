// Package verification composes the extractor, the fingerprint engine and
// the registry into the register and verify flows.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"certproof/internal/extractor"
	"certproof/internal/fingerprint"
	"certproof/internal/models"
	"certproof/internal/registry"
)

// Options bound the two blocking phases and the store retry budget.
type Options struct {
	ExtractTimeout time.Duration
	StoreTimeout   time.Duration
	StoreRetries   int
}

func (o Options) withDefaults() Options {
	if o.ExtractTimeout <= 0 {
		o.ExtractTimeout = 30 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.StoreRetries <= 0 {
		o.StoreRetries = 3
	}
	return o
}

type Service struct {
	extractor extractor.Extractor
	registry  registry.Registry
	opts      Options
	log       *zap.Logger
}

func NewService(ex extractor.Extractor, reg registry.Registry, opts Options, log *zap.Logger) *Service {
	return &Service{extractor: ex, registry: reg, opts: opts.withDefaults(), log: log}
}

// Extract runs only the extraction phase, for the preview endpoint.
func (s *Service) Extract(ctx context.Context, data []byte, contentType string) (models.ExtractedRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ExtractTimeout)
	defer cancel()
	record, err := s.extractor.Extract(ctx, data, contentType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.ExtractedRecord{}, fmt.Errorf("extraction timed out: %w", extractor.ErrUnreadable)
		}
		return models.ExtractedRecord{}, err
	}
	if record.Empty() {
		return models.ExtractedRecord{}, extractor.ErrUnreadable
	}
	return record, nil
}

// Register extracts the uploaded document, fingerprints it and stores the
// record. ErrDuplicate propagates untouched so the caller can answer with a
// conflict. Nothing is written when extraction fails or the context is
// cancelled; the store write itself is a single atomic insert.
func (s *Service) Register(ctx context.Context, data []byte, contentType string) (models.CertificateRecord, error) {
	record, err := s.Extract(ctx, data, contentType)
	if err != nil {
		return models.CertificateRecord{}, err
	}

	rec := models.CertificateRecord{
		HashKey: fingerprint.Compute(record),
		Fields:  record,
	}
	var stored models.CertificateRecord
	err = s.withStoreRetry(ctx, func(ctx context.Context) error {
		var rerr error
		stored, rerr = s.registry.Register(ctx, rec)
		return rerr
	})
	if err != nil {
		return models.CertificateRecord{}, err
	}
	s.log.Info("certificate registered",
		zap.String("hash_key", stored.HashKey),
		zap.String("roll_number", stored.Fields.RollNumber))
	return stored, nil
}

// RegisterRecord registers an already-extracted record (bulk CSV path).
func (s *Service) RegisterRecord(ctx context.Context, record models.ExtractedRecord) (models.CertificateRecord, error) {
	rec := models.CertificateRecord{
		HashKey: fingerprint.Compute(record),
		Fields:  record,
	}
	var stored models.CertificateRecord
	err := s.withStoreRetry(ctx, func(ctx context.Context) error {
		var rerr error
		stored, rerr = s.registry.Register(ctx, rec)
		return rerr
	})
	if err != nil {
		return models.CertificateRecord{}, err
	}
	return stored, nil
}

// Verify recomputes the uploaded document's fingerprint and checks it
// against the registry. Unreadable input and a missing registration are
// different negative verdicts; store failures are errors, not verdicts.
func (s *Service) Verify(ctx context.Context, data []byte, contentType string) (models.VerificationVerdict, error) {
	record, err := s.Extract(ctx, data, contentType)
	if errors.Is(err, extractor.ErrUnreadable) {
		return models.VerificationVerdict{
			Verified: false,
			Code:     models.VerdictUnreadable,
			Message:  "The document could not be read; no fields or text were extracted.",
		}, nil
	}
	if err != nil {
		return models.VerificationVerdict{}, err
	}

	hashKey := fingerprint.Compute(record)

	var stored models.CertificateRecord
	err = s.withStoreRetry(ctx, func(ctx context.Context) error {
		var lerr error
		stored, lerr = s.registry.Lookup(ctx, hashKey)
		return lerr
	})
	if errors.Is(err, registry.ErrNotFound) {
		return models.VerificationVerdict{
			Verified: false,
			Code:     models.VerdictNoMatch,
			Message:  "No registered certificate matches this document's fingerprint.",
		}, nil
	}
	if err != nil {
		return models.VerificationVerdict{}, err
	}

	s.log.Info("certificate verified", zap.String("hash_key", hashKey))
	return models.VerificationVerdict{
		Verified: true,
		Code:     models.VerdictVerified,
		Message:  "Document fingerprint matches a registered certificate.",
		Match: &models.MatchDetails{
			HashKey:   stored.HashKey,
			Fields:    stored.Fields,
			Verified:  stored.Verified,
			HashMatch: true,
		},
	}, nil
}

// withStoreRetry runs a store operation under the store timeout, retrying
// transient failures a bounded number of times with doubling backoff.
// Domain outcomes (duplicate, not found) and context cancellation are final.
func (s *Service) withStoreRetry(ctx context.Context, op func(context.Context) error) error {
	backoff := 50 * time.Millisecond
	var err error
	for attempt := 0; attempt < s.opts.StoreRetries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
		err = op(opCtx)
		cancel()
		if err == nil ||
			errors.Is(err, registry.ErrDuplicate) ||
			errors.Is(err, registry.ErrNotFound) ||
			ctx.Err() != nil {
			return err
		}
		s.log.Warn("store operation failed, retrying",
			zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("store operation failed after %d attempts: %w", s.opts.StoreRetries, err)
}
