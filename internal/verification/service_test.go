package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"certproof/internal/extractor"
	"certproof/internal/models"
	"certproof/internal/registry"
)

// stubExtractor returns a canned record keyed by document content.
type stubExtractor struct {
	records map[string]models.ExtractedRecord
}

func (s *stubExtractor) Extract(_ context.Context, data []byte, _ string) (models.ExtractedRecord, error) {
	rec, ok := s.records[string(data)]
	if !ok {
		return models.ExtractedRecord{}, extractor.ErrUnreadable
	}
	return rec, nil
}

// flakyRegistry fails a fixed number of lookups before delegating.
type flakyRegistry struct {
	registry.Registry
	failures int
}

func (f *flakyRegistry) Lookup(ctx context.Context, hashKey string) (models.CertificateRecord, error) {
	if f.failures > 0 {
		f.failures--
		return models.CertificateRecord{}, errors.New("connection reset")
	}
	return f.Registry.Lookup(ctx, hashKey)
}

func genuineRecord() models.ExtractedRecord {
	return models.ExtractedRecord{
		StudentName:      "John Doe",
		RollNumber:       "CS001",
		Course:           "Computer Science",
		Institution:      "ABC University",
		Grade:            "A+",
		DateOfCompletion: "2023-05-15",
		RawText:          "certificate scan",
	}
}

func newTestService(reg registry.Registry) *Service {
	tampered := genuineRecord()
	tampered.RollNumber = "CS002"
	ex := &stubExtractor{records: map[string]models.ExtractedRecord{
		"genuine.png":  genuineRecord(),
		"tampered.png": tampered,
	}}
	opts := Options{ExtractTimeout: time.Second, StoreTimeout: time.Second, StoreRetries: 3}
	return NewService(ex, reg, opts, zap.NewNop())
}

func TestRegisterThenVerifyRoundTrip(t *testing.T) {
	svc := newTestService(registry.NewInMemory())
	ctx := context.Background()

	stored, err := svc.Register(ctx, []byte("genuine.png"), "image/png")
	require.NoError(t, err)
	require.Len(t, stored.HashKey, 64)
	assert.False(t, stored.CreatedAt.IsZero())

	verdict, err := svc.Verify(ctx, []byte("genuine.png"), "image/png")
	require.NoError(t, err)
	assert.True(t, verdict.Verified)
	assert.Equal(t, models.VerdictVerified, verdict.Code)
	require.NotNil(t, verdict.Match)
	assert.True(t, verdict.Match.HashMatch)
	assert.Equal(t, stored.HashKey, verdict.Match.HashKey)
	assert.Equal(t, "CS001", verdict.Match.Fields.RollNumber)
}

func TestVerifyUnregisteredDocument(t *testing.T) {
	svc := newTestService(registry.NewInMemory())

	verdict, err := svc.Verify(context.Background(), []byte("genuine.png"), "image/png")
	require.NoError(t, err)
	assert.False(t, verdict.Verified)
	assert.Equal(t, models.VerdictNoMatch, verdict.Code)
	assert.Nil(t, verdict.Match)
	assert.NotEmpty(t, verdict.Message)
}

func TestTamperedDocumentDoesNotMatch(t *testing.T) {
	svc := newTestService(registry.NewInMemory())
	ctx := context.Background()

	genuine, err := svc.Register(ctx, []byte("genuine.png"), "image/png")
	require.NoError(t, err)

	tampered, err := svc.Register(ctx, []byte("tampered.png"), "image/png")
	require.NoError(t, err)
	assert.NotEqual(t, genuine.HashKey, tampered.HashKey)

	require.NoError(t, svc.registry.Delete(ctx, tampered.HashKey))
	verdict, err := svc.Verify(ctx, []byte("tampered.png"), "image/png")
	require.NoError(t, err)
	assert.False(t, verdict.Verified)
	assert.Equal(t, models.VerdictNoMatch, verdict.Code)
}

func TestUnreadableDocumentIsDistinctFromNoMatch(t *testing.T) {
	svc := newTestService(registry.NewInMemory())

	verdict, err := svc.Verify(context.Background(), []byte("corrupt"), "image/png")
	require.NoError(t, err)
	assert.False(t, verdict.Verified)
	assert.Equal(t, models.VerdictUnreadable, verdict.Code)
	assert.Nil(t, verdict.Match)
	assert.NotEqual(t, models.VerdictNoMatch, verdict.Code)
}

func TestDuplicateRegistrationSurfacesConflict(t *testing.T) {
	svc := newTestService(registry.NewInMemory())
	ctx := context.Background()

	_, err := svc.Register(ctx, []byte("genuine.png"), "image/png")
	require.NoError(t, err)

	_, err = svc.Register(ctx, []byte("genuine.png"), "image/png")
	assert.ErrorIs(t, err, registry.ErrDuplicate)
}

func TestUnreadableRegistrationWritesNothing(t *testing.T) {
	reg := registry.NewInMemory()
	svc := newTestService(reg)
	ctx := context.Background()

	_, err := svc.Register(ctx, []byte("corrupt"), "image/png")
	require.ErrorIs(t, err, extractor.ErrUnreadable)

	all, err := reg.List(ctx, registry.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTransientStoreFailuresAreRetried(t *testing.T) {
	inner := registry.NewInMemory()
	svc := newTestService(&flakyRegistry{Registry: inner, failures: 2})
	ctx := context.Background()

	_, err := svc.Register(ctx, []byte("genuine.png"), "image/png")
	require.NoError(t, err)

	verdict, err := svc.Verify(ctx, []byte("genuine.png"), "image/png")
	require.NoError(t, err)
	assert.True(t, verdict.Verified)
}

func TestExhaustedRetriesSurfaceStoreError(t *testing.T) {
	svc := newTestService(&flakyRegistry{Registry: registry.NewInMemory(), failures: 99})

	_, err := svc.Verify(context.Background(), []byte("genuine.png"), "image/png")
	require.Error(t, err)
	assert.NotErrorIs(t, err, registry.ErrNotFound)
}
