package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"certproof/internal/models"
)

// Postgres is the production Registry, backed by gorm. The hash key is the
// table's primary key, so duplicate registration is rejected by the database
// itself and concurrent check-then-insert races cannot lose updates.
type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects, tunes the pool and migrates the certificates table.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetMaxOpenConns(20)

	if err := db.AutoMigrate(&models.CertificateRecord{}); err != nil {
		return nil, fmt.Errorf("migrate certificates: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an already-open gorm handle (integration tests).
func NewPostgres(db *gorm.DB) *Postgres { return &Postgres{db: db} }

func (s *Postgres) Register(ctx context.Context, rec models.CertificateRecord) (models.CertificateRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return models.CertificateRecord{}, ErrDuplicate
		}
		return models.CertificateRecord{}, fmt.Errorf("insert certificate: %w", err)
	}
	return rec, nil
}

func (s *Postgres) Lookup(ctx context.Context, hashKey string) (models.CertificateRecord, error) {
	var rec models.CertificateRecord
	err := s.db.WithContext(ctx).Where("hash_key = ?", hashKey).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CertificateRecord{}, ErrNotFound
	}
	if err != nil {
		return models.CertificateRecord{}, fmt.Errorf("lookup certificate: %w", err)
	}
	return rec, nil
}

func (s *Postgres) List(ctx context.Context, f Filter) ([]models.CertificateRecord, error) {
	q := s.db.WithContext(ctx).Model(&models.CertificateRecord{})
	if f.Query != "" {
		like := "%" + f.Query + "%"
		q = q.Where("student_name ILIKE ? OR roll_number ILIKE ? OR course ILIKE ?", like, like, like)
	}
	if f.Verified != nil {
		q = q.Where("verified = ?", *f.Verified)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var recs []models.CertificateRecord
	err := q.Order("created_at ASC").Limit(limit).Offset(f.Offset).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return recs, nil
}

func (s *Postgres) Delete(ctx context.Context, hashKey string) error {
	res := s.db.WithContext(ctx).Where("hash_key = ?", hashKey).Delete(&models.CertificateRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete certificate: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) SetVerified(ctx context.Context, hashKey string, verified bool) error {
	res := s.db.WithContext(ctx).Model(&models.CertificateRecord{}).
		Where("hash_key = ?", hashKey).
		Update("verified", verified)
	if res.Error != nil {
		return fmt.Errorf("update verified flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
