package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/slothbucket/internal/logging"
)

// ImageRecord associates a stored image file with its owning user.
type ImageRecord struct {
	ID        uint      `gorm:"primaryKey"`
	FilePath  string    `gorm:"column:file_path;uniqueIndex;size:255;not null"`
	UserID    string    `gorm:"column:user_id;size:64;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (ImageRecord) TableName() string {
	return "image_records"
}

// ImageRepository provides persistence APIs for image records.
type ImageRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewImageRepository creates a new repository instance.
func NewImageRepository(db *gorm.DB, logger *zap.Logger) *ImageRepository {
	return &ImageRepository{
		db:             db,
		logger:         logger.Named("image_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *ImageRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&ImageRecord{})
}

// SaveImage persists an image record.
func (r *ImageRepository) SaveImage(ctx context.Context, record *ImageRecord) error {
	return r.executeWithRetry(ctx, "repository.save_image", record.FilePath, func() error {
		return r.db.WithContext(ctx).Create(record).Error
	})
}

// FindImagesByUser retrieves a user's image records, newest first.
func (r *ImageRepository) FindImagesByUser(ctx context.Context, userID string) ([]*ImageRecord, error) {
	var records []*ImageRecord
	err := r.executeWithRetry(ctx, "repository.find_images", userID, func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *ImageRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	if r.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
