package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/slothbucket/internal/classifier"
	"github.com/example/slothbucket/internal/httperr"
	"github.com/example/slothbucket/internal/logging"
	"github.com/example/slothbucket/internal/repository"
)

// How long a parsed classification stays cached for identical payloads.
const resultCacheTTL = 10 * time.Minute

// ImageRepository defines the persistence operations needed by the pipeline.
type ImageRepository interface {
	SaveImage(ctx context.Context, record *repository.ImageRecord) error
	FindImagesByUser(ctx context.Context, userID string) ([]*repository.ImageRecord, error)
}

// FileStore defines the materializer operations needed by the pipeline.
type FileStore interface {
	Materialize(ctx context.Context, payload string) (string, error)
	Path(filename string) string
	Remove(filename string)
	ReadBase64(path string) (string, error)
}

// ClassifyOutcome is the result of the authenticated classification flow. A
// persistence failure never voids the classification already computed; it is
// carried separately so the caller can surface both.
type ClassifyOutcome struct {
	RequestID  string
	Result     *classifier.Result
	FilePath   string
	PersistErr error
}

// LibraryImage is one stored image returned by the image library.
type LibraryImage struct {
	Base64Image string `json:"base64Image"`
}

// ClassifyUseCase composes validation, materialization, classification,
// parsing, and optional persistence into the per-request pipeline. Stages are
// strictly sequential within a request; requests never share mutable state.
type ClassifyUseCase struct {
	repo           ImageRepository
	cache          Cache
	files          FileStore
	invoker        classifier.Invoker
	parserCfg      classifier.ParserConfig
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewClassifyUseCase constructs a new pipeline instance.
func NewClassifyUseCase(repo ImageRepository, cache Cache, files FileStore, invoker classifier.Invoker, logger *zap.Logger) *ClassifyUseCase {
	return &ClassifyUseCase{
		repo:           repo,
		cache:          cache,
		files:          files,
		invoker:        invoker,
		parserCfg:      classifier.DefaultParserConfig(),
		logger:         logger.Named("classify_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// ClassifyImage runs the authenticated pipeline: materialize, classify,
// parse, and persist a record when the sloth check passes. The materialized
// file is retained so the image library can serve it later.
func (uc *ClassifyUseCase) ClassifyImage(ctx context.Context, userID, payload string) (*ClassifyOutcome, error) {
	if userID == "" || payload == "" {
		return nil, httperr.IncompleteRequest()
	}

	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.classify_image", requestID)

	cacheKey := resultCacheKey(userID, payload)
	if cached := uc.cachedResult(ctx, requestID, cacheKey); cached != nil {
		opLogger.Info("serving cached classification", zap.Bool("contains_sloth", cached.SlothCheck.ContainsSloth))
		return &ClassifyOutcome{RequestID: requestID, Result: cached}, nil
	}

	result, filename, err := uc.runPipeline(ctx, requestID, payload)
	if err != nil {
		return nil, err
	}
	uc.storeResult(ctx, requestID, cacheKey, result)

	outcome := &ClassifyOutcome{
		RequestID: requestID,
		Result:    result,
		FilePath:  uc.files.Path(filename),
	}

	if result.SlothCheck.ContainsSloth {
		record := &repository.ImageRecord{
			FilePath:  outcome.FilePath,
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
		}
		if err := uc.repo.SaveImage(ctx, record); err != nil {
			wrapped := logging.NewOperationError("usecase.save_image", requestID, err)
			opLogger.Error("failed to persist image record", zap.Error(wrapped))
			outcome.PersistErr = wrapped
		}
	}

	return outcome, nil
}

// ClassifyImageEphemeral runs the demo pipeline: no persistence, and the
// materialized file is deleted once the request finishes, whether the
// pipeline succeeded or failed.
func (uc *ClassifyUseCase) ClassifyImageEphemeral(ctx context.Context, payload string) (*classifier.Result, error) {
	if payload == "" {
		return nil, httperr.IncompleteRequest()
	}

	requestID := uuid.NewString()
	result, filename, err := uc.runPipeline(ctx, requestID, payload)
	if filename != "" {
		uc.files.Remove(filename)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ImageLibrary loads a user's stored images, newest first, as base64 payloads.
func (uc *ClassifyUseCase) ImageLibrary(ctx context.Context, userID string) ([]LibraryImage, error) {
	if userID == "" {
		return nil, httperr.IncompleteRequest()
	}

	records, err := uc.repo.FindImagesByUser(ctx, userID)
	if err != nil {
		logging.WithOperation(uc.logger, "usecase.image_library", userID).Error("failed to load image records", zap.Error(err))
		return nil, httperr.InternalError(err)
	}

	images := make([]LibraryImage, 0, len(records))
	for _, record := range records {
		encoded, err := uc.files.ReadBase64(record.FilePath)
		if err != nil {
			return nil, err
		}
		images = append(images, LibraryImage{Base64Image: encoded})
	}
	return images, nil
}

// runPipeline executes materialize, classify, parse. It returns the filename
// even on failure so callers with ephemeral semantics can clean up.
func (uc *ClassifyUseCase) runPipeline(ctx context.Context, requestID, payload string) (*classifier.Result, string, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.pipeline", requestID)

	filename, err := uc.files.Materialize(ctx, payload)
	if err != nil {
		opLogger.Error("materialization failed", zap.Error(err))
		return nil, "", err
	}

	rawOutput, err := uc.invoker.Classify(ctx, filename)
	if err != nil {
		opLogger.Error("classification failed", zap.Error(err))
		return nil, filename, err
	}

	result, err := classifier.ParseResult(rawOutput, uc.parserCfg)
	if err != nil {
		opLogger.Error("failed to parse classifier output", zap.Error(err))
		return nil, filename, err
	}

	opLogger.Info("image classified",
		zap.Int("labels", len(result.ImageLabels)),
		zap.Bool("contains_sloth", result.SlothCheck.ContainsSloth))
	return result, filename, nil
}

// cachedResult returns a previously parsed result for an identical payload,
// or nil. The cache is an optimization: every failure is logged and ignored.
func (uc *ClassifyUseCase) cachedResult(ctx context.Context, requestID, cacheKey string) *classifier.Result {
	serialized, err := uc.withRedisGet(ctx, requestID, "cache.get.result", cacheKey)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.WithOperation(uc.logger, "usecase.cached_result", requestID).Warn("failed to read cache", zap.Error(err))
		}
		return nil
	}
	var result classifier.Result
	if err := json.Unmarshal([]byte(serialized), &result); err != nil {
		logging.WithOperation(uc.logger, "usecase.cached_result", requestID).Warn("failed to decode cached result", zap.Error(err))
		return nil
	}
	return &result
}

func (uc *ClassifyUseCase) storeResult(ctx context.Context, requestID, cacheKey string, result *classifier.Result) {
	serialized, err := json.Marshal(result)
	if err != nil {
		logging.WithOperation(uc.logger, "usecase.store_result", requestID).Warn("failed to serialize result", zap.Error(err))
		return
	}
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey, string(serialized), resultCacheTTL)
	}); err != nil {
		logging.WithOperation(uc.logger, "usecase.store_result", requestID).Warn("failed to cache result", zap.Error(err))
	}
}

// resultCacheKey scopes cached results to the submitting user. Persisting an
// image record is a per-user side effect of detection, so a hit on another
// user's identical payload must not short-circuit that user's pipeline.
func resultCacheKey(userID, payload string) string {
	sum := sha1.Sum([]byte(payload))
	return fmt.Sprintf("classify:%s:%x", userID, sum)
}

func (uc *ClassifyUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *ClassifyUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
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
