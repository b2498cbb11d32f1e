package aicontent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/deepscholar/core/internal/models"
)

const generationLockTTL = 10 * time.Minute

// CreateRequest persists a normalized generation request. The
// fingerprint is computed up front so that a cache hit never needs a
// request row at all.
func (s *Service) CreateRequest(ctx context.Context, req *models.ContentRequestModel) error {
	if req.Fingerprint == "" {
		req.Fingerprint = Fingerprint(req.ContentType, req.Query, req.Params)
	}
	if req.Status == 0 {
		req.Status = models.RequestStart
	}
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("create content request: %w", err)
	}
	return nil
}

func (s *Service) SetRequestStatus(ctx context.Context, requestID string, status models.RequestStatus) error {
	return s.db.WithContext(ctx).
		Model(&models.ContentRequestModel{}).
		Where("id = ?", requestID).
		Update("status", status).Error
}

// Lookup returns the freshest finished response whose request carries
// the given fingerprint, or nil on a miss. A hit bumps cache_hit_cnt.
// Rows outside the freshness window, or not yet finished on either
// side, are misses; a miss is never cached.
func (s *Service) Lookup(ctx context.Context, fingerprint string) (*models.ContentResponseModel, error) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.Days).Truncate(24 * time.Hour)

	var resp models.ContentResponseModel
	err := s.db.WithContext(ctx).
		Joins("JOIN ai_content_requests req ON req.id = ai_content_responses.request_id").
		Where("req.fingerprint = ?", fingerprint).
		Where("req.status = ?", models.RequestFinished).
		Where("ai_content_responses.status = ?", models.ResponseFinished).
		Where("ai_content_responses.created_at > ?", cutoff).
		Order("ai_content_responses.updated_at DESC").
		First(&resp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&models.ContentResponseModel{}).
		Where("id = ?", resp.ID).
		UpdateColumn("cache_hit_cnt", gorm.Expr("cache_hit_cnt + 1")).Error; err != nil {
		s.logger.Warn("failed to bump cache hit counter", zap.String("response_id", resp.ID), zap.Error(err))
	}
	resp.CacheHitCnt++
	return &resp, nil
}

// CreateResponse inserts an empty GENERATING row before the first token
// so that a poller can observe the stream from its very beginning.
// is_generating stays 0 until the first chunk lands.
func (s *Service) CreateResponse(ctx context.Context, requestID string) (*models.ContentResponseModel, error) {
	resp := &models.ContentResponseModel{
		RequestID: requestID,
		Tokens:    models.TokenBuffer{Generating: []string{}},
		Status:    models.ResponseGenerating,
	}
	if err := s.db.WithContext(ctx).Create(resp).Error; err != nil {
		return nil, fmt.Errorf("create content response: %w", err)
	}
	return resp, nil
}

// AppendChunk writes one streamed delta through to the response row.
// Every chunk is committed individually; there is a single writer per
// response id, so the row always reflects a prefix of the final text.
func (s *Service) AppendChunk(ctx context.Context, resp *models.ContentResponseModel, delta string) error {
	resp.Content += delta
	resp.Tokens.Generating = append(resp.Tokens.Generating, delta)
	resp.IsGenerating = 1
	if err := s.db.WithContext(ctx).Save(resp).Error; err != nil {
		return fmt.Errorf("append response chunk: %w", err)
	}
	return nil
}

// Finalize moves a response to a terminal status and clears the
// in-flight token buffer. It runs on a fresh background context so that
// a cancelled request still leaves no row stuck in GENERATING.
func (s *Service) Finalize(resp *models.ContentResponseModel, status models.ResponseStatus, usage models.Usage) error {
	resp.IsGenerating = 0
	resp.Tokens.Generating = []string{}
	resp.Status = status
	resp.Usage = usage
	if err := s.db.WithContext(context.Background()).Save(resp).Error; err != nil {
		return fmt.Errorf("finalize response: %w", err)
	}
	return nil
}

// SweepStale marks GENERATING responses that have not received a chunk
// within olderThan as ERROR. Finalize normally closes every row even on
// cancellation; the sweep catches rows orphaned by a process crash.
func (s *Service) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.db.WithContext(ctx).
		Model(&models.ContentResponseModel{}).
		Where("status = ?", models.ResponseGenerating).
		Where("updated_at < ?", cutoff).
		Updates(map[string]interface{}{"status": models.ResponseError, "is_generating": 0})
	if res.Error != nil {
		return 0, fmt.Errorf("sweep stale responses: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Response loads a response row by id.
func (s *Service) Response(ctx context.Context, id string) (*models.ContentResponseModel, error) {
	var resp models.ContentResponseModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&resp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errResponseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func generationLockKey(fingerprint string) string {
	return "deepscholar:gen:" + fingerprint
}

// acquireGeneration tries to take the single-flight lock for a
// fingerprint. Losing the race, or redis being unavailable, degrades to
// regeneration; the overwrite is idempotent.
func (s *Service) acquireGeneration(ctx context.Context, fingerprint string) bool {
	if s.rdb == nil {
		return false
	}
	ok, err := s.rdb.SetNX(ctx, generationLockKey(fingerprint), 1, generationLockTTL)
	if err != nil {
		s.logger.Warn("generation lock unavailable", zap.String("fingerprint", fingerprint), zap.Error(err))
		return false
	}
	return ok
}

func (s *Service) releaseGeneration(fingerprint string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(context.Background(), generationLockKey(fingerprint)); err != nil {
		s.logger.Warn("failed to release generation lock", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}
