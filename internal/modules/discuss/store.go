package discuss

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/deepscholar/core/internal/models"
)

func (s *Service) threadByUUID(ctx context.Context, uuid string) (*models.DiscussThreadModel, error) {
	var thread models.DiscussThreadModel
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load discuss thread: %w", err)
	}
	return &thread, nil
}

func (s *Service) threadByFingerprint(ctx context.Context, fingerprint, userHash string) (*models.DiscussThreadModel, error) {
	var thread models.DiscussThreadModel
	err := s.db.WithContext(ctx).
		Where("fingerprint = ? AND user_hash = ?", fingerprint, userHash).
		First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup discuss thread: %w", err)
	}
	return &thread, nil
}

func (s *Service) nodeByUUID(ctx context.Context, uuid string) (*models.DiscussModel, error) {
	var node models.DiscussModel
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load discuss node: %w", err)
	}
	return &node, nil
}

// summaryNode returns the thread's pinned summary node, or nil when the
// thread has none.
func (s *Service) summaryNode(ctx context.Context, threadUUID string) (*models.DiscussModel, error) {
	var node models.DiscussModel
	err := s.db.WithContext(ctx).
		Where("thread_uuid = ? AND is_summary = 1", threadUUID).
		Order("created_at DESC").
		First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load summary node: %w", err)
	}
	return &node, nil
}

func (s *Service) hasSummary(ctx context.Context, threadUUID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.DiscussModel{}).
		Where("thread_uuid = ? AND is_summary = 1", threadUUID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count summary nodes: %w", err)
	}
	return count > 0, nil
}

// history returns the finished, visible turns of the live branch up to
// and including maxDepth, oldest first.
func (s *Service) history(ctx context.Context, threadUUID string, maxDepth int) ([]models.DiscussModel, error) {
	var nodes []models.DiscussModel
	err := s.db.WithContext(ctx).
		Where("thread_uuid = ? AND depth <= ? AND is_hidden = 0 AND status = ?",
			threadUUID, maxDepth, models.ResponseFinished).
		Order("depth DESC, created_at DESC").
		Limit(s.cfg.HistoryWindow).
		Find(&nodes).Error
	if err != nil {
		return nil, fmt.Errorf("load discuss history: %w", err)
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return nodes, nil
}

// raiseDepth records an accepted node: the thread's depth counter moves
// to the node's depth and every other node at that depth is deprecated,
// in one transaction, so exactly one live branch survives per depth.
func (s *Service) raiseDepth(ctx context.Context, threadUUID string, depth int, keepUUID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DiscussThreadModel{}).
			Where("uuid = ?", threadUUID).
			Update("depth", depth).Error; err != nil {
			return fmt.Errorf("raise thread depth: %w", err)
		}
		if err := tx.Model(&models.DiscussModel{}).
			Where("thread_uuid = ? AND depth = ? AND uuid <> ?", threadUUID, depth, keepUUID).
			Update("status", models.ResponseDeprecated).Error; err != nil {
			return fmt.Errorf("deprecate sibling branches: %w", err)
		}
		return nil
	})
}

// appendNodeChunk writes one generation delta through to the node row
// so a poller sees near real-time progress.
func (s *Service) appendNodeChunk(ctx context.Context, node *models.DiscussModel, delta string) error {
	node.Content += delta
	node.Tokens.Generating = append(node.Tokens.Generating, delta)
	return s.db.WithContext(ctx).Save(node).Error
}

// finalizeNode clears the in-flight buffer and sets the terminal
// status. It ignores caller cancellation so an aborted stream still
// settles the record.
func (s *Service) finalizeNode(node *models.DiscussModel, status models.ResponseStatus, usage models.Usage) error {
	node.Tokens.Generating = []string{}
	node.Status = status
	node.Usage = usage
	return s.db.WithContext(context.Background()).Save(node).Error
}

// SweepStale marks GENERATING nodes untouched for olderThan as ERROR.
// Only reached when a crash interrupted a reply mid-stream.
func (s *Service) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.db.WithContext(ctx).
		Model(&models.DiscussModel{}).
		Where("status = ?", models.ResponseGenerating).
		Where("updated_at < ?", cutoff).
		Update("status", models.ResponseError)
	if res.Error != nil {
		return 0, fmt.Errorf("sweep stale discuss nodes: %w", res.Error)
	}
	return res.RowsAffected, nil
}
