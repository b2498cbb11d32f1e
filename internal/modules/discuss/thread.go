package discuss

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/modules/aicontent"
)

// CreateThreadRequest describes the subject a conversation attaches to.
// Params carries optional retrieval constraints (pubdate,
// impact_factor) that scope literature search for the whole thread.
type CreateThreadRequest struct {
	RelatedType     models.RelatedType
	RelatedID       int64
	TermTreeNodeIDs []int64
	Ver             string
	Params          models.JSONMap
	UserHash        string
	UserID          int64
	Background      string
}

// ThreadHandle is what a caller needs to continue a conversation.
type ThreadHandle struct {
	UUID       string `json:"thread_uuid"`
	Depth      int    `json:"depth"`
	HasSummary bool   `json:"has_summary"`
}

// CreateThread returns the existing thread for this (subject, owner)
// pair or creates a fresh one at depth zero. The thread fingerprint
// excludes owner identity; the owner hash disambiguates alongside it.
func (s *Service) CreateThread(ctx context.Context, treq CreateThreadRequest) (*ThreadHandle, error) {
	if !treq.RelatedType.Valid() {
		return nil, fmt.Errorf("create thread: unknown related type %d", treq.RelatedType)
	}

	params, err := s.threadParams(treq)
	if err != nil {
		return nil, err
	}
	fingerprint := aicontent.ThreadFingerprint(treq.RelatedType, params)

	existing, err := s.threadByFingerprint(ctx, fingerprint, treq.UserHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		hasSummary, err := s.hasSummary(ctx, existing.UUID)
		if err != nil {
			return nil, err
		}
		return &ThreadHandle{UUID: existing.UUID, Depth: existing.Depth, HasSummary: hasSummary}, nil
	}

	thread := &models.DiscussThreadModel{
		UUID:        uuid.New().String(),
		RelatedType: treq.RelatedType,
		RelatedID:   treq.RelatedID,
		Params:      params,
		Fingerprint: fingerprint,
		UserHash:    treq.UserHash,
		UserID:      treq.UserID,
		Background:  treq.Background,
	}
	if err := s.db.WithContext(ctx).Create(thread).Error; err != nil {
		return nil, fmt.Errorf("create discuss thread: %w", err)
	}
	return &ThreadHandle{UUID: thread.UUID, Depth: thread.Depth, HasSummary: false}, nil
}

func (s *Service) threadParams(treq CreateThreadRequest) (models.JSONMap, error) {
	params := models.JSONMap{}
	for k, v := range treq.Params {
		params[k] = v
	}
	params["ver"] = treq.Ver
	params["term_tree_node_ids"] = treq.TermTreeNodeIDs

	switch treq.RelatedType {
	case models.RelatedChannel:
		params["channel_id"] = treq.RelatedID
	case models.RelatedColumn:
		meta, err := s.library.BuildMetadata(treq.RelatedType, treq.RelatedID, nil)
		if err != nil {
			return nil, fmt.Errorf("resolve column channel: %w", err)
		}
		params["column_id"] = treq.RelatedID
		if meta.BaseID != 0 {
			params["channel_id"] = meta.BaseID
		}
	case models.RelatedArticle:
		params["article_id"] = treq.RelatedID
	}
	return params, nil
}

// PostRequest is one user-authored message.
type PostRequest struct {
	ThreadUUID string
	ReplyUUID  string
	Content    string
	UserID     int64
}

// PostResult locates the accepted node.
type PostResult struct {
	UUID  string `json:"uuid"`
	Depth int    `json:"depth"`
}

// PostDiscuss appends a user node at replyTarget.depth+1, or
// thread.depth+1 when replying to the thread root, then deprecates any
// sibling previously accepted at that depth.
func (s *Service) PostDiscuss(ctx context.Context, preq PostRequest) (*PostResult, error) {
	thread, err := s.threadByUUID(ctx, preq.ThreadUUID)
	if err != nil {
		return nil, err
	}

	var reply *models.DiscussModel
	if preq.ReplyUUID != "" {
		reply, err = s.nodeByUUID(ctx, preq.ReplyUUID)
		if err != nil {
			return nil, err
		}
	}

	node := &models.DiscussModel{
		UUID:        uuid.New().String(),
		RelatedType: thread.RelatedType,
		ThreadID:    thread.ID,
		ThreadUUID:  thread.UUID,
		Depth:       thread.Depth + 1,
		Content:     preq.Content,
		Role:        models.RoleUser,
		Status:      models.ResponseFinished,
	}
	if reply != nil {
		node.ReplyID = &reply.ID
		node.ReplyUUID = &reply.UUID
		node.Depth = reply.Depth + 1
	}
	if preq.UserID != 0 {
		node.UserID = &preq.UserID
	}

	if err := s.db.WithContext(ctx).Create(node).Error; err != nil {
		return nil, fmt.Errorf("save discuss node: %w", err)
	}
	if err := s.raiseDepth(ctx, thread.UUID, node.Depth, node.UUID); err != nil {
		return nil, err
	}
	return &PostResult{UUID: node.UUID, Depth: node.Depth}, nil
}

// ListRequest pages through a thread's visible, finished nodes by depth.
type ListRequest struct {
	ThreadUUID string
	FromDepth  int
	Limit      int
	Desc       bool
}

// ListDiscuss returns nodes of the live branch starting from FromDepth,
// ascending by default or newest-first when Desc is set.
func (s *Service) ListDiscuss(ctx context.Context, lreq ListRequest) ([]models.DiscussModel, error) {
	if _, err := s.threadByUUID(ctx, lreq.ThreadUUID); err != nil {
		return nil, err
	}
	limit := lreq.Limit
	if limit <= 0 {
		limit = s.cfg.HistoryWindow
	}

	query := s.db.WithContext(ctx).
		Where("thread_uuid = ? AND is_hidden = 0 AND status = ?",
			lreq.ThreadUUID, models.ResponseFinished)
	if lreq.Desc {
		query = query.Where("depth <= ?", lreq.FromDepth).Order("depth DESC, created_at DESC")
	} else {
		query = query.Where("depth >= ?", lreq.FromDepth).Order("depth ASC, created_at ASC")
	}

	var nodes []models.DiscussModel
	if err := query.Limit(limit).Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("list discuss nodes: %w", err)
	}
	return nodes, nil
}
