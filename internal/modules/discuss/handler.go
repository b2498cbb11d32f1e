package discuss

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	discuss := rg.Group("/discuss")
	discuss.POST("/create_thread", h.createThread)
	discuss.POST("/list", h.listDiscuss)
	discuss.POST("/post", h.postDiscuss)
	discuss.POST("/ai_reply", h.aiReply)
}

type createThreadDTO struct {
	RelatedType     int                    `json:"related_type" binding:"required"`
	RelatedID       int64                  `json:"related_id"   binding:"required"`
	TermTreeNodeIDs []int64                `json:"term_tree_node_ids"`
	Ver             string                 `json:"ver"`
	Params          map[string]interface{} `json:"params"`
	UserHash        string                 `json:"user_hash"`
	UserID          int64                  `json:"user_id"`
	Background      string                 `json:"background"`
}

// POST /discuss/create_thread
func (h *Handler) createThread(c *gin.Context) {
	var dto createThreadDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	handle, err := h.svc.CreateThread(c.Request.Context(), CreateThreadRequest{
		RelatedType:     models.RelatedType(dto.RelatedType),
		RelatedID:       dto.RelatedID,
		TermTreeNodeIDs: dto.TermTreeNodeIDs,
		Ver:             dto.Ver,
		Params:          dto.Params,
		UserHash:        dto.UserHash,
		UserID:          dto.UserID,
		Background:      dto.Background,
	})
	if err != nil {
		h.abort(c, err)
		return
	}
	response.OK(c, handle)
}

type listDTO struct {
	ThreadUUID string `json:"thread_uuid" binding:"required"`
	FromDepth  int    `json:"from_depth"`
	Limit      int    `json:"limit"`
	Sort       string `json:"sort"` // "asc" (default) | "desc"
}

type listEntity struct {
	UUID      string             `json:"uuid"`
	Depth     int                `json:"depth"`
	Content   string             `json:"content"`
	Created   int64              `json:"created"`
	Role      models.DiscussRole `json:"role"`
	IsSummary int                `json:"is_summary"`
	UserID    int64              `json:"user_id"`
}

// POST /discuss/list
func (h *Handler) listDiscuss(c *gin.Context) {
	var dto listDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	nodes, err := h.svc.ListDiscuss(c.Request.Context(), ListRequest{
		ThreadUUID: dto.ThreadUUID,
		FromDepth:  dto.FromDepth,
		Limit:      dto.Limit,
		Desc:       dto.Sort == "desc",
	})
	if err != nil {
		h.abort(c, err)
		return
	}

	entities := make([]listEntity, 0, len(nodes))
	for _, node := range nodes {
		entity := listEntity{
			UUID:      node.UUID,
			Depth:     node.Depth,
			Content:   node.Content,
			Created:   node.CreatedAt.Unix(),
			Role:      node.Role,
			IsSummary: node.IsSummary,
		}
		if node.UserID != nil {
			entity.UserID = *node.UserID
		}
		entities = append(entities, entity)
	}
	response.OK(c, gin.H{
		"count":        len(entities),
		"discuss_list": entities,
	})
}

type postDTO struct {
	ThreadUUID string `json:"thread_uuid" binding:"required"`
	ReplyUUID  string `json:"reply_uuid"`
	Content    string `json:"content"     binding:"required"`
	UserID     int64  `json:"user_id"`
}

// POST /discuss/post
func (h *Handler) postDiscuss(c *gin.Context) {
	var dto postDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.svc.PostDiscuss(c.Request.Context(), PostRequest{
		ThreadUUID: dto.ThreadUUID,
		ReplyUUID:  dto.ReplyUUID,
		Content:    dto.Content,
		UserID:     dto.UserID,
	})
	if err != nil {
		h.abort(c, err)
		return
	}
	response.OK(c, result)
}

type aiReplyDTO struct {
	ThreadUUID string `json:"thread_uuid" binding:"required"`
	ReplyUUID  string `json:"reply_uuid"  binding:"required"`
}

// POST /discuss/ai_reply
func (h *Handler) aiReply(c *gin.Context) {
	var dto aiReplyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.AIReply(c, dto.ThreadUUID, dto.ReplyUUID); err != nil {
		h.abort(c, err)
	}
}

func (h *Handler) abort(c *gin.Context, err error) {
	if errors.Is(err, errThreadNotFound) || errors.Is(err, errNodeNotFound) {
		response.BadRequest(c, err.Error())
		return
	}
	response.InternalError(c, err)
}
