package aicontent

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
	content := rg.Group("/content")
	content.POST("/summary", h.generateSummary)
	content.POST("/question", h.generateQuestions)
	content.GET("/response/:id", h.getResponse)
}

type summaryDTO struct {
	RelatedType     int     `json:"related_type" binding:"required"`
	RelatedID       int64   `json:"related_id"   binding:"required"`
	TermTreeNodeIDs []int64 `json:"term_tree_node_ids"`
	Stream          bool    `json:"stream"`
	DepressCache    bool    `json:"depress_cache"`
	Ver             string  `json:"ver"`
}

type questionDTO struct {
	RelatedType     int     `json:"related_type" binding:"required"`
	RelatedID       int64   `json:"related_id"   binding:"required"`
	TermTreeNodeIDs []int64 `json:"term_tree_node_ids"`
	DepressCache    bool    `json:"depress_cache"`
	Count           int     `json:"count"`
	Ver             string  `json:"ver"`
}

// POST /content/summary
func (h *Handler) generateSummary(c *gin.Context) {
	var dto summaryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	greq := GenerateRequest{
		RelatedType:     models.RelatedType(dto.RelatedType),
		RelatedID:       dto.RelatedID,
		TermTreeNodeIDs: dto.TermTreeNodeIDs,
		Stream:          dto.Stream,
		DepressCache:    dto.DepressCache,
		Ver:             dto.Ver,
	}

	if dto.Stream {
		if err := h.svc.StreamSummary(c, greq); err != nil {
			h.abortGenerate(c, err)
		}
		return
	}

	resp, err := h.svc.GenerateSummary(c.Request.Context(), greq)
	if err != nil {
		h.abortGenerate(c, err)
		return
	}
	response.OK(c, gin.H{
		"response_id": resp.ID,
		"content":     resp.Content,
		"usage":       resp.Usage,
	})
}

// POST /content/question
func (h *Handler) generateQuestions(c *gin.Context) {
	var dto questionDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	questions, resp, err := h.svc.GenerateQuestions(c.Request.Context(), GenerateRequest{
		RelatedType:     models.RelatedType(dto.RelatedType),
		RelatedID:       dto.RelatedID,
		TermTreeNodeIDs: dto.TermTreeNodeIDs,
		DepressCache:    dto.DepressCache,
		QuestionCount:   dto.Count,
		Ver:             dto.Ver,
	})
	if err != nil {
		h.abortGenerate(c, err)
		return
	}
	response.OK(c, gin.H{
		"response_id": resp.ID,
		"questions":   questions,
	})
}

// GET /content/response/:id polls a response mid-stream or after.
func (h *Handler) getResponse(c *gin.Context) {
	resp, err := h.svc.Response(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, errResponseNotFound) {
			response.NotFound(c, "response not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, resp)
}

func (h *Handler) abortGenerate(c *gin.Context, err error) {
	if errors.Is(err, errUnknownSubject) {
		response.BadRequest(c, err.Error())
		return
	}
	response.InternalError(c, err)
}
