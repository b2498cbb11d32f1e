package overview

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/deepscholar/core/internal/models"
	"github.com/deepscholar/core/internal/modules/aicontent"
	"github.com/deepscholar/core/internal/pkg/render"
	"github.com/deepscholar/core/internal/pkg/response"
)

// Handler serves full-review generation. Results run through the same
// fingerprint cache as the short-form content, stored as the compiled
// section document.
type Handler struct {
	svc     *Service
	content *aicontent.Service
	logger  *zap.Logger
}

func NewHandler(svc *Service, content *aicontent.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, content: content, logger: logger.Named("OverviewHandler")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/content/overview", h.generateOverview)
}

type overviewDTO struct {
	Topic        string `json:"topic" binding:"required"`
	DepressCache bool   `json:"depress_cache"`
	RenderHTML   bool   `json:"render_html"`
}

// POST /content/overview
func (h *Handler) generateOverview(c *gin.Context) {
	var dto overviewDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	params := models.JSONMap{"target_language": h.svc.cfg.TargetLanguage}
	fingerprint := aicontent.Fingerprint(models.ContentLongSummary, dto.Topic, params)

	if !dto.DepressCache {
		cached, err := h.content.Lookup(ctx, fingerprint)
		if err != nil {
			h.logger.Warn("overview cache lookup failed", zap.Error(err))
		} else if cached != nil {
			var ov Overview
			if err := json.Unmarshal([]byte(cached.Content), &ov); err == nil {
				h.respond(c, &ov, cached.ID, dto.RenderHTML)
				return
			}
			h.logger.Warn("cached overview is unreadable, regenerating",
				zap.String("response_id", cached.ID), zap.Error(err))
		}
	}

	req := &models.ContentRequestModel{
		ContentType: models.ContentLongSummary,
		Query:       dto.Topic,
		Params:      params,
		Status:      models.RequestStart,
	}
	if err := h.content.CreateRequest(ctx, req); err != nil {
		response.InternalError(c, err)
		return
	}
	resp, err := h.content.CreateResponse(ctx, req.ID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if err := h.content.SetRequestStatus(ctx, req.ID, models.RequestHandling); err != nil {
		h.logger.Warn("failed to mark request handling", zap.String("request_id", req.ID), zap.Error(err))
	}

	ov, err := h.svc.Generate(ctx, dto.Topic)
	if err != nil {
		_ = h.content.Finalize(resp, models.ResponseError, models.Usage{})
		response.InternalError(c, err)
		return
	}

	doc, err := json.Marshal(ov)
	if err != nil {
		_ = h.content.Finalize(resp, models.ResponseError, ov.Usage)
		response.InternalError(c, err)
		return
	}
	resp.Content = string(doc)
	if err := h.content.SetRequestStatus(ctx, req.ID, models.RequestFinished); err != nil {
		h.logger.Warn("failed to mark request finished", zap.String("request_id", req.ID), zap.Error(err))
	}
	if err := h.content.Finalize(resp, models.ResponseFinished, ov.Usage); err != nil {
		h.logger.Error("failed to finalize overview response", zap.String("response_id", resp.ID), zap.Error(err))
	}

	h.respond(c, ov, resp.ID, dto.RenderHTML)
}

func (h *Handler) respond(c *gin.Context, ov *Overview, responseID string, renderHTML bool) {
	payload := gin.H{
		"response_id": responseID,
		"overview":    ov,
	}
	if renderHTML {
		payload["html"] = gin.H{
			"source": render.Markdown(ov.ComposeSource()),
			"target": render.Markdown(ov.ComposeTarget()),
		}
	}
	response.OK(c, payload)
}
