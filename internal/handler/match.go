package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/influenza/backend/internal/model"
)

// MatchRecommender is implemented by client.MatchAIClient.
type MatchRecommender interface {
	Recommend(ctx context.Context, businessDetails string) (json.RawMessage, error)
}

type MatchHandler struct {
	recommender MatchRecommender
	logger      *zap.Logger
}

func NewMatchHandler(recommender MatchRecommender, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{recommender: recommender, logger: logger}
}

// Recommend proxies the business profile to the external scoring service and
// returns its payload unchanged.
func (h *MatchHandler) Recommend(c *gin.Context) {
	var req model.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BusinessDetails == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Business details are required"})
		return
	}

	result, err := h.recommender.Recommend(c.Request.Context(), req.BusinessDetails)
	if err != nil {
		h.logger.Error("match service call failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "match service unavailable"})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", result)
}
