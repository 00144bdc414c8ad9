package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"legalestate/models"
	"legalestate/utils"
)

type HealthHandler struct {
	repo   models.Repository
	cache  utils.RedisClient
	search utils.ElasticsearchClient
}

// NewHealthHandler creates the handler. cache and search are optional.
func NewHealthHandler(repo models.Repository, cache utils.RedisClient, search utils.ElasticsearchClient) *HealthHandler {
	return &HealthHandler{repo: repo, cache: cache, search: search}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	details := gin.H{}
	healthy := true

	if err := h.repo.Ping(ctx); err != nil {
		details["database"] = "unavailable"
		healthy = false
	} else {
		details["database"] = "available"
	}

	// Redis and Elasticsearch degrade features but do not take the API down.
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			details["redis"] = "unavailable"
		} else {
			details["redis"] = "available"
		}
	}
	if h.search != nil {
		if err := h.search.Ping(ctx); err != nil {
			details["elasticsearch"] = "unavailable"
		} else {
			details["elasticsearch"] = "available"
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "details": details})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "details": details})
}
