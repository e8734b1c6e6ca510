package routes

import (
	"net/http"

	"rag-knowledge-platform/services"
	"rag-knowledge-platform/utils"

	"github.com/gin-gonic/gin"
)

type queryRequest struct {
	Query   string   `json:"query" binding:"required"`
	TopK    int      `json:"top_k"`
	ReturnK int      `json:"return_k"`
	Alpha   *float64 `json:"alpha"`
}

// HandleQuery runs hybrid retrieval over one node
func HandleQuery(store *services.DocumentStore, engine *services.RetrievalEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodeID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}

		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "query is required", nil)
			return
		}

		if _, err := store.GetNode(c.Request.Context(), nodeID); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		results, err := engine.Query(c.Request.Context(), nodeID, services.QueryParams{
			Query:   req.Query,
			TopK:    req.TopK,
			ReturnK: req.ReturnK,
			Alpha:   req.Alpha,
		})
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"results": results,
			"count":   len(results),
		})
	}
}
