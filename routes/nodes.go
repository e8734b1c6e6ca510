package routes

import (
	"net/http"

	"rag-knowledge-platform/internal/telemetry"
	"rag-knowledge-platform/services"
	"rag-knowledge-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type createNodeRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// parseObjectID reads a hex object id path param, responding 400 on garbage.
func parseObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		utils.RespondWithBadRequest(c, "invalid id", gin.H{"param": param})
		return primitive.NilObjectID, false
	}
	return id, true
}

// HandleCreateNode creates a retrieval namespace
func HandleCreateNode(store *services.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createNodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "name is required", nil)
			return
		}

		node, err := store.CreateNode(c.Request.Context(), req.Name, req.Description)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, node)
	}
}

// HandleListNodes lists all nodes
func HandleListNodes(store *services.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodes, err := store.ListNodes(c.Request.Context())
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"nodes": nodes, "count": len(nodes)})
	}
}

// HandleGetNode returns one node
func HandleGetNode(store *services.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodeID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		node, err := store.GetNode(c.Request.Context(), nodeID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, node)
	}
}

// HandleDeleteNode cascade-deletes a node with all its documents, chunks and
// embeddings
func HandleDeleteNode(store *services.DocumentStore, blobs *services.BlobStore, cache *services.ChunkCache, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodeID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}

		paths, chunks, err := store.DeleteNode(c.Request.Context(), nodeID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		blobs.Remove(paths...)
		cache.Invalidate(c.Request.Context(), nodeID)
		if metrics != nil {
			metrics.RecordCascadeDelete(len(paths), int(chunks))
		}

		c.JSON(http.StatusOK, gin.H{"deleted": true, "documents_removed": len(paths)})
	}
}
