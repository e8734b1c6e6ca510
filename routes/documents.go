package routes

import (
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/crawler"
	"rag-knowledge-platform/models"
	"rag-knowledge-platform/services"
	"rag-knowledge-platform/utils"

	"github.com/gin-gonic/gin"
)

// HandleUploadDocument ingests an uploaded file into a node. Small uploads
// complete synchronously; large ones are queued and return 202 while pending.
func HandleUploadDocument(cfg *config.Config, pipeline *services.IngestionPipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodeID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}

		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"file_too_large", "File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"file_too_large", "File size exceeds maximum limit", nil)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if !typeAllowed(cfg.AllowedTypes, contentType, header.Filename) {
			utils.RespondWithUnsupportedMedia(c, "file type not allowed")
			return
		}

		content, err := io.ReadAll(file)
		if err != nil {
			utils.RespondWithBadRequest(c, "Cannot read uploaded file", nil)
			return
		}

		doc, err := pipeline.IngestUpload(c.Request.Context(), nodeID, header.Filename, contentType, content)
		if err != nil {
			if doc != nil && doc.Status == models.StatusFailed {
				// The document record survives as an audit trail.
				c.JSON(http.StatusUnprocessableEntity, gin.H{
					"error_code": "ingestion_failed",
					"message":    doc.ErrorMessage,
					"document":   doc,
				})
				return
			}
			utils.RespondWithDomainError(c, err)
			return
		}

		switch doc.Status {
		case models.StatusPending:
			c.JSON(http.StatusAccepted, doc)
		default:
			c.JSON(http.StatusCreated, doc)
		}
	}
}

type crawlRequest struct {
	URL string `json:"url" binding:"required"`
}

// HandleCrawlURL fetches a web page and ingests its readable text as a
// document of the node.
func HandleCrawlURL(fetcher *crawler.Fetcher, pipeline *services.IngestionPipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodeID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}

		var req crawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "url is required", nil)
			return
		}

		page, err := fetcher.Fetch(c.Request.Context(), req.URL)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadGateway,
				"crawl_failed", err.Error(), nil)
			return
		}

		doc, err := pipeline.IngestUpload(c.Request.Context(), nodeID,
			crawlFilename(req.URL), "text/plain", []byte(page.Text))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"document": doc,
			"title":    page.Title,
			"url":      page.URL,
		})
	}
}

// HandleListDocuments lists a node's documents with their ingestion status
func HandleListDocuments(store *services.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodeID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		if _, err := store.GetNode(c.Request.Context(), nodeID); err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		docs, err := store.ListDocuments(c.Request.Context(), nodeID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	}
}

// HandleGetDocument returns one document
func HandleGetDocument(store *services.DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodeID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		docID, ok := parseObjectID(c, "docId")
		if !ok {
			return
		}

		doc, err := store.GetDocument(c.Request.Context(), nodeID, docID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// HandleDeleteDocument removes a document with its chunks and embeddings
func HandleDeleteDocument(store *services.DocumentStore, blobs *services.BlobStore, cache *services.ChunkCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		nodeID, ok := parseObjectID(c, "id")
		if !ok {
			return
		}
		docID, ok := parseObjectID(c, "docId")
		if !ok {
			return
		}

		path, err := store.DeleteDocument(c.Request.Context(), nodeID, docID)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}

		blobs.Remove(path)
		cache.Invalidate(c.Request.Context(), nodeID)
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

func typeAllowed(allowed []string, contentType, filename string) bool {
	for _, t := range allowed {
		t = strings.TrimSpace(t)
		if t != "" && strings.HasPrefix(contentType, t) {
			return true
		}
	}
	// Some clients send application/octet-stream; fall back to the
	// extension, which extraction dispatches on anyway.
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".csv", ".log", ".html", ".htm", ".pdf", ".xlsx":
		return true
	}
	return false
}

// crawlFilename derives a stable document name from a URL.
func crawlFilename(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "crawled.txt"
	}
	name := parsed.Hostname() + strings.ReplaceAll(parsed.Path, "/", "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "crawled.txt"
	}
	return name + ".txt"
}
