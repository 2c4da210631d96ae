package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nixj9/construction-doc-processor/middleware"
	"github.com/nixj9/construction-doc-processor/model"
	"github.com/nixj9/construction-doc-processor/pkg/logger"
	"github.com/nixj9/construction-doc-processor/service"
)

type BatchHandler struct {
	objectStore service.ObjectStore
	store       *service.BatchStore
	runner      *service.BatchRunner
	maxFiles    int
	maxFileSize int64
}

// NewBatchHandler creates the batch endpoints. objectStore may be nil, in
// which case uploads are not archived.
func NewBatchHandler(store *service.BatchStore, runner *service.BatchRunner, objectStore service.ObjectStore, maxFiles int, maxFileSizeMB int) *BatchHandler {
	return &BatchHandler{
		objectStore: objectStore,
		store:       store,
		runner:      runner,
		maxFiles:    maxFiles,
		maxFileSize: int64(maxFileSizeMB) * 1024 * 1024,
	}
}

// Upload accepts a multipart batch under the "files" field and starts
// processing it in the background.
func (h *BatchHandler) Upload(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	ctx := context.WithValue(c.Request.Context(), logger.TenantKey, tenant)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}
	if h.maxFiles > 0 && len(headers) > h.maxFiles {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Too many files: %d (max %d)", len(headers), h.maxFiles)})
		return
	}

	batchID := uuid.New().String()
	items := make([]*model.Item, 0, len(headers))
	for _, header := range headers {
		if h.maxFileSize > 0 && header.Size > h.maxFileSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File %s exceeds %d MB", header.Filename, h.maxFileSize/1024/1024)})
			return
		}
		item, err := readItem(header)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file: " + err.Error()})
			return
		}
		items = append(items, item)
	}

	if h.objectStore != nil {
		prefix := service.BatchPrefix(tenant, batchID)
		for _, item := range items {
			objectName, err := service.ArchiveItem(ctx, h.objectStore, prefix, item)
			if err != nil {
				logger.Error(ctx, "failed to archive upload", "file", item.Name, "error", err)
				if cleanupErr := h.objectStore.DeletePrefix(ctx, prefix); cleanupErr != nil {
					logger.Warn(ctx, "failed to clean up partial upload", "error", cleanupErr)
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file: " + err.Error()})
				return
			}
			item.ObjectName = objectName
		}
	}

	now := time.Now()
	batch := &model.Batch{
		ID:        batchID,
		Tenant:    tenant,
		Status:    model.StatusPending,
		FileCount: len(items),
		CreatedAt: now,
		UpdatedAt: now,
	}
	h.runner.Start(ctx, batch, items)

	logger.Info(ctx, "batch submitted", "batch_id", batchID, "files", len(items))

	c.JSON(http.StatusAccepted, gin.H{
		"id":         batchID,
		"status":     model.StatusPending,
		"file_count": len(items),
	})
}

func readItem(header *multipart.FileHeader) (*model.Item, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return &model.Item{
		ID:          uuid.New().String(),
		Name:        header.Filename,
		Size:        int64(len(data)),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// List returns all batches for the current tenant
func (h *BatchHandler) List(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	batches := h.store.GetByTenant(tenant)

	// Return without outcomes for list view
	result := make([]gin.H, len(batches))
	for i, batch := range batches {
		result[i] = gin.H{
			"id":         batch.ID,
			"status":     batch.Status,
			"file_count": batch.FileCount,
			"processed":  batch.Processed,
			"created_at": batch.CreatedAt.Format(time.RFC3339),
			"updated_at": batch.UpdatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"batches": result})
}

// Get returns a batch with its result log. ?format=msgpack returns the
// report as MessagePack.
func (h *BatchHandler) Get(c *gin.Context) {
	batch, results, ok := h.lookup(c)
	if !ok {
		return
	}

	if format := c.Query("format"); format != "" && format != service.FormatJSON {
		data, contentType, err := service.EncodeReport(service.NewBatchReport(batch, results), format)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, contentType, data)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         batch.ID,
		"status":     batch.Status,
		"file_count": batch.FileCount,
		"processed":  batch.Processed,
		"error_msg":  batch.ErrorMsg,
		"created_at": batch.CreatedAt.Format(time.RFC3339),
		"updated_at": batch.UpdatedAt.Format(time.RFC3339),
		"summary":    results.Summary(),
		"outcomes":   results.All(),
	})
}

// GetStatus returns the processing status of a batch
func (h *BatchHandler) GetStatus(c *gin.Context) {
	batch, _, ok := h.lookup(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         batch.ID,
		"status":     batch.Status,
		"processed":  batch.Processed,
		"file_count": batch.FileCount,
		"error_msg":  batch.ErrorMsg,
	})
}

// Cancel stops a running batch after the item in progress. Results so far
// are kept.
func (h *BatchHandler) Cancel(c *gin.Context) {
	batch, _, ok := h.lookup(c)
	if !ok {
		return
	}
	if batch.Finished() {
		c.JSON(http.StatusConflict, gin.H{"error": "Batch already " + batch.Status})
		return
	}

	h.store.Cancel(batch.ID)
	c.JSON(http.StatusAccepted, gin.H{"message": "Batch cancellation requested"})
}

// Delete cancels a batch and removes it with its archived files
func (h *BatchHandler) Delete(c *gin.Context) {
	batch, _, ok := h.lookup(c)
	if !ok {
		return
	}

	h.store.Delete(batch.ID)

	if h.objectStore != nil {
		if err := h.objectStore.DeletePrefix(c.Request.Context(), service.BatchPrefix(batch.Tenant, batch.ID)); err != nil {
			logger.Warn(c.Request.Context(), "failed to delete archived files", "batch_id", batch.ID, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Batch deleted"})
}

// FileTypes lists the accepted extensions per file type
func (h *BatchHandler) FileTypes(c *gin.Context) {
	c.JSON(http.StatusOK, service.SupportedExtensions())
}

func (h *BatchHandler) lookup(c *gin.Context) (*model.Batch, *service.ResultLog, bool) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	batch := h.store.Get(id)
	results := h.store.Results(id)
	if batch == nil || results == nil || batch.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
		return nil, nil, false
	}
	return batch, results, true
}
