package v1

import (
	"fmt"
	"net/http"
	"time"

	"portfolio-backend/internal/delivery/http/response"
	"portfolio-backend/internal/domain"
	"portfolio-backend/internal/usecase"
	"portfolio-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

// DefaultKeepAlive is how often an idle event stream sends a comment line.
const DefaultKeepAlive = 25 * time.Second

type MessageHandler struct {
	messageUC domain.MessageUsecase
	secLog    *security.SecurityLogger
	keepAlive time.Duration
}

// NewMessageHandler registers the admin inbox routes on the protected group.
func NewMessageHandler(protected *gin.RouterGroup, messageUC domain.MessageUsecase, secLog *security.SecurityLogger, keepAlive time.Duration) {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	handler := &MessageHandler{
		messageUC: messageUC,
		secLog:    secLog,
		keepAlive: keepAlive,
	}

	messages := protected.Group("/admin/messages")
	{
		messages.GET("", handler.List)
		messages.GET("/stats", handler.Stats)
		messages.GET("/stream", handler.Stream)
		messages.GET("/export", handler.Export)
		messages.POST("/export/archive", handler.Archive)
		messages.GET("/:id", handler.Get)
		messages.PATCH("/:id/status", handler.UpdateStatus)
		messages.DELETE("/:id", handler.Delete)
	}
}

// List godoc
// @Summary      List messages
// @Description  Newest first. q matches name, email or message case-insensitively; status is all, new, read or replied.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        q       query     string  false  "Search term"
// @Param        status  query     string  false  "Status filter"  Enums(all, new, read, replied)
// @Success      200     {object}  response.Response{data=[]domain.ContactMessage}
// @Failure      400     {object}  response.Response
// @Failure      401     {object}  response.Response
// @Router       /admin/messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	msgs, err := h.messageUC.List(c.Request.Context(), c.Query("q"), c.Query("status"))
	if err != nil {
		c.Error(err)
		return
	}
	if msgs == nil {
		msgs = []domain.ContactMessage{}
	}
	response.Success(c, http.StatusOK, "Messages retrieved", msgs)
}

// Stats godoc
// @Summary      Inbox counters
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=domain.MessageKPIs}
// @Router       /admin/messages/stats [get]
func (h *MessageHandler) Stats(c *gin.Context) {
	kpis, err := h.messageUC.Stats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Stats retrieved", kpis)
}

// Stream godoc
// @Summary      Live message list
// @Description  Server-sent events. "snapshot" carries the full newest-first list on connect and after every change; "error" reports a failed reload.
// @Tags         messages
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200
// @Router       /admin/messages/stream [get]
func (h *MessageHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	sub := h.messageUC.Watch(ctx)
	defer sub.Cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": ping\n\n"); err != nil {
				return
			}
		case snap, ok := <-sub.C:
			if !ok {
				c.SSEvent("error", gin.H{"message": domain.ErrSubscriptionEnded.Error()})
				c.Writer.Flush()
				return
			}
			if snap.Err != nil {
				c.SSEvent("error", gin.H{"message": "failed to load messages"})
			} else {
				msgs := snap.Messages
				if msgs == nil {
					msgs = []domain.ContactMessage{}
				}
				c.SSEvent("snapshot", msgs)
			}
		}
		c.Writer.Flush()
	}
}

// Get godoc
// @Summary      Get one message
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Message ID"
// @Success      200  {object}  response.Response{data=domain.ContactMessage}
// @Failure      404  {object}  response.Response
// @Router       /admin/messages/{id} [get]
func (h *MessageHandler) Get(c *gin.Context) {
	msg, err := h.messageUC.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Message retrieved", msg)
}

// UpdateStatus godoc
// @Summary      Change message status
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path      string                      true  "Message ID"
// @Param        status  body      domain.UpdateStatusRequest  true  "New status"
// @Success      200     {object}  response.Response{data=domain.ContactMessage}
// @Failure      400     {object}  response.Response
// @Failure      404     {object}  response.Response
// @Router       /admin/messages/{id}/status [patch]
func (h *MessageHandler) UpdateStatus(c *gin.Context) {
	var req domain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(bindError(err))
		return
	}
	msg, err := h.messageUC.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Status updated", msg)
}

// Delete godoc
// @Summary      Delete a message
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Message ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /admin/messages/{id} [delete]
func (h *MessageHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.messageUC.Delete(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	h.secLog.LogAdminAction(c.Request.Context(), security.EventMessageDeleted,
		c.GetString(string(domain.KeyUserID)), c.GetString(response.RequestIDKey),
		map[string]interface{}{"message_id": id})
	response.Success(c, http.StatusOK, "Message deleted", nil)
}

// Export godoc
// @Summary      Export messages
// @Description  All messages as an XLSX workbook, newest first.
// @Tags         messages
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Success      200  {file}  file
// @Router       /admin/messages/export [get]
func (h *MessageHandler) Export(c *gin.Context) {
	data, filename, err := h.messageUC.Export(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	h.secLog.LogAdminAction(c.Request.Context(), security.EventDataExport,
		c.GetString(string(domain.KeyUserID)), c.GetString(response.RequestIDKey),
		map[string]interface{}{"rows": "all", "file": filename})
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, usecase.XLSXContentType, data)
}

// Archive godoc
// @Summary      Archive an export
// @Description  Writes a fresh XLSX export to the configured S3-compatible bucket.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  response.Response{data=domain.ArchiveResult}
// @Failure      502  {object}  response.Response
// @Failure      503  {object}  response.Response
// @Router       /admin/messages/export/archive [post]
func (h *MessageHandler) Archive(c *gin.Context) {
	res, err := h.messageUC.Archive(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	h.secLog.LogAdminAction(c.Request.Context(), security.EventDataExport,
		c.GetString(string(domain.KeyUserID)), c.GetString(response.RequestIDKey),
		map[string]interface{}{"rows": "all", "bucket": res.Bucket, "key": res.Key})
	response.Success(c, http.StatusCreated, "Export archived", res)
}
