package v1

import (
	"errors"
	"net/http"

	"portfolio-backend/internal/delivery/http/response"
	"portfolio-backend/internal/domain"
	"portfolio-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// MaxContactBody caps the size of a contact submission request body.
const MaxContactBody = 1 << 20

type ContactHandler struct {
	messageUC domain.MessageUsecase
}

// NewContactHandler registers the contact routes (public, no auth required)
func NewContactHandler(public *gin.RouterGroup, messageUC domain.MessageUsecase, limiter gin.HandlerFunc) {
	handler := &ContactHandler{
		messageUC: messageUC,
	}

	public.POST("/contact", limiter, handler.SubmitContact)
}

// SubmitContact godoc
// @Summary      Submit Contact Form
// @Description  Store a message from the public contact form. It shows up in the admin inbox as new.
// @Tags         contact
// @Accept       json
// @Produce      json
// @Param        contact  body      domain.NewMessage  true  "Contact Form Data"
// @Success      201      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      413      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /contact [post]
func (h *ContactHandler) SubmitContact(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxContactBody)

	var req domain.NewMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Error(apperror.New(http.StatusRequestEntityTooLarge, "Message is too large", err).WithKind("too_large"))
			return
		}
		c.Error(bindError(err))
		return
	}

	msg, err := h.messageUC.Create(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	response.Success(c, http.StatusCreated, "Your message has been sent successfully!", gin.H{"id": msg.ID})
}
