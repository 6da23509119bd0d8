package respond

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Reports carry candidate contact details; neither browsers nor proxies
// should keep them.
const noStore = "no-store"

// OK writes payload as a 200 JSON body that must not be cached.
func OK(c *gin.Context, payload any) {
	c.Header("Cache-Control", noStore)
	c.JSON(http.StatusOK, payload)
}

// Attachment sends body as a download named filename.
func Attachment(c *gin.Context, filename, contentType string, body []byte) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Cache-Control", noStore)
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, contentType, body)
}
