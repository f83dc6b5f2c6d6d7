package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JKristilere/smart-summarizer/internal/platform/apierr"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type ErrorEnvelope struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Status string `json:"status"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error:  msg,
		Code:   code,
		Status: StatusFailed,
	})
}

// RespondErr maps err through apierr and writes the failure envelope.
func RespondErr(c *gin.Context, err error) {
	mapped := apierr.FromError(err)
	_ = c.Error(err)
	RespondError(c, mapped.Status, mapped.Code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
