package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const headerProcessTime = "X-Process-Time"

// ProcessTime reports handler latency in seconds. The header is set just
// before the status line is written so it also reaches streamed responses.
func ProcessTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Writer = &processTimeWriter{ResponseWriter: c.Writer, start: start}
		c.Next()
	}
}

type processTimeWriter struct {
	gin.ResponseWriter
	start   time.Time
	written bool
}

func (w *processTimeWriter) stamp() {
	if w.written {
		return
	}
	w.written = true
	w.ResponseWriter.Header().Set(headerProcessTime, strconv.FormatFloat(time.Since(w.start).Seconds(), 'f', 6, 64))
}

func (w *processTimeWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *processTimeWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *processTimeWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *processTimeWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}
