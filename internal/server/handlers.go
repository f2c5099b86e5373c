package server

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"github.com/chifron/chifron/internal/numwords"
	"github.com/chifron/chifron/internal/tts"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is returned by the health route.
type HealthResponse struct {
	Status string `json:"status"`
}

func errorJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{Error: message, Code: code})
}

// GetNumber returns the words and audio URL for the number in the path.
func (s *Server) GetNumber(c echo.Context) error {
	raw := c.Param("number")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, string(tts.ErrorCodeInvalidInput),
			fmt.Sprintf("%q is not an integer", raw))
	}
	if !numwords.InRange(n) {
		return errorJSON(c, http.StatusBadRequest, string(tts.ErrorCodeOutOfRange),
			fmt.Sprintf("number must be between 0 and %d", numwords.MaxNumber))
	}

	result, err := s.numbers.GetNumberInfo(c.Request().Context(), n)
	if err != nil {
		return s.lookupError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// lookupError maps a lookup failure to a status code by its error code.
func (s *Server) lookupError(c echo.Context, err error) error {
	var e *tts.Error
	if !errors.As(err, &e) {
		log.Error("Unexpected lookup error", "err", err)
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}

	status := http.StatusInternalServerError
	switch e.Code {
	case tts.ErrorCodeOutOfRange, tts.ErrorCodeInvalidInput:
		status = http.StatusBadRequest
	case tts.ErrorCodeSynthesisFailed:
		status = http.StatusBadGateway
	case tts.ErrorCodeEngineUnavailable:
		status = http.StatusServiceUnavailable
	case tts.ErrorCodeTimeout:
		status = http.StatusGatewayTimeout
	}
	if e.IsRetryable() {
		c.Response().Header().Set("Retry-After", "1")
	}
	return errorJSON(c, status, string(e.Code), e.Message)
}

// GetAudio serves a stored artifact. Only well-formed artifact names are
// accepted.
func (s *Server) GetAudio(c echo.Context) error {
	entry, err := s.store.LookupFile(c.Param("filename"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, "NOT_FOUND", "audio file not found")
	}
	// Artifacts never change once written.
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=31536000, immutable")
	c.Response().Header().Set(echo.HeaderContentType, audioContentType(entry.Filename))
	return c.File(entry.Path)
}

func audioContentType(name string) string {
	switch path.Ext(name) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return echo.MIMEOctetStream
	}
}

// GetHealth reports liveness.
func (s *Server) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// GetCacheStats returns artifact store statistics.
func (s *Server) GetCacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.Stats())
}

// httpErrorHandler renders framework errors (unknown route, wrong method)
// in the same shape as API errors.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	}
	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = errorJSON(c, status, code, strings.ToLower(message))
}
