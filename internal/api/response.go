package api

import (
	"errors"
	"net/http"

	"exoplanet_service/internal/domain/model"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Error codes returned in the error envelope.
const (
	CodeValidation  = "VALIDATION"
	CodeNotFound    = "NOT_FOUND"
	CodeConflict    = "CONFLICT"
	CodeTooLarge    = "TOO_LARGE"
	CodeUnavailable = "UNAVAILABLE"
	CodeUpstream    = "UPSTREAM"
	CodeInternal    = "INTERNAL"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// respond writes {"success": true, ...payload}.
func respond(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// fail maps err onto the error taxonomy and writes the error envelope.
func fail(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"path":  c.FullPath(),
			"error": err,
		}).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": body})
}

func classify(err error) (int, ErrorBody) {
	var ve *model.ValidationError
	var tooBig *http.MaxBytesError

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorBody{Code: CodeValidation, Message: ve.Message, Field: ve.Field}
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, ErrorBody{Code: CodeValidation, Message: err.Error()}
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, ErrorBody{Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, model.ErrTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, ErrorBody{Code: CodeTooLarge, Message: "upload is too large"}
	case errors.Is(err, model.ErrUnavailable):
		return http.StatusServiceUnavailable, ErrorBody{Code: CodeUnavailable, Message: err.Error()}
	case errors.Is(err, model.ErrUpstream):
		return http.StatusBadGateway, ErrorBody{Code: CodeUpstream, Message: err.Error()}
	default:
		// не отдаём клиенту внутренние детали
		return http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: "internal server error"}
	}
}
