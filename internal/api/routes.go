package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// multipartSlack covers multipart headers and boundaries on top of the file itself.
const multipartSlack = 1 << 20

type RouterOptions struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

// NewRouter wires every endpoint of the gateway.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), cors.New(corsConfig(opts.AllowedOrigins)))

	r.GET("/healthz", h.Health)

	limit := bodyLimit(opts.MaxUploadBytes + multipartSlack)
	small := bodyLimit(multipartSlack)

	api := r.Group("/api")
	{
		api.POST("/upload/csv", limit, h.UploadObservations)
		api.POST("/upload/manual", small, h.SubmitManual)

		api.POST("/datasets/upload", limit, h.UploadDataset)
		api.DELETE("/datasets/:id", h.DeleteDataset)
		api.GET("/datasets", h.ListDatasets)

		api.POST("/predict", small, h.Predict)

		viz := api.Group("/visualize")
		viz.GET("/lightcurve", h.LightCurve)
		viz.GET("/feature-importance", h.FeatureImportance)
		viz.GET("/model-fit", h.ModelFit)
		viz.GET("/correlation", h.CorrelationMatrix)
		viz.GET("/distributions", h.Distributions)
		viz.GET("/confusion-matrix", h.ConfusionMatrix)
		viz.GET("/diagnostics/:type", h.Diagnostics)

		ft := api.Group("/fine-tune")
		ft.POST("/start", small, h.StartFineTuning)
		ft.GET("/status/:jobId", h.TrainingStatus)
		ft.POST("/cancel/:jobId", h.CancelFineTuning)
		ft.GET("/jobs", h.ListTrainingJobs)

		api.GET("/models", h.ListModels)
		api.GET("/models/:modelId/metrics", h.ModelMetrics)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   ErrorBody{Code: CodeNotFound, Message: "route not found"},
		})
	})
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// bodyLimit caps the request body; reads past the limit fail with *http.MaxBytesError.
func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
