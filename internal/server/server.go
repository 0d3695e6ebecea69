// Package server exposes the lookup and batch endpoints over HTTP.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/coordtrans/internal/apperr"
	"github.com/UnknownOlympus/coordtrans/internal/models"
	"github.com/UnknownOlympus/coordtrans/internal/service"
	"github.com/UnknownOlympus/coordtrans/internal/spreadsheet"
	"github.com/UnknownOlympus/coordtrans/internal/validation"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch response headers.
const (
	HeaderBatchTotal  = "X-Batch-Total"
	HeaderBatchFailed = "X-Batch-Failed"
)

// multipartOverhead is the body allowance on top of the file itself.
const multipartOverhead = 1 << 20

// Options configures the HTTP surface.
type Options struct {
	ProviderName  string
	MaxUploadSize int64
	CORSOrigins   []string
	StaticDir     string // built frontend, disabled when empty
}

// Server holds the handlers and their collaborators.
type Server struct {
	log       *slog.Logger
	fetcher   service.Fetcher
	validator *validation.Validator
	batch     *service.BatchService
	gatherer  prometheus.Gatherer
	opts      Options
}

// New creates a new Server.
func New(
	log *slog.Logger,
	fetcher service.Fetcher,
	validator *validation.Validator,
	batch *service.BatchService,
	gatherer prometheus.Gatherer,
	opts Options,
) *Server {
	return &Server{
		log:       log,
		fetcher:   fetcher,
		validator: validator,
		batch:     batch,
		gatherer:  gatherer,
		opts:      opts,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestID())
	engine.Use(RequestLogger(s.log))
	engine.Use(cors.New(s.corsConfig()))

	engine.GET("/health", s.health)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := engine.Group("/api")
	api.POST("/geo", s.geocode)
	api.POST("/regeo", s.reverseGeocode)
	api.POST("/batch/file/geo", s.batchFile(models.KindGeocode))
	api.POST("/batch/file/regeo", s.batchFile(models.KindReverseGeocode))

	engine.NoRoute(s.noRoute)

	return engine
}

func (s *Server) corsConfig() cors.Config {
	config := cors.DefaultConfig()
	config.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", RequestIDHeader}
	config.ExposeHeaders = []string{"Content-Disposition", HeaderBatchTotal, HeaderBatchFailed, RequestIDHeader}
	config.MaxAge = 12 * time.Hour

	if len(s.opts.CORSOrigins) == 0 || containsWildcard(s.opts.CORSOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = s.opts.CORSOrigins
	}

	return config
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}

	return false
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": s.opts.ProviderName})
}

type geoRequest struct {
	Address string `json:"address"`
	City    string `json:"city"`
}

type regeoRequest struct {
	Location string `json:"location"`
}

func (s *Server) geocode(c *gin.Context) {
	var req geoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.handleError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}

	query, err := s.validator.GeocodeQuery(req.Address, req.City)
	if err != nil {
		s.handleError(c, err)
		return
	}

	s.writeResult(c, s.fetcher.Fetch(c.Request.Context(), query))
}

func (s *Server) reverseGeocode(c *gin.Context) {
	var req regeoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.handleError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return
	}

	query, err := s.validator.ReverseQuery(req.Location)
	if err != nil {
		s.handleError(c, err)
		return
	}

	s.writeResult(c, s.fetcher.Fetch(c.Request.Context(), query))
}

// batchFile handles a multipart upload in field "file" and replies with the result workbook.
func (s *Server) batchFile(kind models.QueryKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.MaxUploadSize > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadSize+multipartOverhead)
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			if isBodyTooLarge(err) {
				s.handleError(c, err)
				return
			}
			s.handleError(c, apperr.Wrap(apperr.KindValidation, "file is required", err))
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			s.handleError(c, apperr.Internal("failed to open upload", err))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			s.handleError(c, apperr.Internal("failed to read upload", err))
			return
		}

		report, err := s.batch.Process(c.Request.Context(), kind, fileHeader.Filename, data, nil)
		if err != nil {
			s.handleError(c, err)
			return
		}

		c.Header("Content-Disposition", `attachment; filename="`+report.Filename+`"`)
		c.Header(HeaderBatchTotal, strconv.Itoa(report.Total))
		c.Header(HeaderBatchFailed, strconv.Itoa(report.Failed))
		c.Data(http.StatusOK, spreadsheet.ContentType, report.File)
	}
}

func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

// noRoute serves the built frontend when configured, falling back to index.html for client-side routes.
func (s *Server) noRoute(c *gin.Context) {
	if s.opts.StaticDir == "" || c.Request.Method != http.MethodGet || strings.HasPrefix(c.Request.URL.Path, "/api/") {
		s.fail(c, http.StatusNotFound, "not found")
		return
	}

	root, err := filepath.Abs(s.opts.StaticDir)
	if err != nil {
		s.fail(c, http.StatusNotFound, "not found")
		return
	}

	target := filepath.Join(root, filepath.FromSlash(filepath.Clean("/"+c.Request.URL.Path)))
	if info, statErr := os.Stat(target); statErr == nil && !info.IsDir() && strings.HasPrefix(target, root) {
		c.File(target)
		return
	}

	c.File(filepath.Join(root, "index.html"))
}
