// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package web serves the browser front end: a form that converts a
// directory on the server, an upload form that returns a zip of the
// results, and a small JSON API over the same jobs.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pdiddy/docbatch/internal/formats"
	"github.com/pdiddy/docbatch/internal/walk"
	"github.com/pdiddy/docbatch/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	defaultAddr      = ":8501"
	defaultRetention = time.Hour
	maxUploadMemory  = 32 << 20
	shutdownTimeout  = 10 * time.Second
	checkTimeout     = 15 * time.Second
)

// OutputFormats are the engine output formats offered by the form.
var OutputFormats = []string{"md", "json", "html", "text", "doctags"}

// Checker reports whether the conversion engine is usable.
// engine.Engine satisfies it.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Server is the web front end.
type Server struct {
	cfg      types.WebConfig
	defaults types.ConversionConfig
	checker  Checker
	logger   *log.Logger
	jobs     *Manager
	filter   formats.Filter
	router   *gin.Engine
}

// NewServer builds the router. defaults supplies conversion settings the
// forms do not override.
func NewServer(cfg types.WebConfig, defaults types.ConversionConfig, runner Runner, checker Checker, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.ArchiveRetention <= 0 {
		cfg.ArchiveRetention = defaultRetention
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = filepath.Join(os.TempDir(), "docbatch-archives")
	}
	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		defaults: defaults,
		checker:  checker,
		logger:   logger,
		jobs:     NewManager(runner, cfg.MaxJobs, logger),
		filter:   formats.WithExtra(defaults.ExtraExtensions),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.SetHTMLTemplate(tmpl)
	r.MaxMultipartMemory = maxUploadMemory

	r.GET("/", s.index)
	r.GET("/healthz", s.healthz)
	r.GET("/jobs", s.listJobs)
	r.POST("/jobs", s.createJob)
	r.GET("/jobs/:id", s.getJob)
	r.POST("/uploads", s.upload)
	r.GET("/archives/:name", s.serveArchive)
	s.router = r
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Jobs returns the server's job manager.
func (s *Server) Jobs() *Manager {
	return s.jobs
}

// Run serves until ctx is cancelled, then shuts down and cancels running
// jobs. Old archives are cleaned on start and periodically after.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.router}

	go s.cleanLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.jobs.Close()
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.jobs.Close()
	if err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) cleanLoop(ctx context.Context) {
	interval := min(s.cfg.ArchiveRetention, time.Hour)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := CleanOldArchives(s.cfg.ArchiveDir, s.cfg.ArchiveRetention, s.logger); err != nil {
			s.logger.Warn("archive cleanup", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start))
	}
}

type indexPage struct {
	Engine    string
	EngineErr string
	Formats   []string
	Outputs   []string
	Output    string
	Jobs      []Job
}

func (s *Server) index(c *gin.Context) {
	page := indexPage{
		Formats: formats.List(),
		Outputs: OutputFormats,
		Output:  s.defaults.Output,
		Jobs:    s.jobs.List(),
	}
	if s.checker != nil {
		page.Engine = s.checker.Name()
		if err := s.check(c.Request.Context()); err != nil {
			page.EngineErr = err.Error()
		}
	}
	c.HTML(http.StatusOK, "index.html", page)
}

func (s *Server) check(ctx context.Context) error {
	if s.checker == nil {
		return errors.New("no engine configured")
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return s.checker.Check(ctx)
}

func (s *Server) healthz(c *gin.Context) {
	name := ""
	if s.checker != nil {
		name = s.checker.Name()
	}
	if err := s.check(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "engine": name, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "engine": name})
}

// JobRequest is the body of POST /jobs, as a form or JSON.
type JobRequest struct {
	Source       string `form:"source" json:"source" binding:"required"`
	Output       string `form:"output" json:"output"`
	Format       string `form:"format" json:"format"`
	Verbose      bool   `form:"verbose" json:"verbose"`
	SkipExisting bool   `form:"skip_existing" json:"skip_existing"`
}

func (s *Server) options(format string, verbose bool) (types.ConversionConfig, error) {
	cfg := s.defaults
	if format != "" {
		if !slices.Contains(OutputFormats, format) {
			return cfg, fmt.Errorf("unsupported output format %q", format)
		}
		cfg.Format = format
	}
	cfg.Verbose = cfg.Verbose || verbose
	return cfg, nil
}

func (s *Server) createJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source is required"})
		return
	}

	cfg, err := s.options(req.Format, req.Verbose)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	root, err := walk.Resolve(req.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg.Source = root.Path
	cfg.SkipExisting = cfg.SkipExisting || req.SkipExisting
	if req.Output != "" {
		cfg.Output = req.Output
	}

	job := s.jobs.Submit(KindDirectory, cfg, nil, nil)
	if c.ContentType() == gin.MIMEPOSTForm || c.ContentType() == gin.MIMEMultipartPOSTForm {
		c.Redirect(http.StatusSeeOther, "/jobs/"+job.ID)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.jobs.List())
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.jobs.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	switch c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) {
	case gin.MIMEHTML:
		c.HTML(http.StatusOK, "job.html", job)
	default:
		c.JSON(http.StatusOK, job)
	}
}

func (s *Server) upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}
	for _, fh := range files {
		if !s.filter(fh.Filename) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported file type: %s", fh.Filename)})
			return
		}
	}

	cfg, err := s.options(c.PostForm("format"), c.PostForm("verbose") != "")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	work, err := os.MkdirTemp("", "docbatch-upload-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "creating work directory"})
		return
	}
	cleanup := func() { os.RemoveAll(work) }

	cfg.Source = filepath.Join(work, "source")
	cfg.Output = filepath.Join(work, "output")
	cfg.SkipExisting = false
	if err := os.MkdirAll(cfg.Source, 0o755); err != nil {
		cleanup()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "creating work directory"})
		return
	}
	for _, fh := range files {
		dst := filepath.Join(cfg.Source, filepath.Base(fh.Filename))
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			cleanup()
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("saving %s", fh.Filename)})
			return
		}
	}

	finish := func(id string, _ types.RunSummary) (string, error) {
		name := id + ".zip"
		if err := ZipDir(cfg.Output, filepath.Join(s.cfg.ArchiveDir, name)); err != nil {
			return "", err
		}
		return "/archives/" + name, nil
	}

	job := s.jobs.Submit(KindUpload, cfg, finish, cleanup)
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) serveArchive(c *gin.Context) {
	name := c.Param("name")
	id, ok := strings.CutSuffix(name, ".zip")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid archive filename"})
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid archive filename"})
		return
	}

	path := filepath.Join(s.cfg.ArchiveDir, name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "archive not found"})
		return
	}
	c.FileAttachment(path, "docbatch-"+name)
}
