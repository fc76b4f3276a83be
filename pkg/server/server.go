// Package server exposes the transform pipeline over HTTP: an upload form,
// a results page with the six panels and download links, and a small API
// that returns a single artifact.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"mime/multipart"
	"net/http"
	"slices"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"imagelab/pkg/config"
	"imagelab/pkg/imaging"
	"imagelab/pkg/pipeline"
	"imagelab/pkg/visualization"
)

//go:embed templates/*.html
var templateFS embed.FS

// uploadField is the multipart form field carrying the image
const uploadField = "image"

var downloadLabels = map[string]string{
	pipeline.OriginalFile:  "Download Original Image",
	pipeline.CosineFile:    "Download DCT Image",
	pipeline.FrequencyFile: "Download FFT Image",
}

// ErrorResponse is the JSON body of a failed API call
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Server serves the web interface. It keeps no state between requests.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	pages    *template.Template
	handler  http.Handler
}

// New builds a server around an already configured pipeline
func New(cfg *config.Config, p *pipeline.Pipeline) (*Server, error) {
	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		pipeline: p,
		pages:    pages,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /simulate", s.handleSimulate)
	mux.HandleFunc("POST /api/artifacts/{name}", s.handleArtifact)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.handler = mux
	if cfg.Server.Compress {
		s.handler = gzhttp.GzipHandler(mux)
	}

	return s, nil
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout(),
		WriteTimeout: s.cfg.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Serving image lab on %s", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down server: %w", err)
		}
		return nil
	}
}

type indexPage struct {
	Error string
}

type imageLink struct {
	Title    string
	Label    string
	Filename string
	Src      template.URL
}

type resultPage struct {
	Panels    []imageLink
	Downloads []imageLink
	Figure    template.URL
	Width     int
	Height    int
	Metrics   pipeline.Metrics
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", indexPage{})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	res, err := s.process(w, r)
	if err != nil {
		status := statusFor(err)
		s.logFailure(r, status, err)
		s.render(w, status, "index.html", indexPage{Error: userMessage(err)})
		return
	}

	page := resultPage{
		Width:   res.Intensity.Width,
		Height:  res.Intensity.Height,
		Metrics: res.Metrics,
	}
	for i, a := range res.Artifacts {
		page.Panels = append(page.Panels, imageLink{
			Title:    res.Views[i].Title,
			Filename: a.Name,
			Src:      dataURI("image/jpeg", a.Data),
		})
	}
	for _, a := range res.Downloads() {
		page.Downloads = append(page.Downloads, imageLink{
			Label:    downloadLabels[a.Name],
			Filename: a.Name,
			Src:      dataURI("image/jpeg", a.Data),
		})
	}

	fig, err := visualization.EncodePNG(visualization.ComposeFigure(res.Panels(), s.cfg.Figure.PanelSize))
	if err != nil {
		s.logFailure(r, http.StatusInternalServerError, err)
		s.render(w, http.StatusInternalServerError, "index.html", indexPage{Error: userMessage(err)})
		return
	}
	page.Figure = dataURI("image/png", fig)

	s.render(w, http.StatusOK, "result.html", page)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !slices.Contains(pipeline.ArtifactNames(), name) {
		s.writeError(w, r, fmt.Errorf("%w: %s", pipeline.ErrUnknownArtifact, name))
		return
	}

	res, err := s.process(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	artifact, err := res.Artifact(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Name))
	w.WriteHeader(http.StatusOK)
	w.Write(artifact.Data)
}

// process reads the multipart upload and runs the pipeline on it
func (s *Server) process(w http.ResponseWriter, r *http.Request) (*pipeline.Result, error) {
	limit := s.cfg.Server.MaxUploadBytes
	if r.ContentLength > limit {
		return nil, &http.MaxBytesError{Limit: limit}
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile(uploadField)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return s.pipeline.Process(file)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("Error rendering %s: %v", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.logFailure(r, status, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: userMessage(err),
	})
}

func (s *Server) logFailure(r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else if s.cfg.Output.Verbose {
		log.Printf("%s %s rejected (%d): %v", r.Method, r.URL.Path, status, err)
	}
}

// statusFor maps pipeline and upload errors to HTTP status codes
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, imaging.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, imaging.ErrEmptyUpload),
		errors.Is(err, http.ErrMissingFile),
		errors.Is(err, http.ErrNotMultipart),
		errors.Is(err, multipart.ErrMessageTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrUnknownArtifact):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// userMessage hides internal details of server-side failures
func userMessage(err error) string {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return fmt.Sprintf("The upload exceeds the %d byte limit.", maxBytes.Limit)
	case errors.Is(err, imaging.ErrTooLarge):
		return "The image has too many pixels."
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return "The upload is not a JPEG or PNG image."
	case errors.Is(err, imaging.ErrEmptyUpload):
		return "The uploaded file is empty."
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return "Choose an image to upload."
	case errors.Is(err, pipeline.ErrUnknownArtifact):
		return err.Error()
	}
	return "The image could not be processed."
}

func dataURI(mime string, data []byte) template.URL {
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data))
}
