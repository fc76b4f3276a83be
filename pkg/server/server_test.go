package server

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"imagelab/pkg/config"
	"imagelab/pkg/pipeline"
)

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Output.Verbose = false
	cfg.Figure.PanelSize = 64

	s, err := New(cfg, pipeline.New(pipeline.DefaultOptions()))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 15), G: uint8(y * 20), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test png: %v", err)
	}
	return buf.Bytes()
}

// uploadRequest builds a multipart POST with a single file field
func uploadRequest(t *testing.T, target, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "upload.png")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	fw.Write(data)
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// TestIndex verifies the upload form is served
func TestIndex(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `action="/simulate"`) || !strings.Contains(body, `name="image"`) {
		t.Errorf("Expected upload form in index page")
	}
}

// TestHealth verifies the liveness endpoint
func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "ok" {
		t.Errorf("Expected ok, got %q", rec.Body.String())
	}
}

// TestSimulate verifies the results page carries all panels and downloads
func TestSimulate(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, uploadRequest(t, "/simulate", uploadField, testPNG(t)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()

	for _, name := range pipeline.DownloadNames() {
		if !strings.Contains(body, `download="`+name+`"`) {
			t.Errorf("Expected download link for %s", name)
		}
	}
	for _, label := range downloadLabels {
		if !strings.Contains(body, label) {
			t.Errorf("Expected button label %q", label)
		}
	}
	for _, title := range []string{
		pipeline.OriginalTitle, pipeline.GrayscaleTitle,
		pipeline.CosineTitle, pipeline.CosineInverseTitle,
		pipeline.FrequencyTitle, pipeline.FrequencyInverseTitle,
	} {
		if !strings.Contains(body, "<h3>"+title+"</h3>") {
			t.Errorf("Expected panel %q", title)
		}
	}
	if got := strings.Count(body, "data:image/jpeg;base64,"); got != 9 {
		t.Errorf("Expected 9 embedded jpegs (6 panels, 3 downloads), got %d", got)
	}
	if !strings.Contains(body, "16x12") {
		t.Errorf("Expected image size in results page")
	}
}

// TestSimulateRejections verifies the status code of each rejected upload
func TestSimulateRejections(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		field  string
		data   []byte
		status int
	}{
		{"text upload", uploadField, []byte("this is not an image"), http.StatusUnsupportedMediaType},
		{"empty upload", uploadField, nil, http.StatusBadRequest},
		{"missing field", "document", testPNG(t), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, uploadRequest(t, "/simulate", tt.field, tt.data))
			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `class="error"`) {
				t.Errorf("Expected error message on the form page")
			}
		})
	}
}

// TestUploadTooLarge verifies the upload limit
func TestUploadTooLarge(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxUploadBytes = 128
	s := newTestServer(t, cfg)

	rec := serve(s, uploadRequest(t, "/simulate", uploadField, testPNG(t)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rec.Code)
	}
}

// hugePNG returns a PNG header declaring a 40000x40000 gray image
func hugePNG() []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 17)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], 40000)
	binary.BigEndian.PutUint32(chunk[8:], 40000)
	chunk[12] = 8

	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

// TestTooManyPixels verifies a small upload declaring huge dimensions is
// refused with the default configuration
func TestTooManyPixels(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, uploadRequest(t, "/simulate", uploadField, hugePNG()))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413 on the form, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "too many pixels") {
		t.Errorf("Expected pixel limit message, got %s", rec.Body.String())
	}

	rec = serve(s, uploadRequest(t, "/api/artifacts/"+pipeline.CosineFile, uploadField, hugePNG()))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413 from the API, got %d", rec.Code)
	}
}

// TestArtifactAPI verifies a single artifact can be fetched as a download
func TestArtifactAPI(t *testing.T) {
	s := newTestServer(t, nil)

	for _, name := range pipeline.DownloadNames() {
		rec := serve(s, uploadRequest(t, "/api/artifacts/"+name, uploadField, testPNG(t)))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d: %s", name, rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("%s: expected image/jpeg, got %s", name, ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, name) {
			t.Errorf("%s: expected file name in Content-Disposition, got %q", name, cd)
		}
		img, err := jpeg.Decode(rec.Body)
		if err != nil {
			t.Fatalf("%s: response is not a jpeg: %v", name, err)
		}
		if img.Bounds().Size() != image.Pt(16, 12) {
			t.Errorf("%s: expected 16x12, got %v", name, img.Bounds().Size())
		}
	}
}

// TestArtifactAPIErrors verifies JSON error bodies
func TestArtifactAPIErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		target string
		data   []byte
		status int
	}{
		{"unknown artifact", "/api/artifacts/secret.jpeg", testPNG(t), http.StatusNotFound},
		{"unsupported upload", "/api/artifacts/" + pipeline.CosineFile, []byte("plain text"), http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, uploadRequest(t, tt.target, uploadField, tt.data))
			if rec.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, rec.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode error body: %v", err)
			}
			if resp.Error != http.StatusText(tt.status) {
				t.Errorf("Expected error %q, got %q", http.StatusText(tt.status), resp.Error)
			}
		})
	}
}

// TestCompression verifies gzip is applied when the client asks for it
func TestCompression(t *testing.T) {
	s := newTestServer(t, nil)

	req := uploadRequest(t, "/simulate", uploadField, testPNG(t))
	req.Header.Set("Accept-Encoding", "gzip")
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Errorf("Expected gzip encoded response, got %q", rec.Header().Get("Content-Encoding"))
	}
}
