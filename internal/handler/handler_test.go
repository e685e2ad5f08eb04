package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/aidetector/aidetector/internal/service"
	"github.com/aidetector/aidetector/pkg/logger"
)

// mockDetector implements service.Detector for testing.
type mockDetector struct {
	err   error
	input service.DetectionInput
	calls int
}

func (m *mockDetector) Detect(ctx context.Context, input service.DetectionInput) (*service.Result, error) {
	m.calls++
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return &service.Result{
		Verdict: service.Verdict{
			IsAIGenerated: true,
			Confidence:    72,
			Reasoning:     []string{"mock reason"},
			FileName:      input.FileName,
			FileType:      service.KindFromMIME(input.MIMEType),
		},
		Status:      service.StatusComplete,
		Factors:     []service.Factor{{Name: service.FactorNoise, Weight: 15, Score: 15}},
		ContentHash: "deadbeef",
	}, nil
}

func newTestHandler(d service.Detector) *Handler {
	return New(Config{
		Detector:      d,
		Logger:        logger.NopLogger(),
		MaxUploadSize: 1024 * 1024, // 1MB
	})
}

type upload struct {
	field       string
	fileName    string
	contentType string
	data        []byte
}

// multipartBody builds a multipart request body carrying one file part.
func multipartBody(t *testing.T, u upload) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+u.field+`"; filename="`+u.fileName+`"`)
	if u.contentType != "" {
		hdr.Set("Content-Type", u.contentType)
	}
	part, err := writer.CreatePart(hdr)
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	part.Write(u.data)
	writer.Close()

	return &buf, writer.FormDataContentType()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(1, 1, color.NRGBA{R: 10, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func postUpload(t *testing.T, h http.Handler, target string, u upload) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, u)
	req := httptest.NewRequest("POST", target, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var response ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return response.Error
}

// TestDetect_Image tests a successful image upload.
func TestDetect_Image(t *testing.T) {
	d := &mockDetector{}
	h := newTestHandler(d).Routes()

	rec := postUpload(t, h, "/api/detect", upload{field: "file", fileName: "cat.png", contentType: "image/png", data: pngBytes(t)})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["isAiGenerated"] != true || response["confidence"] != float64(72) {
		t.Errorf("unexpected verdict: %v", response)
	}
	if response["fileName"] != "cat.png" || response["fileType"] != "image" {
		t.Errorf("unexpected file fields: %v", response)
	}
	if _, ok := response["details"]; ok {
		t.Error("details should be omitted without ?detailed")
	}
	if d.input.MIMEType != "image/png" || len(d.input.Data) == 0 {
		t.Errorf("detector got %q with %d bytes", d.input.MIMEType, len(d.input.Data))
	}
}

// TestDetect_Detailed tests the detailed response parameter.
func TestDetect_Detailed(t *testing.T) {
	h := newTestHandler(&mockDetector{}).Routes()

	rec := postUpload(t, h, "/api/detect?detailed=true", upload{field: "file", fileName: "cat.png", contentType: "image/png", data: pngBytes(t)})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response struct {
		Details *struct {
			Status      string           `json:"status"`
			Factors     []service.Factor `json:"factors"`
			ContentHash string           `json:"contentHash"`
		} `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Details == nil {
		t.Fatal("expected details in response")
	}
	if response.Details.Status != "complete" || len(response.Details.Factors) != 1 || response.Details.ContentHash != "deadbeef" {
		t.Errorf("unexpected details: %+v", response.Details)
	}
}

// TestDetect_MIMEFallback tests type resolution when the part declares nothing useful.
func TestDetect_MIMEFallback(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		contentType string
		data        []byte
		wantMIME    string
	}{
		{"extension", "clip.webm", "application/octet-stream", []byte("not really webm"), "video/webm"},
		{"magic bytes", "upload", "", nil, "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			if data == nil {
				data = pngBytes(t)
			}
			d := &mockDetector{}
			rec := postUpload(t, newTestHandler(d).Routes(), "/api/detect", upload{field: "file", fileName: tt.fileName, contentType: tt.contentType, data: data})

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if d.input.MIMEType != tt.wantMIME {
				t.Errorf("MIME = %q, want %q", d.input.MIMEType, tt.wantMIME)
			}
			if !bytes.Equal(d.input.Data, data) {
				t.Error("detector did not receive the full upload")
			}
		})
	}
}

// TestDetect_Validation tests the caller-level rejections.
func TestDetect_Validation(t *testing.T) {
	tests := []struct {
		name    string
		upload  upload
		wantMsg string
	}{
		{
			name:    "missing file field",
			upload:  upload{field: "other", fileName: "a.png", contentType: "image/png", data: []byte("x")},
			wantMsg: "No file provided",
		},
		{
			name:    "unsupported type",
			upload:  upload{field: "file", fileName: "notes.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4")},
			wantMsg: "Invalid file type. Please upload an image or video.",
		},
		{
			name:    "too large",
			upload:  upload{field: "file", fileName: "big.mp4", contentType: "video/mp4", data: make([]byte, 1024*1024+1)},
			wantMsg: "File size exceeds 1MB limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDetector{}
			rec := postUpload(t, newTestHandler(d).Routes(), "/api/detect", tt.upload)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			if msg := decodeError(t, rec); msg != tt.wantMsg {
				t.Errorf("error = %q, want %q", msg, tt.wantMsg)
			}
			if d.calls != 0 {
				t.Error("detector must not run for rejected uploads")
			}
		})
	}
}

// TestDetect_NotMultipart tests a body that is not a form upload.
func TestDetect_NotMultipart(t *testing.T) {
	h := newTestHandler(&mockDetector{})

	req := httptest.NewRequest("POST", "/api/detect", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Detect(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "No file provided" {
		t.Errorf("error = %q", msg)
	}
}

// TestDetect_BodyLimit tests the 413 mapping when the body limit trips.
func TestDetect_BodyLimit(t *testing.T) {
	h := newTestHandler(&mockDetector{})

	body, ct := multipartBody(t, upload{field: "file", fileName: "a.png", contentType: "image/png", data: make([]byte, 4096)})
	req := httptest.NewRequest("POST", "/api/detect", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 1024)

	h.Detect(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestDetect_DetectorError tests handling of detector errors.
func TestDetect_DetectorError(t *testing.T) {
	h := newTestHandler(&mockDetector{err: context.Canceled}).Routes()

	rec := postUpload(t, h, "/api/detect", upload{field: "file", fileName: "a.png", contentType: "image/png", data: pngBytes(t)})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
}

// TestDetect_RealDetector runs an upload through the actual engine.
func TestDetect_RealDetector(t *testing.T) {
	h := newTestHandler(service.NewDetector(service.DetectorConfig{Seed: 7}, nil)).Routes()

	t.Run("image", func(t *testing.T) {
		rec := postUpload(t, h, "/api/detect", upload{field: "file", fileName: "a.png", contentType: "image/png", data: pngBytes(t)})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var v service.Verdict
		if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if v.Confidence < 0 || v.Confidence > 100 || len(v.Reasoning) == 0 {
			t.Errorf("implausible verdict: %+v", v)
		}
	})

	t.Run("corrupt image degrades", func(t *testing.T) {
		rec := postUpload(t, h, "/api/detect", upload{field: "file", fileName: "a.png", contentType: "image/png", data: []byte("garbage")})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var v service.Verdict
		if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if v.Confidence != service.NeutralConfidence || len(v.Reasoning) != 1 {
			t.Errorf("expected neutral verdict, got %+v", v)
		}
	})
}

// TestFormats tests the formats endpoint.
func TestFormats(t *testing.T) {
	h := newTestHandler(&mockDetector{}).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/formats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var response FormatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Images) != len(service.AcceptedImageTypes) || len(response.Videos) != len(service.AcceptedVideoTypes) {
		t.Errorf("unexpected types: %+v", response)
	}
	if response.MaxUploadSize != 1024*1024 || response.MaxUploadMB != 1 {
		t.Errorf("unexpected limit: %+v", response)
	}
}

// TestHealth tests the health check endpoint.
func TestHealth(t *testing.T) {
	h := newTestHandler(&mockDetector{})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %v", response["status"])
	}
}

// TestRoutes tests method and path matching on the mux.
func TestRoutes(t *testing.T) {
	h := New(Config{Detector: &mockDetector{}, Version: "1.2.3"}).Routes()

	tests := []struct {
		method, path string
		want         int
	}{
		{"GET", "/", http.StatusOK},
		{"GET", "/health", http.StatusOK},
		{"GET", "/api/detect", http.StatusMethodNotAllowed},
		{"GET", "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	t.Run("index names the service", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		body, _ := io.ReadAll(rec.Body)
		if !strings.Contains(string(body), "AI Detector API") || !strings.Contains(string(body), "1.2.3") {
			t.Errorf("unexpected index: %s", body)
		}
	})
}

// BenchmarkDetect benchmarks the upload endpoint against the real engine.
func BenchmarkDetect(b *testing.B) {
	h := newTestHandler(service.NewDetector(service.DetectorConfig{Seed: 1}, nil)).Routes()

	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	var data bytes.Buffer
	png.Encode(&data, img)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "bench.png")
	part.Write(data.Bytes())
	writer.Close()
	body := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("POST", "/api/detect", bytes.NewReader(body))
		req.Header.Set("Content-Type", writer.FormDataContentType())
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}
