package service

import (
	"github.com/aidetector/aidetector/internal/apperr"
)

// Caller-facing validation messages shared by the HTTP and CLI surfaces.
const (
	msgNoFile      = "No file provided"
	msgInvalidType = "Invalid file type. Please upload an image or video."
)

// ResolveMIME picks the MIME type for an upload. A declared type wins unless it
// is empty or the generic application/octet-stream; then the file extension is
// tried, then the content's magic bytes.
func ResolveMIME(declared, fileName string, data []byte) string {
	if m := NormalizeMIME(declared); m != "" && m != "application/octet-stream" {
		return m
	}
	if m := MIMEFromFileName(fileName); m != "" {
		return m
	}
	return MIMEFromMagicBytes(data)
}

// ValidateUpload checks the type allow-list, then the size limit. Failures
// are *apperr.UserError. A maxSize of zero or less means MaxUploadSize.
func ValidateUpload(mimeType string, size, maxSize int64) error {
	if !IsAcceptedMIME(mimeType) {
		return apperr.User(msgInvalidType)
	}
	if maxSize <= 0 {
		maxSize = MaxUploadSize
	}
	if size > maxSize {
		return apperr.Userf("File size exceeds %dMB limit", maxSize/bytesPerMB)
	}
	return nil
}

// NoFileError is returned when an upload carries no file at all.
func NoFileError() error {
	return apperr.User(msgNoFile)
}
