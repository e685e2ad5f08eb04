package imaging

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// ContainerMetadata describes what the encoded container carries besides pixels.
// Width and Height are zero when the container does not declare them.
type ContainerMetadata struct {
	Format        string `json:"format" yaml:"format"`
	Width         int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height        int    `json:"height,omitempty" yaml:"height,omitempty"`
	HasExif       bool   `json:"hasExif" yaml:"hasExif"`
	HasICCProfile bool   `json:"hasIccProfile" yaml:"hasIccProfile"`

	// Populated from the EXIF block when it parses.
	CameraMake  string `json:"cameraMake,omitempty" yaml:"cameraMake,omitempty"`
	CameraModel string `json:"cameraModel,omitempty" yaml:"cameraModel,omitempty"`
	Software    string `json:"software,omitempty" yaml:"software,omitempty"`
}

// HasDimensions reports whether both dimensions are known.
func (m ContainerMetadata) HasDimensions() bool {
	return m.Width > 0 && m.Height > 0
}

// IsSquare reports whether the declared dimensions are known and equal.
func (m ContainerMetadata) IsSquare() bool {
	return m.HasDimensions() && m.Width == m.Height
}

// ReadMetadata inspects the container without decoding pixel data.
// It fails only when the bytes are not a recognised image container.
func ReadMetadata(data []byte) (ContainerMetadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ContainerMetadata{}, fmt.Errorf("read image header: %w", err)
	}

	meta := ContainerMetadata{
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}

	var exifBlock []byte
	switch format {
	case "jpeg":
		exifBlock, meta.HasICCProfile = scanJPEG(data)
	case "png":
		exifBlock, meta.HasICCProfile = scanPNG(data)
	case "webp":
		exifBlock, meta.HasICCProfile = scanWebP(data)
	case "gif":
		meta.HasICCProfile = bytes.Contains(data, []byte("ICCRGBG1012"))
	case "tiff":
		// TIFF is itself an EXIF-style IFD container.
		exifBlock = data
	}

	if exifBlock != nil {
		meta.HasExif = true
		readCameraFields(exifBlock, &meta)
	}

	return meta, nil
}

// readCameraFields fills camera fields from an EXIF block. Unparseable
// blocks still count as present.
func readCameraFields(block []byte, meta *ContainerMetadata) {
	// goexif returns a usable *Exif alongside non-critical sub-IFD errors.
	x, _ := exif.Decode(bytes.NewReader(block))
	if x == nil {
		return
	}
	meta.CameraMake = exifString(x, exif.Make)
	meta.CameraModel = exifString(x, exif.Model)
	meta.Software = exifString(x, exif.Software)
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

var (
	jpegExifHeader = []byte("Exif\x00\x00")
	jpegICCHeader  = []byte("ICC_PROFILE\x00")
)

// scanJPEG walks the marker segments up to the start of scan and returns the
// APP1 EXIF payload and whether an APP2 ICC profile is present.
func scanJPEG(data []byte) (exifBlock []byte, hasICC bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, false
	}

	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return exifBlock, hasICC
		}
		marker := data[i+1]
		if marker == 0xFF {
			// Fill byte.
			i++
			continue
		}
		i += 2

		switch {
		case marker == 0xD9 || marker == 0xDA:
			return exifBlock, hasICC
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			continue
		}

		length := int(binary.BigEndian.Uint16(data[i : i+2]))
		if length < 2 || i+length > len(data) {
			return exifBlock, hasICC
		}
		payload := data[i+2 : i+length]

		switch {
		case marker == 0xE1 && exifBlock == nil && bytes.HasPrefix(payload, jpegExifHeader):
			exifBlock = payload
		case marker == 0xE2 && bytes.HasPrefix(payload, jpegICCHeader):
			hasICC = true
		}

		i += length
	}

	return exifBlock, hasICC
}

// scanPNG walks the chunk list for eXIf and iCCP.
func scanPNG(data []byte) (exifBlock []byte, hasICC bool) {
	const sigLen = 8
	if len(data) < sigLen {
		return nil, false
	}

	i := sigLen
	for i+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[i : i+4]))
		chunkType := string(data[i+4 : i+8])
		start := i + 8
		if length < 0 || start+length > len(data) {
			break
		}

		switch chunkType {
		case "eXIf":
			exifBlock = data[start : start+length]
		case "iCCP":
			hasICC = true
		case "IEND":
			return exifBlock, hasICC
		}

		i = start + length + 4 // data + CRC
	}

	return exifBlock, hasICC
}

// scanWebP walks the RIFF chunks of a WebP file for EXIF and ICCP.
func scanWebP(data []byte) (exifBlock []byte, hasICC bool) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, false
	}

	i := 12
	for i+8 <= len(data) {
		fourCC := string(data[i : i+4])
		size := int(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		start := i + 8
		if size < 0 || start+size > len(data) {
			break
		}

		switch fourCC {
		case "EXIF":
			exifBlock = data[start : start+size]
		case "ICCP":
			hasICC = true
		}

		i = start + size + size%2
	}

	return exifBlock, hasICC
}
