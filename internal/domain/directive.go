package domain

import (
	"fmt"
	"strings"
)

// ImageSize is an optional size filter understood by the search provider.
type ImageSize string

// Image size filters. SizeAny means no filter.
const (
	SizeAny    ImageSize = ""
	SizeLarge  ImageSize = "large"
	SizeMedium ImageSize = "medium"
	SizeIcon   ImageSize = "icon"
)

// IsValid checks if the size is absent or one of the supported values.
func (s ImageSize) IsValid() bool {
	return s == SizeAny || s == SizeLarge || s == SizeMedium || s == SizeIcon
}

// ImageType is an optional content type filter understood by the search provider.
type ImageType string

// Image type filters. TypeAny means no filter.
const (
	TypeAny     ImageType = ""
	TypePhoto   ImageType = "photo"
	TypeClipart ImageType = "clipart"
	TypeLineart ImageType = "lineart"
	TypeFace    ImageType = "face"
)

// IsValid checks if the type is absent or one of the supported values.
func (t ImageType) IsValid() bool {
	switch t {
	case TypeAny, TypePhoto, TypeClipart, TypeLineart, TypeFace:
		return true
	}
	return false
}

// ParseImageSize normalizes raw model output. "", "null" and "none" mean absent.
func ParseImageSize(raw string) (ImageSize, error) {
	s := ImageSize(normalizeFilter(raw))
	if !s.IsValid() {
		return SizeAny, fmt.Errorf("%w: unknown image size %q", ErrInvalidArgument, raw)
	}
	return s, nil
}

// ParseImageType normalizes raw model output. "", "null" and "none" mean absent.
func ParseImageType(raw string) (ImageType, error) {
	t := ImageType(normalizeFilter(raw))
	if !t.IsValid() {
		return TypeAny, fmt.Errorf("%w: unknown image type %q", ErrInvalidArgument, raw)
	}
	return t, nil
}

func normalizeFilter(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "null" || v == "none" {
		return ""
	}
	return v
}

// SearchDirective is the structured output of query expansion.
// Immutable: every attempt builds a new one.
type SearchDirective struct {
	query     string
	imageSize ImageSize
	imageType ImageType
}

// NewSearchDirective validates and builds a directive.
func NewSearchDirective(query string, size ImageSize, typ ImageType) (SearchDirective, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchDirective{}, fmt.Errorf("%w: directive query is required", ErrInvalidArgument)
	}
	if !size.IsValid() {
		return SearchDirective{}, fmt.Errorf("%w: unknown image size %q", ErrInvalidArgument, size)
	}
	if !typ.IsValid() {
		return SearchDirective{}, fmt.Errorf("%w: unknown image type %q", ErrInvalidArgument, typ)
	}
	return SearchDirective{query: query, imageSize: size, imageType: typ}, nil
}

// Query returns the refined search text.
func (d SearchDirective) Query() string { return d.query }

// ImageSize returns the size filter, SizeAny when absent.
func (d SearchDirective) ImageSize() ImageSize { return d.imageSize }

// ImageType returns the type filter, TypeAny when absent.
func (d SearchDirective) ImageType() ImageType { return d.imageType }

// FilterLabel renders filters as " [size:type]", " [size]", " [type]" or "".
func (d SearchDirective) FilterLabel() string {
	switch {
	case d.imageSize != SizeAny && d.imageType != TypeAny:
		return fmt.Sprintf(" [%s:%s]", d.imageSize, d.imageType)
	case d.imageSize != SizeAny:
		return fmt.Sprintf(" [%s]", d.imageSize)
	case d.imageType != TypeAny:
		return fmt.Sprintf(" [%s]", d.imageType)
	default:
		return ""
	}
}
