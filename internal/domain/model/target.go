package model

import "strings"

// Category is the coarse media kind a host derives from a source MIME type.
type Category string

const (
	CategoryImage Category = "image"
	CategoryAudio Category = "audio"
	CategoryVideo Category = "video"
)

// targetCatalog lists the target formats offered per category, in display order.
var targetCatalog = map[Category][]Format{
	CategoryImage: {"jpg", "jpeg", "png", "gif", "webp", "ico", "tif", "raw"},
	CategoryAudio: {"wav", "ogg", "aac", "wma", "flac", "m4a"},
	CategoryVideo: {"m4v", "mp4", "3gp", "3g2", "avi", "mov", "wmv", "mkv", "flv", "ogv"},
}

// CategoryOf derives a category from a MIME type.
// Anything that is not audio or video is treated as an image.
func CategoryOf(mimeType string) Category {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mimeType, "audio/"):
		return CategoryAudio
	case strings.HasPrefix(mimeType, "video/"):
		return CategoryVideo
	default:
		return CategoryImage
	}
}

// TargetOptions are the choices a host offers for one source file.
type TargetOptions struct {
	Category Category
	Source   Format
	Targets  []Format
	Default  Format
}

// TargetsFor lists the catalogue targets for a source that the matrix allows,
// and picks the first one that differs from the source format as the default.
func TargetsFor(sourceName, mimeType string) TargetOptions {
	category := CategoryOf(mimeType)

	var source Format
	if dot := strings.LastIndex(sourceName, "."); dot >= 0 {
		source = NormalizeFormat(sourceName[dot+1:])
	}

	opts := TargetOptions{Category: category, Source: source}
	for _, f := range targetCatalog[category] {
		if source != "" && !IsConvertible(source, f) {
			continue
		}
		opts.Targets = append(opts.Targets, f)
	}

	for _, f := range opts.Targets {
		if f != source {
			opts.Default = f
			break
		}
	}
	if opts.Default == "" && len(opts.Targets) > 0 {
		opts.Default = opts.Targets[0]
	}

	return opts
}
