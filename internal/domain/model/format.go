package model

import (
	"sort"
	"strings"
)

// Format is a lowercase token naming a file format (e.g. "mp4", "png", "wav").
type Format string

// NormalizeFormat lowercases and trims a format identifier.
// All lookups and comparisons are done on normalized identifiers.
func NormalizeFormat(s string) Format {
	return Format(strings.ToLower(strings.TrimSpace(s)))
}

func (f Format) String() string {
	return string(f)
}

// Family is the coarse category a format belongs to.
type Family string

const (
	FamilyRasterImage Family = "raster-image"
	FamilyVectorImage Family = "vector-image"
	FamilyAudio       Family = "audio"
	FamilyVideo       Family = "video"
	// FamilyUnknown is reported for formats outside every family list.
	FamilyUnknown Family = ""
)

func (f Family) String() string {
	if f == FamilyUnknown {
		return "unknown"
	}
	return string(f)
}

// MajorType returns the MIME major type implied by the family,
// or an empty string for unclassified formats.
func (f Family) MajorType() string {
	switch f {
	case FamilyRasterImage, FamilyVectorImage:
		return "image"
	case FamilyAudio:
		return "audio"
	case FamilyVideo:
		return "video"
	default:
		return ""
	}
}

// formatFamilies classifies every known format into exactly one family.
var formatFamilies = map[Format]Family{
	"jpg":  FamilyRasterImage,
	"jpeg": FamilyRasterImage,
	"png":  FamilyRasterImage,
	"gif":  FamilyRasterImage,
	"bmp":  FamilyRasterImage,
	"tiff": FamilyRasterImage,

	"svg": FamilyVectorImage,

	"mp3":  FamilyAudio,
	"wav":  FamilyAudio,
	"ogg":  FamilyAudio,
	"aac":  FamilyAudio,
	"flac": FamilyAudio,
	"m4a":  FamilyAudio,

	"mp4":  FamilyVideo,
	"avi":  FamilyVideo,
	"mov":  FamilyVideo,
	"webm": FamilyVideo,
	"3gp":  FamilyVideo,
}

type familyPair struct {
	from, to Family
}

// blockedPairs lists the family combinations that are never convertible.
// Every entry is mirrored so the rules hold in both directions.
var blockedPairs = mirror(
	familyPair{FamilyRasterImage, FamilyVectorImage},
	familyPair{FamilyAudio, FamilyRasterImage},
	familyPair{FamilyAudio, FamilyVectorImage},
	familyPair{FamilyVideo, FamilyRasterImage},
	familyPair{FamilyVideo, FamilyVectorImage},
	familyPair{FamilyVideo, FamilyAudio},
)

func mirror(pairs ...familyPair) map[familyPair]bool {
	m := make(map[familyPair]bool, len(pairs)*2)
	for _, p := range pairs {
		m[p] = true
		m[familyPair{p.to, p.from}] = true
	}
	return m
}

// FamilyOf returns the family of a format, or FamilyUnknown.
func FamilyOf(f Format) Family {
	return formatFamilies[NormalizeFormat(string(f))]
}

// IsKnownFormat reports whether the format appears in any family list.
func IsKnownFormat(f Format) bool {
	return FamilyOf(f) != FamilyUnknown
}

// IsConvertible reports whether a conversion from one format to another is legal.
//
// Identity conversions are always legal. Only the family combinations in
// blockedPairs are rejected; anything else, including pairs involving
// unclassified formats, is allowed and left for the transcoder to decide.
func IsConvertible(from, to Format) bool {
	from = NormalizeFormat(string(from))
	to = NormalizeFormat(string(to))

	if from == to {
		return true
	}

	fromFamily, toFamily := formatFamilies[from], formatFamilies[to]
	if fromFamily == FamilyUnknown || toFamily == FamilyUnknown {
		return true
	}

	return !blockedPairs[familyPair{fromFamily, toFamily}]
}

// FormatsByFamily returns the known formats grouped by family, each group sorted.
func FormatsByFamily() map[Family][]Format {
	grouped := make(map[Family][]Format)
	for f, fam := range formatFamilies {
		grouped[fam] = append(grouped[fam], f)
	}
	for _, formats := range grouped {
		sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	}
	return grouped
}
