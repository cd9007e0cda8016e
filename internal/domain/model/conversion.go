package model

import (
	"strings"
)

const defaultMajorType = "application"

// ConversionRequest is an immutable request to convert one media file.
// Construct it with NewConversionRequest; a new request replaces rather than edits a prior one.
type ConversionRequest struct {
	sourceData     []byte
	sourceName     string
	sourceMimeType string
	targetFormat   Format
}

// NewConversionRequest validates the inputs and builds a request.
// The source name must carry an extension; the target format must be a bare token.
func NewConversionRequest(sourceData []byte, sourceName, sourceMimeType, targetFormat string) (*ConversionRequest, error) {
	if sourceName == "" {
		return nil, &InvalidRequestError{Field: "source name", Reason: "is empty"}
	}
	if strings.ContainsAny(sourceName, `/\`) {
		return nil, &InvalidRequestError{Field: "source name", Reason: "must not contain path separators"}
	}
	dot := strings.LastIndex(sourceName, ".")
	if dot < 0 || dot == len(sourceName)-1 {
		return nil, &InvalidRequestError{Field: "source name", Reason: "has no extension"}
	}

	target := NormalizeFormat(targetFormat)
	if target == "" {
		return nil, &InvalidRequestError{Field: "target format", Reason: "is empty"}
	}
	if strings.ContainsAny(string(target), `./\ `) {
		return nil, &InvalidRequestError{Field: "target format", Reason: "must be a bare extension"}
	}

	data := make([]byte, len(sourceData))
	copy(data, sourceData)

	return &ConversionRequest{
		sourceData:     data,
		sourceName:     sourceName,
		sourceMimeType: strings.TrimSpace(sourceMimeType),
		targetFormat:   target,
	}, nil
}

// SourceData returns the source bytes. Callers must not modify the slice.
func (r *ConversionRequest) SourceData() []byte {
	return r.sourceData
}

// SourceName returns the source file name, also used as the input staging name.
func (r *ConversionRequest) SourceName() string {
	return r.sourceName
}

// SourceMimeType returns the MIME type declared for the source.
func (r *ConversionRequest) SourceMimeType() string {
	return r.sourceMimeType
}

// TargetFormat returns the normalized target format.
func (r *ConversionRequest) TargetFormat() Format {
	return r.targetFormat
}

// SourceFormat is the lowercased suffix after the last "." of the source name.
func (r *ConversionRequest) SourceFormat() Format {
	return NormalizeFormat(r.sourceName[strings.LastIndex(r.sourceName, ".")+1:])
}

// OutputName is the source name with its extension replaced by the target format.
// The base name is kept verbatim, including its case.
func (r *ConversionRequest) OutputName() string {
	return r.sourceName[:strings.LastIndex(r.sourceName, ".")] + "." + string(r.targetFormat)
}

// OutputMimeType keeps the major type of the source MIME type and replaces
// the subtype with the target format, e.g. video/quicktime -> video/mp4.
func (r *ConversionRequest) OutputMimeType() string {
	return DeriveMimeType(r.sourceMimeType, r.targetFormat)
}

// DeriveMimeType builds "{major type of sourceMime}/{target}".
// When the source MIME type has no major type, the target family's major
// type is used, then "application".
func DeriveMimeType(sourceMime string, target Format) string {
	major, _, _ := strings.Cut(strings.TrimSpace(sourceMime), "/")
	major = strings.ToLower(strings.TrimSpace(major))
	if major == "" {
		major = FamilyOf(target).MajorType()
	}
	if major == "" {
		major = defaultMajorType
	}
	return major + "/" + string(NormalizeFormat(string(target)))
}

// ConversionResult is the packaged output of a successful conversion.
type ConversionResult struct {
	Data       []byte
	MimeType   string
	OutputName string
}

// Size returns the artifact size in bytes.
func (r *ConversionResult) Size() int64 {
	return int64(len(r.Data))
}
