package model

// EncoderProfile is the ordered list of encoder/container flag tokens
// used to produce a target format. An empty profile is valid and means
// the transcoder's defaults for the output container.
type EncoderProfile []string

// encoderProfiles is keyed by target format. Order of tokens is significant.
var encoderProfiles = map[Format]EncoderProfile{
	"3gp":  {"-r", "20", "-s", "352x288", "-vb", "400k", "-acodec", "aac", "-strict", "experimental", "-ac", "1", "-ar", "8000", "-ab", "24k"},
	"mp4":  {"-movflags", "+faststart", "-c:v", "libx264", "-preset", "medium", "-crf", "23", "-c:a", "aac", "-b:a", "192k"},
	"mp3":  {"-c:a", "libmp3lame", "-b:a", "192k"},
	"wav":  {"-c:a", "pcm_s16le", "-ar", "44100", "-ac", "2"},
	"ogg":  {"-c:a", "libvorbis", "-b:a", "192k"},
	"flac": {"-c:a", "flac"},
	"avi":  {"-c:v", "libxvid", "-b:v", "1000k", "-c:a", "mp3"},
	"mov":  {"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-c:a", "aac", "-b:a", "192k"},
	"webm": {"-c:v", "libvpx", "-b:v", "1000k", "-c:a", "libvorbis"},
	"m4a":  {"-c:a", "aac", "-b:a", "192k"},
	"jpg":  {"-q:v", "2"},
	"jpeg": {"-q:v", "2"},
	"png":  {"-pix_fmt", "rgb8"},
	"gif":  {"-f", "gif"},
	"bmp":  {"-f", "bmp"},
	"tiff": {"-f", "tiff"},
}

// ParametersFor returns the encoder profile for a target format.
// A format without a registered profile yields an empty profile, not an error.
// The returned slice is a copy and may be modified by the caller.
func ParametersFor(target Format) EncoderProfile {
	profile, ok := encoderProfiles[NormalizeFormat(string(target))]
	if !ok {
		return EncoderProfile{}
	}
	out := make(EncoderProfile, len(profile))
	copy(out, profile)
	return out
}

// HasProfile reports whether the registry carries a profile for the target format.
func HasProfile(target Format) bool {
	_, ok := encoderProfiles[NormalizeFormat(string(target))]
	return ok
}
