package utils

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// audioTypes covers the upload formats the transcription endpoint accepts
// that mime.TypeByExtension does not know on every platform.
var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".mpga": "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
}

// DetectAudioMimeAndExt resolves the content type of an audio upload from
// its filename, falling back to sniffing the first bytes. The returned
// extension is suitable for naming the upload; it defaults to ".webm",
// the browser recorder format.
func DetectAudioMimeAndExt(filename string, head []byte) (string, string) {
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := audioTypes[ext]; ok {
		return t, ext
	}
	if t := mime.TypeByExtension(ext); ext != "" && t != "" {
		return t, ext
	}

	mimeType := "application/octet-stream"
	if len(head) > 0 {
		mimeType = http.DetectContentType(head)
	}
	return mimeType, mimeToExt(mimeType)
}

// mimeToExt converts a MIME type to its first known extension.
func mimeToExt(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	for ext, t := range audioTypes {
		if t == base && ext != ".mpga" && ext != ".oga" && ext != ".mp4" {
			return ext
		}
	}
	exts, err := mime.ExtensionsByType(base)
	if err != nil || len(exts) == 0 {
		return ".webm"
	}
	return exts[0]
}
