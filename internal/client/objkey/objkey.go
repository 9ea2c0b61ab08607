// Package objkey interprets flat object keys as a hierarchical filesystem.
//
// A key ending with "/" is a folder marker, anything else is a file. Keys are
// "/"-delimited and never start with "/". A folder exists either as an explicit
// marker object or implicitly, as the prefix of some other key.
//
// All functions are pure and total: every input string produces a result.
package objkey

import (
	"fmt"
	"strings"
	"time"
)

// Separator delimits path segments inside an object key.
const Separator = "/"

// FileType is the display classification of an object key.
type FileType string

const (
	Folder      FileType = "Folder"
	File        FileType = "File"
	PDF         FileType = "PDF Document"
	Image       FileType = "Image"
	Audio       FileType = "Audio"
	Video       FileType = "Video"
	Text        FileType = "Text File"
	Word        FileType = "Word Document"
	Excel       FileType = "Excel Spreadsheet"
	PowerPoint  FileType = "PowerPoint Presentation"
	ZipArchive  FileType = "ZIP Archive"
	RarArchive  FileType = "RAR Archive"
	HTML        FileType = "HTML Document"
	CSS         FileType = "CSS Stylesheet"
	JavaScript  FileType = "JavaScript File"
	JSON        FileType = "JSON File"
	UnknownType FileType = "Unknown"
)

var extensionTypes = map[string]FileType{
	"pdf":  PDF,
	"jpg":  Image,
	"jpeg": Image,
	"png":  Image,
	"gif":  Image,
	"svg":  Image,
	"mp3":  Audio,
	"wav":  Audio,
	"mp4":  Video,
	"avi":  Video,
	"mkv":  Video,
	"txt":  Text,
	"doc":  Word,
	"docx": Word,
	"xls":  Excel,
	"xlsx": Excel,
	"ppt":  PowerPoint,
	"pptx": PowerPoint,
	"zip":  ZipArchive,
	"rar":  RarArchive,
	"html": HTML,
	"htm":  HTML,
	"css":  CSS,
	"js":   JavaScript,
	"json": JSON,
}

// IsFolder reports whether key is a folder marker.
func IsFolder(key string) bool {
	return strings.HasSuffix(key, Separator)
}

// Classify returns the FileType of key.
//
// Folder markers are always Folder. Otherwise the extension of the display name
// (text after its last ".") is looked up case-insensitively; names without a "."
// are File and unrecognised extensions are UnknownType.
func Classify(key string) FileType {
	if IsFolder(key) {
		return Folder
	}
	name := DisplayName(key)
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return File
	}
	if t, ok := extensionTypes[strings.ToLower(name[i+1:])]; ok {
		return t
	}
	return UnknownType
}

// DisplayName strips one trailing separator and returns the last segment of key.
// The empty key and the bare separator are returned unchanged.
func DisplayName(key string) string {
	if key == "" || key == Separator {
		return key
	}
	trimmed := strings.TrimSuffix(key, Separator)
	if i := strings.LastIndex(trimmed, Separator); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// ParentPath returns the folder key that directly contains key, or "" for
// children of the root.
func ParentPath(key string) string {
	trimmed := strings.TrimSuffix(key, Separator)
	i := strings.LastIndex(trimmed, Separator)
	if i < 0 {
		return ""
	}
	return trimmed[:i+1]
}

// JoinKey builds the key of an object called name inside dir. A trailing
// separator is appended for folders.
func JoinKey(dir, name string, folder bool) string {
	key := dir + strings.TrimSuffix(name, Separator)
	if folder {
		key += Separator
	}
	return key
}

// FolderExists reports whether folder is the root, an explicit marker in keys,
// or implied by another key that has it as a prefix.
func FolderExists(keys []string, folder string) bool {
	if folder == "" {
		return true
	}
	if !IsFolder(folder) {
		return false
	}
	for _, k := range keys {
		if strings.HasPrefix(k, folder) {
			return true
		}
	}
	return false
}

// FormatSize renders bytes with binary units and two decimals above the byte scale.
func FormatSize(bytes int64) string {
	const unit = 1024
	switch {
	case bytes < unit:
		return fmt.Sprintf("%d B", bytes)
	case bytes < unit*unit:
		return fmt.Sprintf("%.2f KiB", float64(bytes)/unit)
	case bytes < unit*unit*unit:
		return fmt.Sprintf("%.2f MiB", float64(bytes)/(unit*unit))
	default:
		return fmt.Sprintf("%.2f GiB", float64(bytes)/(unit*unit*unit))
	}
}

// TimestampLayout is the local date-time layout produced by FormatTimestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders an RFC 3339 timestamp in local time. Input that does
// not parse is returned as is.
func FormatTimestamp(iso string) string {
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return iso
	}
	return t.Local().Format(TimestampLayout)
}

// splitExt separates a file name into base and extension (with the dot).
// Dot-files such as ".env" have no extension.
func splitExt(name string) (string, string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

// AlternateName proposes a free variant of name of the form "base (n)ext",
// keeping a trailing separator for folders. taken holds the names already used
// in the destination folder. If name itself is free it is returned unchanged.
func AlternateName(name string, taken map[string]struct{}) string {
	if _, ok := taken[name]; !ok {
		return name
	}

	folder := IsFolder(name)
	base, ext := strings.TrimSuffix(name, Separator), ""
	if !folder {
		base, ext = splitExt(base)
	}

	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if folder {
			candidate += Separator
		}
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
