package mediaindex

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"

	"github.com/arthur-debert/safops/pkg/safops/filesystem"
)

// Collection is the index table a file belongs to.
type Collection string

const (
	CollectionImages Collection = "images"
	CollectionVideo  Collection = "video"
	CollectionFiles  Collection = "files"
)

const (
	imagePattern = "*.{jpg,jpeg,png,webp,bmp,heic,heif,dng,cr2,nef,arw,gif,svg}"
	videoPattern = "*.{mp4,mkv,webm,avi,3gp,3gpp,mov,m4v,mpg,mpeg,wmv,flv}"
)

// sniffLimit bounds how much of a file is read to detect its type.
const sniffLimit = 3072

func init() {
	mimetype.SetLimit(sniffLimit)
}

func matchBase(pattern, p string) bool {
	ok, err := doublestar.Match(pattern, strings.ToLower(path.Base(p)))
	return err == nil && ok
}

// IsImageFast reports whether p has an image extension.
func IsImageFast(p string) bool {
	return matchBase(imagePattern, p)
}

// IsVideoFast reports whether p has a video extension.
func IsVideoFast(p string) bool {
	return matchBase(videoPattern, p)
}

// IsMediaFast reports whether p has an image or video extension.
func IsMediaFast(p string) bool {
	return IsImageFast(p) || IsVideoFast(p)
}

// CollectionFor picks the collection of p by extension, then by sniffing the
// content when fsys is given and the file can be opened.
func CollectionFor(fsys filesystem.ReadFS, p string) Collection {
	switch {
	case IsImageFast(p):
		return CollectionImages
	case IsVideoFast(p):
		return CollectionVideo
	}
	if fsys == nil {
		return CollectionFiles
	}

	r, err := fsys.Open(p)
	if err != nil {
		return CollectionFiles
	}
	defer r.Close()
	mime, err := mimetype.DetectReader(r)
	if err != nil {
		return CollectionFiles
	}
	switch {
	case strings.HasPrefix(mime.String(), "image/"):
		return CollectionImages
	case strings.HasPrefix(mime.String(), "video/"):
		return CollectionVideo
	default:
		return CollectionFiles
	}
}

// IsMedia reports whether p is an image or video, by extension or content.
func IsMedia(fsys filesystem.ReadFS, p string) bool {
	return CollectionFor(fsys, p) != CollectionFiles
}
