package audio

import "strings"

// StandardKey identifies a tag with a well-known meaning. StdNone marks a tag
// whose key is not recognized.
type StandardKey string

const (
	StdNone        StandardKey = ""
	StdTrackTitle  StandardKey = "track_title"
	StdArtist      StandardKey = "artist"
	StdAlbum       StandardKey = "album"
	StdAlbumArtist StandardKey = "album_artist"
	StdDate        StandardKey = "date"
	StdComment     StandardKey = "comment"
	StdGenre       StandardKey = "genre"
	StdTrackNumber StandardKey = "track_number"
	StdDiscNumber  StandardKey = "disc_number"
	StdComposer    StandardKey = "composer"
	StdCopyright   StandardKey = "copyright"
	StdEncoder     StandardKey = "encoder"
)

// Tag is one (key, value) pair in source order.
type Tag struct {
	Key   string      `json:"key"`
	Value string      `json:"value"`
	Std   StandardKey `json:"std,omitempty"`
}

var vorbisKeys = map[string]StandardKey{
	"TITLE":        StdTrackTitle,
	"ARTIST":       StdArtist,
	"ALBUM":        StdAlbum,
	"ALBUMARTIST":  StdAlbumArtist,
	"ALBUM ARTIST": StdAlbumArtist,
	"DATE":         StdDate,
	"YEAR":         StdDate,
	"COMMENT":      StdComment,
	"DESCRIPTION":  StdComment,
	"GENRE":        StdGenre,
	"TRACKNUMBER":  StdTrackNumber,
	"DISCNUMBER":   StdDiscNumber,
	"COMPOSER":     StdComposer,
	"COPYRIGHT":    StdCopyright,
	"ENCODER":      StdEncoder,
}

// NewTag builds a tag and resolves its standard key from the Vorbis comment name.
func NewTag(key, value string) Tag {
	return Tag{Key: key, Value: value, Std: vorbisKeys[strings.ToUpper(strings.TrimSpace(key))]}
}
