package encoder

import (
	"io"
	"log/slog"
	"strings"

	"github.com/bogem/id3v2/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/listenupapp/listenup-transcoder/internal/audio"
	"github.com/listenupapp/listenup-transcoder/internal/domain"
)

// frameOrder fixes the order frames are written in, so equal input renders
// equal bytes.
var frameOrder = []struct {
	key audio.StandardKey
	id  string
}{
	{audio.StdTrackTitle, "TIT2"},
	{audio.StdArtist, "TPE1"},
	{audio.StdAlbum, "TALB"},
	{audio.StdAlbumArtist, "TPE2"},
	{audio.StdDate, "TDRC"},
	{audio.StdTrackNumber, "TRCK"},
	{audio.StdDiscNumber, "TPOS"},
	{audio.StdGenre, "TCON"},
	{audio.StdComposer, "TCOM"},
	{audio.StdCopyright, "TCOP"},
	{audio.StdEncoder, "TSSE"},
	{audio.StdComment, "COMM"},
}

const (
	tagHeaderSize   = 10
	frameHeaderSize = 10
	tagVersion      = 4
)

type tagFrame struct {
	id   string
	body id3v2.Framer
}

// mergeTags collapses the source tags into one value per output field.
// Tags without a standard key are filed under the comment.
func mergeTags(tags []audio.Tag, policy domain.TagMergePolicy, logger *slog.Logger) map[audio.StandardKey]string {
	fields := make(map[audio.StandardKey]string, len(tags))
	for _, t := range tags {
		key := t.Std
		if key == audio.StdNone {
			key = audio.StdComment
		}
		value := norm.NFC.String(strings.TrimSpace(t.Value))
		if value == "" {
			continue
		}

		if prev, ok := fields[key]; ok {
			if policy == domain.TagMergeFirstWins {
				logger.Debug("tag dropped", "field", key, "key", t.Key, "kept", prev)
				continue
			}
			logger.Debug("tag replaced", "field", key, "key", t.Key, "previous", prev)
		}
		fields[key] = value
	}
	return fields
}

// writeTag renders an ID3v2.4 block for the merged fields and the cover image.
// Nothing is written when there is neither a field nor an image.
func writeTag(w io.Writer, fields map[audio.StandardKey]string, img *audio.Image) error {
	var frames []tagFrame
	for _, f := range frameOrder {
		value, ok := fields[f.key]
		if !ok {
			continue
		}
		if f.key == audio.StdComment {
			frames = append(frames, tagFrame{f.id, id3v2.CommentFrame{
				Encoding: id3v2.EncodingUTF8,
				Language: "eng",
				Text:     value,
			}})
			continue
		}
		frames = append(frames, tagFrame{f.id, id3v2.TextFrame{Encoding: id3v2.EncodingUTF8, Text: value}})
	}

	if img != nil && len(img.Data) > 0 {
		mime := img.MIME
		if mime == "" {
			mime = "image/jpeg"
		}
		frames = append(frames, tagFrame{"APIC", id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    mime,
			PictureType: id3v2.PTFrontCover,
			Description: norm.NFC.String(img.Description),
			Picture:     img.Data,
		}})
	}

	if len(frames) == 0 {
		return nil
	}

	size := 0
	for _, f := range frames {
		size += frameHeaderSize + f.body.Size()
	}

	header := [tagHeaderSize]byte{'I', 'D', '3', tagVersion}
	putSyncsafe(header[6:], size)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	var fh [frameHeaderSize]byte
	for _, f := range frames {
		copy(fh[:4], f.id)
		putSyncsafe(fh[4:8], f.body.Size())
		if _, err := w.Write(fh[:]); err != nil {
			return err
		}
		if _, err := f.body.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// putSyncsafe stores n as a 28-bit syncsafe integer in the first four bytes of b.
func putSyncsafe(b []byte, n int) {
	b[0] = byte(n>>21) & 0x7f
	b[1] = byte(n>>14) & 0x7f
	b[2] = byte(n>>7) & 0x7f
	b[3] = byte(n) & 0x7f
}
