package inspect

import (
	"io"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// ExifSummary counts what an EXIF block reveals. Re-encoding drops the
// whole block, so processed artifacts report zero tags.
type ExifSummary struct {
	Tags        int
	GPSTags     int
	CameraModel string
	Timestamp   string
}

func readExif(rs io.ReadSeeker) (ExifSummary, error) {
	summary := ExifSummary{}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return summary, err
	}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(rs, nil, true)
	if err != nil {
		if isNoExif(err) {
			return summary, nil
		}
		return summary, err
	}

	for _, tag := range tags {
		summary.Tags++
		name := tag.TagName

		if strings.HasPrefix(name, "GPS") || strings.Contains(tag.IfdPath, "GPS") {
			summary.GPSTags++
		}
		switch name {
		case "Model":
			summary.CameraModel = tagString(tag)
		case "DateTimeOriginal", "DateTime":
			if summary.Timestamp == "" {
				summary.Timestamp = tagString(tag)
			}
		}
	}

	return summary, nil
}

func tagString(tag exif.ExifTag) string {
	if s, ok := tag.Value.(string); ok {
		return strings.TrimRight(s, "\x00 ")
	}
	return tag.Formatted
}

func isNoExif(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "no exif")
}
