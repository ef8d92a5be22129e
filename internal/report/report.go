// Package report turns demuxed files into YAML summaries.
package report

import (
	"encoding/hex"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/woxQAQ/mkvbridge/pkg/matroska"
)

// File is the summary of one input.
type File struct {
	Path        string       `yaml:"path"`
	Backend     string       `yaml:"backend"`
	Info        *Info        `yaml:"info,omitempty"`
	Tracks      []Track      `yaml:"tracks"`
	Chapters    []Chapter    `yaml:"chapters,omitempty"`
	Tags        []Tag        `yaml:"tags,omitempty"`
	Attachments []Attachment `yaml:"attachments,omitempty"`
	Cues        int          `yaml:"cues,omitempty"`
	Packets     map[int]int  `yaml:"packets,omitempty"`
	Error       string       `yaml:"error,omitempty"`
}

// Info is the segment-wide part of a summary.
type Info struct {
	Title         string `yaml:"title,omitempty"`
	MuxingApp     string `yaml:"muxing_app,omitempty"`
	WritingApp    string `yaml:"writing_app,omitempty"`
	UID           string `yaml:"uid"`
	TimecodeScale uint64 `yaml:"timecode_scale"`
	DurationNs    uint64 `yaml:"duration_ns"`
}

// Track summarises one track.
type Track struct {
	Number   uint8  `yaml:"number"`
	UID      uint64 `yaml:"uid"`
	Type     string `yaml:"type"`
	Codec    string `yaml:"codec"`
	Name     string `yaml:"name,omitempty"`
	Language string `yaml:"language"`
	Default  bool   `yaml:"default"`
	Forced   bool   `yaml:"forced,omitempty"`

	Width      uint32  `yaml:"width,omitempty"`
	Height     uint32  `yaml:"height,omitempty"`
	Interlaced bool    `yaml:"interlaced,omitempty"`
	SampleRate float64 `yaml:"sample_rate,omitempty"`
	Channels   uint8   `yaml:"channels,omitempty"`
	BitDepth   uint8   `yaml:"bit_depth,omitempty"`
}

// Chapter summarises a chapter and its children.
type Chapter struct {
	UID      uint64    `yaml:"uid"`
	Title    string    `yaml:"title,omitempty"`
	StartNs  uint64    `yaml:"start_ns"`
	EndNs    uint64    `yaml:"end_ns,omitempty"`
	Hidden   bool      `yaml:"hidden,omitempty"`
	Children []Chapter `yaml:"children,omitempty"`
}

// Tag is one simple tag with the UIDs it targets.
type Tag struct {
	Name    string   `yaml:"name"`
	Value   string   `yaml:"value"`
	Targets []uint64 `yaml:"targets,omitempty"`
}

// Attachment summarises an attached file.
type Attachment struct {
	Name     string `yaml:"name"`
	MimeType string `yaml:"mime_type"`
	Size     uint64 `yaml:"size"`
}

func track(ti *matroska.TrackInfo) Track {
	t := Track{
		Number:   ti.Number,
		UID:      ti.UID,
		Type:     ti.Type.String(),
		Codec:    ti.CodecID,
		Name:     ti.Name,
		Language: ti.Language,
		Default:  ti.Default,
		Forced:   ti.Forced,
	}
	switch t.Type {
	case "video":
		t.Width = ti.Video.PixelWidth
		t.Height = ti.Video.PixelHeight
		t.Interlaced = ti.Video.Interlaced
	case "audio":
		t.SampleRate = ti.Audio.SamplingFreq
		t.Channels = ti.Audio.Channels
		t.BitDepth = ti.Audio.BitDepth
	}
	return t
}

func info(si *matroska.SegmentInfo) *Info {
	return &Info{
		Title:         si.Title,
		MuxingApp:     si.MuxingApp,
		WritingApp:    si.WritingApp,
		UID:           hex.EncodeToString(si.UID[:]),
		TimecodeScale: si.TimecodeScale,
		DurationNs:    si.Duration,
	}
}

func chapters(in []*matroska.Chapter) []Chapter {
	var out []Chapter
	for _, c := range in {
		ch := Chapter{
			UID:      c.UID,
			StartNs:  c.Start,
			EndNs:    c.End,
			Hidden:   c.Hidden,
			Children: chapters(c.Children),
		}
		if len(c.Display) > 0 {
			ch.Title = c.Display[0].String
		}
		out = append(out, ch)
	}
	return out
}

func tags(in []matroska.Tag) []Tag {
	var out []Tag
	for _, t := range in {
		var uids []uint64
		for _, target := range t.Targets {
			uids = append(uids, target.UID)
		}
		for _, st := range t.SimpleTags {
			out = append(out, Tag{Name: st.Name, Value: st.Value, Targets: uids})
		}
	}
	return out
}

func attachments(in []matroska.Attachment) []Attachment {
	var out []Attachment
	for _, a := range in {
		out = append(out, Attachment{Name: a.Name, MimeType: a.MimeType, Size: a.Length})
	}
	return out
}

// Write encodes files as a YAML document.
func Write(w io.Writer, files []*File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(files); err != nil {
		return err
	}
	return enc.Close()
}
