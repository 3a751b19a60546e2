package app

import (
	"encoding/xml"
	"strings"
	"unicode"
)

// Envelope is the wire-level reply returned to the telephony provider: an
// XML document with zero or more ordered message segments. Zero segments
// acknowledges receipt without sending a visible reply.
type Envelope struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

// ContentType is the markup type the provider expects for webhook replies.
func (e Envelope) ContentType() string { return "text/xml; charset=utf-8" }

// Render marshals the envelope with an XML declaration.
func (e Envelope) Render() ([]byte, error) {
	body, err := xml.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// ReplyFormatter converts agent output into the wire envelope, splitting
// replies longer than one segment on sentence boundaries first, then word
// boundaries, preserving reading order. A split lands mid-word only when a
// single word exceeds the whole segment limit.
type ReplyFormatter struct {
	segmentLimit int
}

// NewReplyFormatter creates a formatter with the given per-segment rune
// limit.
func NewReplyFormatter(segmentLimit int) *ReplyFormatter {
	return &ReplyFormatter{segmentLimit: segmentLimit}
}

// Format wraps replyText into an envelope. Empty or whitespace-only text
// yields an envelope with no segments.
func (f *ReplyFormatter) Format(replyText string) Envelope {
	text := strings.TrimSpace(replyText)
	if text == "" {
		return Envelope{}
	}

	runes := []rune(text)
	var segments []string
	for len(runes) > f.segmentLimit {
		cut := f.findCut(runes)
		segment := strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace)
		if segment != "" {
			segments = append(segments, segment)
		}
		runes = runes[cut:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		segments = append(segments, string(runes))
	}
	return Envelope{Messages: segments}
}

// findCut picks the split index within the segment limit: the last sentence
// boundary if any, otherwise the last word boundary, otherwise a hard cut at
// the limit.
func (f *ReplyFormatter) findCut(runes []rune) int {
	wordCut := -1
	for i := f.segmentLimit; i >= 1; i-- {
		if !unicode.IsSpace(runes[i]) {
			continue
		}
		if wordCut == -1 {
			wordCut = i
		}
		if isSentenceEnd(runes[i-1]) {
			return i
		}
	}
	if wordCut != -1 {
		return wordCut
	}
	return f.segmentLimit
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
