package assessment

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrInvalidQuestion is returned by Validate for structurally broken questions.
var ErrInvalidQuestion = errors.New("invalid question")

var optionLabels = [OptionCount]string{"A", "B", "C", "D"}

var extMediaTypes = map[string]MediaType{
	".jpg":  MediaImage,
	".jpeg": MediaImage,
	".png":  MediaImage,
	".gif":  MediaImage,
	".webp": MediaImage,
	".svg":  MediaImage,
	".mp3":  MediaAudio,
	".wav":  MediaAudio,
	".m4a":  MediaAudio,
	".ogg":  MediaAudio,
	".aac":  MediaAudio,
	".mp4":  MediaVideo,
	".webm": MediaVideo,
	".mov":  MediaVideo,
	".m4v":  MediaVideo,
}

// OptionLabel returns the positional label ("A".."D") for an option index.
func OptionLabel(i int) string {
	if i < 0 || i >= OptionCount {
		return ""
	}
	return optionLabels[i]
}

// InferMediaType guesses the media type from the URL's path extension,
// falling back to the given kind.
func InferMediaType(rawURL string, fallback Kind) MediaType {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	if mt, ok := extMediaTypes[strings.ToLower(path.Ext(p))]; ok {
		return mt
	}
	switch fallback {
	case KindAudio:
		return MediaAudio
	case KindVideo:
		return MediaVideo
	default:
		return MediaImage
	}
}

// Normalize fills in derived fields: positional option IDs and media types.
func (q *Question) Normalize() {
	if q.Kind == "" {
		q.Kind = KindText
	}
	for i := range q.Options {
		if q.Options[i].ID == "" {
			q.Options[i].ID = OptionLabel(i)
		}
		if q.Options[i].Kind == "" {
			q.Options[i].Kind = KindText
		}
	}
	for i := range q.MediaRefs {
		if q.MediaRefs[i].Type == "" {
			q.MediaRefs[i].Type = InferMediaType(q.MediaRefs[i].URL, q.Kind)
		}
	}
	if q.PromptBox != nil && q.PromptBox.Placement == "" {
		q.PromptBox.Placement = PlacementTop
	}
}

// Validate checks the structural rules every question must satisfy.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuestion)
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("%w %s: %d options, want %d", ErrInvalidQuestion, q.ID, len(q.Options), OptionCount)
	}
	if len(q.MediaRefs) > MaxMediaRefs {
		return fmt.Errorf("%w %s: %d media refs, max %d", ErrInvalidQuestion, q.ID, len(q.MediaRefs), MaxMediaRefs)
	}
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return fmt.Errorf("%w %s: correct option index %d out of range", ErrInvalidQuestion, q.ID, q.CorrectOptionIndex)
	}
	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if seen[o.ID] {
			return fmt.Errorf("%w %s: duplicate option id %q", ErrInvalidQuestion, q.ID, o.ID)
		}
		seen[o.ID] = true
	}
	return nil
}

// HasOption reports whether optionID is one of the question's options.
func (q Question) HasOption(optionID string) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// CorrectOptionID returns the ID of the correct option.
func (q Question) CorrectOptionID() string {
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectOptionIndex].ID
}

// Asset is a remote media file a question depends on.
type Asset struct {
	URL  string
	Type MediaType
}

// Assets returns every remote asset the question needs to render, in
// display order and without duplicates.
func (q Question) Assets() []Asset {
	var out []Asset
	seen := make(map[string]bool)
	add := func(u string, mt MediaType) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, Asset{URL: u, Type: mt})
	}

	if q.PromptBox != nil && q.PromptBox.MediaURL != "" {
		add(q.PromptBox.MediaURL, InferMediaType(q.PromptBox.MediaURL, q.Kind))
	}
	for _, m := range q.MediaRefs {
		mt := m.Type
		if mt == "" {
			mt = InferMediaType(m.URL, q.Kind)
		}
		add(m.URL, mt)
	}
	for _, o := range q.Options {
		if o.Kind == KindImage || o.Kind == KindAudio {
			add(o.Content, InferMediaType(o.Content, o.Kind))
		}
	}
	return out
}
