package assistant

import "strings"

// In-band control markers the model emits to ask for help. Detection is a
// literal substring match.
const (
	SearchMarker = "ИЩУИНФОРМАЦИЮ:"
	ImageMarker  = "ГЕНЕРИРУЮ_ИЗОБРАЖЕНИЕ:"
)

// stripSet is trimmed from both ends of an extracted payload.
const stripSet = ".,!\"\n "

// Markers is the pair of markers an Orchestrator looks for.
type Markers struct {
	Search string
	Image  string
}

// DefaultMarkers returns the built-in marker pair.
func DefaultMarkers() Markers {
	return Markers{Search: SearchMarker, Image: ImageMarker}
}

// HasSearch reports whether response asks for a web search.
func (m Markers) HasSearch(response string) bool { return strings.Contains(response, m.Search) }

// HasImage reports whether response asks for an image.
func (m Markers) HasImage(response string) bool { return strings.Contains(response, m.Image) }

// SearchQuery returns the text following the first search marker, up to a
// repeated marker if any, with stripSet trimmed. "" when the marker is absent.
func (m Markers) SearchQuery(response string) string {
	return payload(response, m.Search)
}

// ImageDescription is like SearchQuery for the image marker, but falls back to
// original when the marker is absent or carries no text.
func (m Markers) ImageDescription(response, original string) string {
	if d := payload(response, m.Image); d != "" {
		return d
	}
	return original
}

// ExtractSearchQuery applies the default markers.
func ExtractSearchQuery(response string) string {
	return DefaultMarkers().SearchQuery(response)
}

// ExtractImageDescription applies the default markers.
func ExtractImageDescription(response, original string) string {
	return DefaultMarkers().ImageDescription(response, original)
}

func payload(response, marker string) string {
	if marker == "" {
		return ""
	}
	_, after, found := strings.Cut(response, marker)
	if !found {
		return ""
	}
	after, _, _ = strings.Cut(after, marker)
	return strings.Trim(strings.TrimSpace(after), stripSet)
}
