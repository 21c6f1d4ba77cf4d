package renderer

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/a-h/templ"
)

// DiagramSourceAttr carries the base64 encoded diagram source.
const DiagramSourceAttr = "data-diagram-source"

var (
	unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	dashRuns      = regexp.MustCompile(`-{2,}`)
)

// SafeID turns raw into an identifier usable as an element id and in a CSS id
// selector: anything outside [A-Za-z0-9_-] becomes a dash, dash runs collapse,
// leading and trailing dashes are trimmed and a leading digit gets a "d"
// prefix. SafeID(SafeID(x)) == SafeID(x).
func SafeID(raw string) string {
	s := unsafeIDChars.ReplaceAllString(raw, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "diagram"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "d" + s
	}
	return s
}

// DiagramElementID derives the content-addressed placeholder id for a
// diagram unit.
func DiagramElementID(unitID, source string) string {
	sum := sha256.Sum256([]byte(source))
	if strings.TrimSpace(unitID) == "" {
		unitID = "diagram"
	}
	return SafeID(unitID + "-" + hex.EncodeToString(sum[:])[:8])
}

// EncodeDiagramSource makes source safe to carry in an attribute.
func EncodeDiagramSource(source string) string {
	return base64.StdEncoding.EncodeToString([]byte(source))
}

// DecodeDiagramSource reverses EncodeDiagramSource.
func DecodeDiagramSource(encoded string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func renderDiagram(unit ContentUnit) RenderResult {
	source := strings.TrimSpace(unit.Payload)
	if source == "" {
		return RenderResult{}
	}

	id := DiagramElementID(unit.ID, source)
	var b strings.Builder
	b.WriteString(`<div class="tc-diagram" id="`)
	b.WriteString(id)
	b.WriteString(`" ` + DiagramSourceAttr + `="`)
	b.WriteString(EncodeDiagramSource(source))
	b.WriteString(`" role="img" aria-label="`)
	b.WriteString(templ.EscapeString(strings.TrimSpace("Diagram " + unit.ID)))
	b.WriteString(`"><div class="tc-diagram-loading">Rendering diagram...</div></div>`)

	return RenderResult{HTML: b.String(), PostRender: DiagramJob{ElementID: id}}
}
