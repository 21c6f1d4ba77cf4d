package renderer

import (
	"fmt"
	"strings"
	"time"
)

// ContentType tags the payload of a ContentUnit.
type ContentType string

const (
	TypeStructuredText ContentType = "structured-text"
	TypeMarkup         ContentType = "markup"
	TypeDiagram        ContentType = "diagram"
	TypeEmbed          ContentType = "embed"
	TypeFeed           ContentType = "feed"
	TypeExternalFile   ContentType = "external-file"
	TypeLanding        ContentType = "landing"
	TypeWebpartProxy   ContentType = "webpart-proxy"
	TypeSectionProxy   ContentType = "section-proxy"
)

// ContentTypes lists every supported content type.
var ContentTypes = []ContentType{
	TypeStructuredText, TypeMarkup, TypeDiagram, TypeEmbed, TypeFeed,
	TypeExternalFile, TypeLanding, TypeWebpartProxy, TypeSectionProxy,
}

// ParseContentType accepts a content type name, case-insensitively.
func ParseContentType(s string) (ContentType, error) {
	want := ContentType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range ContentTypes {
		if t == want {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown content type %q", s)
}

// ContentUnit is one piece of authored content. Payload carries the raw
// source for text-like types; the typed config fields carry the rest.
type ContentUnit struct {
	Type     ContentType     `yaml:"type" json:"type"`
	ID       string          `yaml:"id" json:"id"`
	Payload  string          `yaml:"payload,omitempty" json:"payload,omitempty"`
	Embed    *EmbedConfig    `yaml:"embed,omitempty" json:"embed,omitempty"`
	Feed     *FeedConfig     `yaml:"feed,omitempty" json:"feed,omitempty"`
	External *ExternalConfig `yaml:"external,omitempty" json:"external,omitempty"`
	Landing  *LandingConfig  `yaml:"landing,omitempty" json:"landing,omitempty"`
	Proxy    *ProxyConfig    `yaml:"proxy,omitempty" json:"proxy,omitempty"`
}

// EmbedConfig describes a third-party frame.
type EmbedConfig struct {
	URL               string   `yaml:"url" json:"url"`
	Height            int      `yaml:"height,omitempty" json:"height,omitempty"`
	Title             string   `yaml:"title,omitempty" json:"title,omitempty"`
	AdditionalDomains []string `yaml:"additional_domains,omitempty" json:"additional_domains,omitempty"`
	Defer             bool     `yaml:"defer,omitempty" json:"defer,omitempty"`
}

// FeedLayout selects the feed markup strategy.
type FeedLayout string

const (
	LayoutList    FeedLayout = "list"
	LayoutCards   FeedLayout = "cards"
	LayoutCompact FeedLayout = "compact"
)

// DateFormat selects how feed dates are printed.
type DateFormat string

const (
	DateRelative DateFormat = "relative"
	DateDayMonth DateFormat = "day-month"
	DateMonthDay DateFormat = "month-day"
)

// FeedDisplayConfig controls which feed fields are shown and how.
type FeedDisplayConfig struct {
	Layout           FeedLayout `yaml:"layout,omitempty" json:"layout,omitempty"`
	ShowDescription  bool       `yaml:"show_description" json:"show_description"`
	ShowDate         bool       `yaml:"show_date" json:"show_date"`
	ShowAuthor       bool       `yaml:"show_author" json:"show_author"`
	ShowThumbnail    bool       `yaml:"show_thumbnail" json:"show_thumbnail"`
	DescriptionLimit int        `yaml:"description_limit,omitempty" json:"description_limit,omitempty"`
	DateFormat       DateFormat `yaml:"date_format,omitempty" json:"date_format,omitempty"`
	LinkTarget       string     `yaml:"link_target,omitempty" json:"link_target,omitempty"`
	MaxItems         int        `yaml:"max_items,omitempty" json:"max_items,omitempty"`
}

// FeedItem is one already-fetched feed entry.
type FeedItem struct {
	Title         string    `yaml:"title" json:"title"`
	Link          string    `yaml:"link,omitempty" json:"link,omitempty"`
	Description   string    `yaml:"description,omitempty" json:"description,omitempty"`
	PublishedDate time.Time `yaml:"published,omitempty" json:"published,omitempty"`
	Author        string    `yaml:"author,omitempty" json:"author,omitempty"`
	Thumbnail     string    `yaml:"thumbnail,omitempty" json:"thumbnail,omitempty"`
}

// FeedConfig pairs display settings with the items, when already known. A nil
// Items slice means the data has not arrived yet.
type FeedConfig struct {
	Display FeedDisplayConfig `yaml:"display" json:"display"`
	Items   []FeedItem        `yaml:"items,omitempty" json:"items,omitempty"`
}

// ExternalConfig points at an externally hosted file. Content, when set, is
// used instead of fetching URL.
type ExternalConfig struct {
	URL     string `yaml:"url" json:"url"`
	Content string `yaml:"content,omitempty" json:"content,omitempty"`
}

// LandingStep is one card along the landing path.
type LandingStep struct {
	Title string `yaml:"title" json:"title"`
	Body  string `yaml:"body,omitempty" json:"body,omitempty"`
}

// LandingConfig holds the text of a decorative landing section.
type LandingConfig struct {
	Heading    string        `yaml:"heading" json:"heading"`
	Subheading string        `yaml:"subheading,omitempty" json:"subheading,omitempty"`
	Steps      []LandingStep `yaml:"steps,omitempty" json:"steps,omitempty"`
	EndLabel   string        `yaml:"end_label,omitempty" json:"end_label,omitempty"`
	CTALabel   string        `yaml:"cta_label,omitempty" json:"cta_label,omitempty"`
	CTAURL     string        `yaml:"cta_url,omitempty" json:"cta_url,omitempty"`
}

// ProxyConfig relocates a host widget or section into a panel. HostMarkup
// is the widget's current markup when the host hands it over.
type ProxyConfig struct {
	Target     string `yaml:"target" json:"target"`
	HostMarkup string `yaml:"host_markup,omitempty" json:"host_markup,omitempty"`
}

// PostRenderKind names the deferred phase a result needs.
type PostRenderKind string

const (
	PostRenderDiagram PostRenderKind = "diagram"
	PostRenderFeed    PostRenderKind = "feed"
	PostRenderLanding PostRenderKind = "landing"
)

// PostRender is the second-phase contract of a RenderResult. The set of
// implementations is closed: DiagramJob, FeedJob and LandingJob.
type PostRender interface {
	Kind() PostRenderKind
	postRender()
}

// DiagramJob asks for the diagram placeholder ElementID to be laid out.
type DiagramJob struct {
	ElementID string
}

func (DiagramJob) Kind() PostRenderKind { return PostRenderDiagram }
func (DiagramJob) postRender()          {}

// FeedJob marks a feed container waiting for its items.
type FeedJob struct {
	ContainerID string
	Display     FeedDisplayConfig
}

func (FeedJob) Kind() PostRenderKind { return PostRenderFeed }
func (FeedJob) postRender()          {}

// LandingJob asks for the scroll animation of section SectionID to be wired.
type LandingJob struct {
	SectionID string
}

func (LandingJob) Kind() PostRenderKind { return PostRenderLanding }
func (LandingJob) postRender()          {}

// RenderResult is sanitized markup plus an optional deferred phase.
type RenderResult struct {
	HTML       string
	PostRender PostRender
}

// RequiresPostRender reports whether the caller must run a second phase once
// HTML is attached to the page.
func (r RenderResult) RequiresPostRender() bool {
	return r.PostRender != nil
}
