// Package types defines shared types used across all Glance modules.
package types

import "time"

// ═══════════════════════════════════════════════════════════════════════════════
// SCREEN GEOMETRY
// ═══════════════════════════════════════════════════════════════════════════════

// BoundingBox is the pixel rectangle an element occupies on screen.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the box.
func (b BoundingBox) Center() (x, y float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Viewport is the logical size of the analyzed surface. Cached bounds and
// display bounds can disagree (scaling, window moves), so callers always pass
// the viewport the boxes were measured against.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultViewport is used when the analyzer does not report a surface size.
var DefaultViewport = Viewport{Width: 1920, Height: 1080}

// ═══════════════════════════════════════════════════════════════════════════════
// SCREEN ELEMENTS
// ═══════════════════════════════════════════════════════════════════════════════

// ElementType categorizes an extracted UI/text item.
type ElementType string

const (
	ElementButton   ElementType = "button"
	ElementLink     ElementType = "link"
	ElementHeading  ElementType = "heading"
	ElementMenuItem ElementType = "menu_item"
	ElementInput    ElementType = "input"
	ElementImage    ElementType = "image"
	ElementText     ElementType = "text"
	ElementOther    ElementType = "other"
)

// Element is a single extracted UI or text item from a screen analysis.
type Element struct {
	Type   ElementType  `json:"type"`
	Text   string       `json:"text,omitempty"`
	Value  string       `json:"value,omitempty"`
	Bounds *BoundingBox `json:"bounds,omitempty"` // nil when the analyzer has no geometry
}

// AnalysisResult is the response of a screen analysis request.
type AnalysisResult struct {
	Elements []Element `json:"elements"`
	FullText string    `json:"full_text,omitempty"`
	Summary  string    `json:"summary,omitempty"`
	Viewport Viewport  `json:"viewport,omitempty"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// SEARCH
// ═══════════════════════════════════════════════════════════════════════════════

// SearchHit is a single ranked element returned by element search.
type SearchHit struct {
	Type   ElementType  `json:"type"`
	Text   string       `json:"text"`
	Score  float64      `json:"score"` // normalized 0.0 - 1.0
	Bounds *BoundingBox `json:"bounds,omitempty"`
}

// WebResult is a single result from the web search collaborator.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONVERSATION
// ═══════════════════════════════════════════════════════════════════════════════

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
