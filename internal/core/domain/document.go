package domain

import (
	"fmt"
	"sort"
	"strings"
)

const (
	fullTextProperty = "full_text"
	defaultTitle     = "CaseStudy"
)

// Fragment is a sibling chunk as read back for reconstruction. Order is the
// coalesced ordering attribute (order, chunk_index, index, else 0).
type Fragment struct {
	ChunkID string
	Order   int64
	Text    string
}

// CaseStudySnapshot is a case study node with all of its fragments.
type CaseStudySnapshot struct {
	Properties map[string]any
	Fragments  []Fragment
}

// Document is a reconstructed case study.
type Document struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	FullText string         `json:"full_text"`
	Metadata map[string]any `json:"metadata"`
}

func AssembleDocument(snap CaseStudySnapshot) *Document {
	props := snap.Properties
	if props == nil {
		props = map[string]any{}
	}

	id := firstProperty(props, CaseStudyAliasFields...)
	title := firstProperty(props, "title", "name", "slug")
	if title == "" {
		title = id
	}
	if title == "" {
		title = defaultTitle
	}

	fullText := stringProperty(props, fullTextProperty)
	if fullText == "" {
		fullText = JoinFragments(snap.Fragments)
	}

	meta := make(map[string]any, len(props))
	for k, v := range props {
		if k == fullTextProperty {
			continue
		}
		meta[k] = v
	}

	return &Document{
		ID:       id,
		Title:    title,
		FullText: fullText,
		Metadata: meta,
	}
}

// JoinFragments orders fragments by Order then ChunkID and joins the
// non-empty texts with newlines.
func JoinFragments(fragments []Fragment) string {
	ordered := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Text == "" {
			continue
		}
		ordered = append(ordered, f)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return ordered[i].ChunkID < ordered[j].ChunkID
	})

	texts := make([]string, 0, len(ordered))
	for _, f := range ordered {
		texts = append(texts, f.Text)
	}
	return strings.Join(texts, "\n")
}

func firstProperty(props map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := stringProperty(props, key); v != "" {
			return v
		}
	}
	return ""
}

func stringProperty(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
