// Package models holds the data entities shared across the pipeline:
// the generator's structured article output, citations, sitemap pages,
// internal links, and the job record persisted by the job manager.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ArticleOutput is the flat record modelling the generator's structured
// JSON output (spec.md §3.1). Field names mirror the schema handed to
// the generator so that json.Unmarshal of stage 2's raw_article needs
// no translation layer.
type ArticleOutput struct {
	Headline         string `json:"Headline"`
	Subtitle         string `json:"Subtitle"`
	Teaser           string `json:"Teaser"`
	DirectAnswer     string `json:"Direct_Answer"`
	Intro            string `json:"Intro"`
	MetaTitle        string `json:"Meta_Title"`
	MetaDescription  string `json:"Meta_Description"`
	Sources          string `json:"Sources"`
	SearchQueries    string `json:"Search_Queries,omitempty"`
	TLDR             string `json:"TLDR,omitempty"`

	Sections      [9]ArticleSection `json:"-"`
	KeyTakeaways  [3]string         `json:"-"`
	FAQs          [6]FAQPair        `json:"-"`
	PAAs          [4]FAQPair        `json:"-"`
	Images        [3]ArticleImage   `json:"-"`
	Tables        []ArticleTable    `json:"tables,omitempty"`

	// Raw carries every section_NN_*, faq_NN_*, paa_NN_*, image_NN_*,
	// key_takeaway_NN field as received, so fields beyond the fixed
	// arrays above stay available in memory; it is left out of JSON.
	Raw map[string]string `json:"-"`
}

// ArticleSection is one numbered content section (section_NN_title / _content).
type ArticleSection struct {
	Title   string
	Content string
}

// FAQPair is one question/answer pair (used for both FAQ and PAA blocks).
type FAQPair struct {
	Question string
	Answer   string
}

// ArticleImage is one of the three generated article images.
type ArticleImage struct {
	URL     string
	AltText string
	Credit  string
}

// ArticleTable is an ordered table with |row| == |headers| for every row.
type ArticleTable struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// RequiredFields lists the fields stage 3 treats as fatal-if-missing
// (spec.md §4.4 stage 3, §8 invariants).
func (a *ArticleOutput) RequiredFields() map[string]string {
	return map[string]string{
		"Headline":         a.Headline,
		"Subtitle":         a.Subtitle,
		"Teaser":           a.Teaser,
		"Direct_Answer":    a.DirectAnswer,
		"Intro":            a.Intro,
		"Meta_Title":       a.MetaTitle,
		"Meta_Description": a.MetaDescription,
	}
}

// MissingRequiredFields returns the names of required fields that are
// blank, in schema order, for use in a validation error message.
func (a *ArticleOutput) MissingRequiredFields() []string {
	order := []string{"Headline", "Subtitle", "Teaser", "Direct_Answer", "Intro", "Meta_Title", "Meta_Description"}
	fields := a.RequiredFields()
	var missing []string
	for _, name := range order {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// NonEmptySections returns sections 01..09 up to (but not including)
// the first empty title, per the "section titles are dense from index
// 01" invariant (spec.md §3.1). Gaps beyond the first empty title are
// tolerated on read but never rendered.
func (a *ArticleOutput) NonEmptySections() []ArticleSection {
	var out []ArticleSection
	for _, s := range a.Sections {
		if strings.TrimSpace(s.Title) == "" {
			break
		}
		out = append(out, s)
	}
	return out
}

// NonEmptyFAQs returns FAQ pairs whose question is non-empty, preserving order.
func (a *ArticleOutput) NonEmptyFAQs() []FAQPair {
	return nonEmptyPairs(a.FAQs[:])
}

// NonEmptyPAAs returns PAA pairs whose question is non-empty, preserving order.
func (a *ArticleOutput) NonEmptyPAAs() []FAQPair {
	return nonEmptyPairs(a.PAAs[:])
}

func nonEmptyPairs(pairs []FAQPair) []FAQPair {
	var out []FAQPair
	for _, p := range pairs {
		if strings.TrimSpace(p.Question) != "" {
			out = append(out, p)
		}
	}
	return out
}

// FromFlatMap populates the numbered fields (section_NN_*, faq_NN_*,
// paa_NN_*, image_NN_*, key_takeaway_NN) from a flat string map, the
// shape the generator's raw JSON actually arrives in. Unknown keys are
// kept in Raw so nothing is silently dropped.
func (a *ArticleOutput) FromFlatMap(flat map[string]any) {
	a.Raw = make(map[string]string, len(flat))
	for k, v := range flat {
		s := toStringValue(v)
		a.Raw[k] = s

		switch {
		case k == "Headline":
			a.Headline = s
		case k == "Subtitle":
			a.Subtitle = s
		case k == "Teaser":
			a.Teaser = s
		case k == "Direct_Answer":
			a.DirectAnswer = s
		case k == "Intro":
			a.Intro = s
		case k == "Meta_Title":
			a.MetaTitle = s
		case k == "Meta_Description":
			a.MetaDescription = s
		case k == "Sources":
			a.Sources = s
		case k == "Search_Queries":
			a.SearchQueries = s
		case k == "TLDR":
			a.TLDR = s
		case strings.HasPrefix(k, "section_") && strings.HasSuffix(k, "_title"):
			if i, ok := sectionIndex(k, "section_", "_title"); ok {
				a.Sections[i].Title = s
			}
		case strings.HasPrefix(k, "section_") && strings.HasSuffix(k, "_content"):
			if i, ok := sectionIndex(k, "section_", "_content"); ok {
				a.Sections[i].Content = s
			}
		case strings.HasPrefix(k, "key_takeaway_"):
			if i, ok := sectionIndex(k, "key_takeaway_", ""); ok && i < len(a.KeyTakeaways) {
				a.KeyTakeaways[i] = s
			}
		case strings.HasPrefix(k, "faq_") && strings.HasSuffix(k, "_question"):
			if i, ok := sectionIndex(k, "faq_", "_question"); ok && i < len(a.FAQs) {
				a.FAQs[i].Question = s
			}
		case strings.HasPrefix(k, "faq_") && strings.HasSuffix(k, "_answer"):
			if i, ok := sectionIndex(k, "faq_", "_answer"); ok && i < len(a.FAQs) {
				a.FAQs[i].Answer = s
			}
		case strings.HasPrefix(k, "paa_") && strings.HasSuffix(k, "_question"):
			if i, ok := sectionIndex(k, "paa_", "_question"); ok && i < len(a.PAAs) {
				a.PAAs[i].Question = s
			}
		case strings.HasPrefix(k, "paa_") && strings.HasSuffix(k, "_answer"):
			if i, ok := sectionIndex(k, "paa_", "_answer"); ok && i < len(a.PAAs) {
				a.PAAs[i].Answer = s
			}
		case strings.HasPrefix(k, "image_") && strings.HasSuffix(k, "_url"):
			if i, ok := sectionIndex(k, "image_", "_url"); ok && i < len(a.Images) {
				a.Images[i].URL = s
			}
		case strings.HasPrefix(k, "image_") && strings.HasSuffix(k, "_alt_text"):
			if i, ok := sectionIndex(k, "image_", "_alt_text"); ok && i < len(a.Images) {
				a.Images[i].AltText = s
			}
		case strings.HasPrefix(k, "image_") && strings.HasSuffix(k, "_credit"):
			if i, ok := sectionIndex(k, "image_", "_credit"); ok && i < len(a.Images) {
				a.Images[i].Credit = s
			}
		}
	}
}

// sectionIndex parses the NN out of "<prefix>NN<suffix>" into a
// zero-based index (NN=01 -> 0).
func sectionIndex(key, prefix, suffix string) (int, bool) {
	body := strings.TrimPrefix(key, prefix)
	body = strings.TrimSuffix(body, suffix)
	n, err := strconv.Atoi(body)
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

func toStringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
