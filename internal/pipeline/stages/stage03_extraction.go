package stages

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/perrors"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
)

const (
	minMetaTitleLen       = 30
	maxMetaTitleLen       = 60
	minMetaDescriptionLen = 120
	maxMetaDescriptionLen = 160
	shortFirstParagraph   = 40 // words
)

var academicCitationPattern = regexp.MustCompile(`\([A-Z][a-zA-Z]+(?:\s+et al\.?)?,\s*\d{4}\)`)

// ExtractionStage validates the generator's structured output against
// the required-field list, warns (without failing) on meta-length
// violations, and runs a best-effort quality refinement pass (spec.md
// §4.4 stage 3).
type ExtractionStage struct{}

func NewExtractionStage() *ExtractionStage { return &ExtractionStage{} }

func (s *ExtractionStage) Number() int  { return 3 }
func (s *ExtractionStage) Name() string { return "extraction" }

func (s *ExtractionStage) Execute(ctx context.Context, ec *pipeline.ExecutionContext) error {
	if ec.RawArticle == nil {
		return perrors.Classify(fmt.Errorf("no generated article to extract"), perrors.KindValidation, "stage_03", "extraction")
	}
	if missing := ec.RawArticle.MissingRequiredFields(); len(missing) > 0 {
		err := fmt.Errorf("article missing required fields: %s", strings.Join(missing, ", "))
		return perrors.Classify(err, perrors.KindValidation, "stage_03", "extraction")
	}

	report := &models.QualityReport{Passed: true}
	report.WordCount = countWords(articleText(ec.RawArticle))

	warnMetaLength(ec.RawArticle.MetaTitle, "meta_title", minMetaTitleLen, maxMetaTitleLen, report)
	warnMetaLength(ec.RawArticle.MetaDescription, "meta_description", minMetaDescriptionLen, maxMetaDescriptionLen, report)

	refineQuality(ec.RawArticle, ec.Config.Keyword, report)

	ec.Quality = report
	return nil
}

func warnMetaLength(value, field string, min, max int, report *models.QualityReport) {
	n := len([]rune(value))
	if n < min || n > max {
		report.AddIssue(fmt.Sprintf("%s length %d outside recommended range %d-%d", field, n, min, max))
	}
}

// refineQuality flags, but never blocks on: keyword over/under-use,
// a short opening paragraph, AI-sounding stock phrases, and
// academic-style inline citations that don't match the [N] marker
// convention (spec.md §4.4 stage 3: "best-effort, never blocks").
func refineQuality(article *models.ArticleOutput, keyword string, report *models.QualityReport) {
	body := articleText(article)
	report.KeywordDensity = keywordDensity(body, keyword)
	if report.KeywordDensity < 0.003 {
		report.AddIssue("keyword density below 0.3%, article may under-target the primary keyword")
	}
	if report.KeywordDensity > 0.03 {
		report.AddIssue("keyword density above 3%, article may read as keyword-stuffed")
	}

	report.FirstParagraphWords = countWords(article.Intro)
	if report.FirstParagraphWords > 0 && report.FirstParagraphWords < shortFirstParagraph {
		report.AddIssue(fmt.Sprintf("intro paragraph is only %d words, target at least %d", report.FirstParagraphWords, shortFirstParagraph))
	}

	for _, phrase := range models.AIMarkerPhrases() {
		if strings.Contains(strings.ToLower(body), phrase) {
			report.AIMarkerPhrases = append(report.AIMarkerPhrases, phrase)
		}
	}
	if len(report.AIMarkerPhrases) > 0 {
		report.AddIssue(fmt.Sprintf("detected %d AI-sounding stock phrase(s), consider a rewrite pass", len(report.AIMarkerPhrases)))
	}

	if matches := academicCitationPattern.FindAllString(body, -1); len(matches) > 0 {
		report.CitationLeaks = matches
		report.AddIssue("detected academic-style (Author, Year) citations; this pipeline cites with [N] markers only")
	}
}

func keywordDensity(body, keyword string) float64 {
	if keyword == "" {
		return 0
	}
	words := countWords(body)
	if words == 0 {
		return 0
	}
	occurrences := strings.Count(strings.ToLower(body), strings.ToLower(keyword))
	return float64(occurrences) / float64(words)
}

func articleText(a *models.ArticleOutput) string {
	var b strings.Builder
	b.WriteString(a.Headline)
	b.WriteString(" ")
	b.WriteString(a.Teaser)
	b.WriteString(" ")
	b.WriteString(a.DirectAnswer)
	b.WriteString(" ")
	b.WriteString(a.Intro)
	for _, sec := range a.NonEmptySections() {
		b.WriteString(" ")
		b.WriteString(sec.Content)
	}
	return b.String()
}

func countWords(s string) int {
	return len(strings.Fields(stripTags(s)))
}
