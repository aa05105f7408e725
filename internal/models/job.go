package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a Job (spec.md §3.1, §3.2).
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusTimeout   JobStatus = "timeout"
)

// IsTerminal reports whether the status is a terminal lifecycle state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled, JobStatusTimeout:
		return true
	default:
		return false
	}
}

// JobConfig is the keyword + company context + options a job is
// submitted with (spec.md §2, §6 POST /write, /write-async).
type JobConfig struct {
	Keyword                    string            `json:"keyword" validate:"required"`
	CompanyURL                 string            `json:"company_url" validate:"required,url"`
	Language                   string            `json:"language,omitempty"`
	Country                    string            `json:"country,omitempty"`
	WordCount                  int               `json:"word_count,omitempty"`
	Instructions               string            `json:"instructions,omitempty"`
	ContentGenerationInstruction string          `json:"content_generation_instruction,omitempty"`
	ReviewPrompts              []string          `json:"review_prompts,omitempty"`
	InternalLinkHints          []string          `json:"internal_link_hints,omitempty"`
	SitemapURLs                []string          `json:"sitemap_urls,omitempty"`
	CompanyName                string            `json:"company_name,omitempty"`
	CompanyCompetitors         []string          `json:"company_competitors,omitempty"`
	UseGraphics                bool              `json:"use_graphics,omitempty"`
	CitationsDisabled          bool              `json:"citations_disabled,omitempty"`
	Priority                   int               `json:"priority,omitempty" validate:"omitempty,oneof=1 2 3"`
	MaxDurationMinutes         int               `json:"max_duration_minutes,omitempty"`
	CallbackURL                string            `json:"callback_url,omitempty" validate:"omitempty,url"`
	Overrides                  map[string]string `json:"overrides,omitempty"`
}

// Normalize applies the stage-0 defaulting rules (spec.md §4.4 stage 0):
// default word count, default priority, default max duration, default
// language, and a default content_generation_instruction when absent.
func (c *JobConfig) Normalize() {
	if c.WordCount <= 0 {
		c.WordCount = 1500
	}
	if c.Priority == 0 {
		c.Priority = 2
	}
	if c.MaxDurationMinutes <= 0 {
		c.MaxDurationMinutes = 30
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.ContentGenerationInstruction == "" {
		c.ContentGenerationInstruction = fmt.Sprintf(
			"Write a comprehensive, well-researched article of approximately %d words targeting the keyword %q.",
			c.WordCount, c.Keyword)
	}
}

// MissingFields validates the two always-required fields and returns
// every missing one, so stage 0's fatal error can list all of them at
// once (spec.md §4.4 stage 0).
func (c *JobConfig) MissingFields() []string {
	var missing []string
	if c.Keyword == "" {
		missing = append(missing, "primary_keyword")
	}
	if c.CompanyURL == "" {
		missing = append(missing, "company_url")
	}
	return missing
}

// Job is the persistent record tracked by the job manager (spec.md §3.1).
type Job struct {
	ID               string     `json:"id"`
	Status           JobStatus  `json:"status"`
	Priority         int        `json:"priority"`
	Config           JobConfig  `json:"config"`
	Result           *JobResult `json:"result,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DurationSeconds  float64    `json:"duration_seconds,omitempty"`
	CurrentStage     string     `json:"current_stage,omitempty"`
	ProgressPercent  int        `json:"progress_percent"`
	StagesCompleted  int        `json:"stages_completed"`
	TotalStages      int        `json:"total_stages"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	RetryCount       int        `json:"retry_count"`
	CallbackURL      string     `json:"callback_url,omitempty"`
}

// JobResult is the final persisted outcome of a completed job.
type JobResult struct {
	FinalArticle   map[string]any `json:"final_article,omitempty"`
	StorageResult  map[string]any `json:"storage_result,omitempty"`
	QualityReport  map[string]any `json:"quality_report,omitempty"`
}

// NewJob creates a pending job with a fresh UUID.
func NewJob(config JobConfig) *Job {
	config.Normalize()
	return &Job{
		ID:          uuid.New().String(),
		Status:      JobStatusPending,
		Priority:    config.Priority,
		Config:      config,
		CreatedAt:   time.Now(),
		TotalStages: 13, // stages 0..12
		CallbackURL: config.CallbackURL,
	}
}

// MaxDuration returns the job's configured max duration as a Duration.
func (j *Job) MaxDuration() time.Duration {
	if j.Config.MaxDurationMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(j.Config.MaxDurationMinutes) * time.Minute
}

// EstimatedRemaining implements spec.md §4.5 progress estimation:
// remaining = elapsed * (100 - progress) / progress.
func (j *Job) EstimatedRemaining(now time.Time) (time.Duration, bool) {
	if j.Status != JobStatusRunning || j.StartedAt == nil || j.ProgressPercent <= 0 {
		return 0, false
	}
	elapsed := now.Sub(*j.StartedAt)
	remaining := elapsed * time.Duration(100-j.ProgressPercent) / time.Duration(j.ProgressPercent)
	return remaining, true
}

// ToJSON serializes the job for queue/database persistence.
func (j *Job) ToJSON() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	return data, nil
}

// JobFromJSON deserializes a job previously persisted with ToJSON.
func JobFromJSON(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &j, nil
}

// TruncatedError truncates an error message to the 1000-char limit
// spec.md §3.1/§7 requires for persisted error_message fields.
func TruncatedError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	const limit = 1000
	if len(msg) <= limit {
		return msg
	}
	return msg[:limit]
}
