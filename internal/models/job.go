package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobPublished  JobStatus = "published"
	JobError      JobStatus = "error"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobPublished || s == JobCancelled
}

// Movable reports whether the job may be rescheduled or cancelled.
func (s JobStatus) Movable() bool {
	return s == JobQueued || s == JobError
}

type ContentKind string

const (
	ContentNews   ContentKind = "news"
	ContentReview ContentKind = "review"
)

// ContentRef identifies exactly one news or review item.
type ContentRef struct {
	Kind ContentKind `json:"kind"`
	ID   string      `json:"id"`
}

func NewsRef(id string) ContentRef   { return ContentRef{Kind: ContentNews, ID: id} }
func ReviewRef(id string) ContentRef { return ContentRef{Kind: ContentReview, ID: id} }

func (r ContentRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// Column returns the publish_jobs column holding this reference.
func (r ContentRef) Column() string {
	if r.Kind == ContentReview {
		return "review_id"
	}
	return "news_id"
}

type PublishJob struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	NewsID            *string    `gorm:"size:36;index;check:chk_publish_jobs_content,(news_id IS NULL) <> (review_id IS NULL)" json:"news_id,omitempty"`
	ReviewID          *string    `gorm:"size:36;index" json:"review_id,omitempty"`
	Platform          string     `gorm:"size:50;not null" json:"platform"`
	Status            JobStatus  `gorm:"size:20;not null;default:'queued';index:idx_publish_jobs_due,priority:1" json:"status"`
	PublishAt         time.Time  `gorm:"not null;index:idx_publish_jobs_due,priority:2" json:"publish_at"`
	RetryCount        int        `gorm:"not null;default:0" json:"retry_count"`
	ExternalID        *string    `gorm:"size:255" json:"external_id,omitempty"`
	PublishedURL      *string    `gorm:"type:text" json:"published_url,omitempty"`
	ErrorMessage      *string    `gorm:"type:text" json:"error_message,omitempty"`
	PublishedAtActual *time.Time `json:"published_at_actual,omitempty"`
	SocialContent     *string    `gorm:"type:text" json:"social_content,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *PublishJob) BeforeCreate(*gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// Ref returns the content the job publishes.
func (j PublishJob) Ref() ContentRef {
	if j.ReviewID != nil {
		return ReviewRef(*j.ReviewID)
	}
	if j.NewsID != nil {
		return NewsRef(*j.NewsID)
	}
	return ContentRef{}
}

// SetRef stores ref in the matching column and clears the other.
func (j *PublishJob) SetRef(ref ContentRef) {
	id := ref.ID
	j.NewsID, j.ReviewID = nil, nil
	if ref.Kind == ContentReview {
		j.ReviewID = &id
	} else {
		j.NewsID = &id
	}
}
