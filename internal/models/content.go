package models

import (
	"time"
)

const (
	ContentStatusPublished = "published"
	ContentStatusError     = "error"

	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// ContentFields are the draft columns shared by news and review items.
type ContentFields struct {
	Title             string     `gorm:"type:text" json:"title"`
	DraftTitle        *string    `gorm:"type:text" json:"draft_title,omitempty"`
	DraftLongread     *string    `gorm:"type:text" json:"draft_longread,omitempty"`
	DraftLongreadSite *string    `gorm:"type:text" json:"draft_longread_site,omitempty"`
	DraftAnnounce     *string    `gorm:"type:text" json:"draft_announce,omitempty"`
	DraftAnnounceTG   *string    `gorm:"column:draft_announce_tg;type:text" json:"draft_announce_tg,omitempty"`
	DraftAnnounceVK   *string    `gorm:"column:draft_announce_vk;type:text" json:"draft_announce_vk,omitempty"`
	DraftAnnounceOK   *string    `gorm:"column:draft_announce_ok;type:text" json:"draft_announce_ok,omitempty"`
	DraftAnnounceFB   *string    `gorm:"column:draft_announce_fb;type:text" json:"draft_announce_fb,omitempty"`
	DraftAnnounceThreads   *string    `gorm:"column:draft_announce_threads;type:text" json:"draft_announce_threads,omitempty"`
	DraftAnnounceX    *string    `gorm:"column:draft_announce_x;type:text" json:"draft_announce_x,omitempty"`
	DraftAnnounceBsky *string    `gorm:"column:draft_announce_bsky;type:text" json:"draft_announce_bsky,omitempty"`
	DraftAnnounceSite *string    `gorm:"column:draft_announce_site;type:text" json:"draft_announce_site,omitempty"`
	DraftImageURL     *string    `gorm:"type:text" json:"draft_image_url,omitempty"`
	ImageURL          *string    `gorm:"type:text" json:"image_url,omitempty"`
	DraftImageFileID  *string    `gorm:"type:text" json:"draft_image_file_id,omitempty"`
	PublishedURL      *string    `gorm:"type:text" json:"published_url,omitempty"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
	Status            string     `gorm:"size:50;index" json:"status"`
	LastError         *string    `gorm:"type:text" json:"last_error,omitempty"`
}

type NewsItem struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`
	ContentFields
	RSSSummary        *string    `gorm:"column:rss_summary;type:text" json:"rss_summary,omitempty"`
	Approve1Decision  *string    `gorm:"column:approve1_decision;size:20" json:"approve1_decision,omitempty"`
	Approve1DecidedAt *time.Time `gorm:"column:approve1_decided_at" json:"approve1_decided_at,omitempty"`
	Approve1DecidedBy *string    `gorm:"column:approve1_decided_by;size:100" json:"approve1_decided_by,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReviewItem is an editorial review built from a seed title.
type ReviewItem struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	TitleSeed string `gorm:"type:text" json:"title_seed"`
	ContentFields
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ContentItem is the read projection the processor works with.
type ContentItem struct {
	Ref ContentRef
	ContentFields
	RSSSummary *string
	Approved   bool
}

func (n NewsItem) Item() ContentItem {
	return ContentItem{
		Ref:           NewsRef(n.ID),
		ContentFields: n.ContentFields,
		RSSSummary:    n.RSSSummary,
		Approved:      n.Approve1Decision != nil && *n.Approve1Decision == DecisionApproved,
	}
}

func (r ReviewItem) Item() ContentItem {
	fields := r.ContentFields
	if fields.Title == "" {
		fields.Title = r.TitleSeed
	}
	return ContentItem{Ref: ReviewRef(r.ID), ContentFields: fields, Approved: true}
}
