package models

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change is not part of the
// document lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// Status is the lifecycle marker of a stored document.
type Status string

// Article statuses.
const (
	ArticlePendingReview Status = "pending_review"
	ArticleApproved      Status = "approved"
	ArticleRejected      Status = "rejected"
)

// Report statuses.
const (
	ReportPendingGraphics Status = "pending_graphics"
	ReportPendingApproval Status = "pending_approval"
	ReportApproved        Status = "approved"
	ReportRejected        Status = "rejected"
)

// Approved content statuses.
const (
	ContentApproved Status = "approved"
	ContentPosted   Status = "posted"
)

// Kind names a document collection.
type Kind string

const (
	KindArticle Kind = "article"
	KindReport  Kind = "report"
	KindContent Kind = "approved_content"
)

var transitions = map[Kind]map[Status][]Status{
	KindArticle: {
		ArticlePendingReview: {ArticleApproved, ArticleRejected},
	},
	KindReport: {
		ReportPendingGraphics: {ReportPendingApproval},
		ReportPendingApproval: {ReportApproved, ReportRejected},
	},
	KindContent: {
		ContentApproved: {ContentPosted},
	},
}

// initial lists the statuses a new document may be created in.
var initial = map[Kind][]Status{
	// Scraping decides the first status inline: rejected by verification,
	// promoted automatically, or queued for review.
	KindArticle: {ArticlePendingReview, ArticleApproved, ArticleRejected},
	KindReport:  {ReportPendingGraphics},
	KindContent: {ContentApproved},
}

// CanTransition reports whether kind may move from one status to another.
// Staying in the same status is how a document is edited without advancing;
// it is allowed everywhere except in the rejected status.
func CanTransition(kind Kind, from, to Status) bool {
	if from == to {
		return from != ArticleRejected
	}
	for _, next := range transitions[kind][from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition is CanTransition returning a wrapped ErrInvalidTransition.
func CheckTransition(kind Kind, from, to Status) error {
	if !CanTransition(kind, from, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, kind, from, to)
	}
	return nil
}

// ValidInitial reports whether a new document of kind may start in status.
func ValidInitial(kind Kind, status Status) bool {
	for _, s := range initial[kind] {
		if s == status {
			return true
		}
	}
	return false
}
