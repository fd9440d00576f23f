package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	AnonymousUsername = "Anonymous User"

	MaxAxisScore  = 10
	MaxTotalScore = 20

	ExcerptRunes  = 80
	ExcerptSuffix = "..."
)

// Worthy is the categorical verdict derived from a rating's total.
type Worthy string

const (
	WorthyYes   Worthy = "YES"
	WorthyMaybe Worthy = "MAYBE"
	WorthyNo    Worthy = "NO"
)

// WorthyFor maps a total score onto the verdict buckets: 16-20 YES, 12-15 MAYBE, below 12 NO.
func WorthyFor(total int) Worthy {
	switch {
	case total >= 16:
		return WorthyYes
	case total >= 12:
		return WorthyMaybe
	default:
		return WorthyNo
	}
}

// ParseWorthy accepts exactly YES, MAYBE or NO.
func ParseWorthy(s string) (Worthy, bool) {
	switch w := Worthy(s); w {
	case WorthyYes, WorthyMaybe, WorthyNo:
		return w, true
	default:
		return "", false
	}
}

// Rating is one scored story submission. Stored in the leaderboard keyed by UserID.
type Rating struct {
	UserID          string `db:"user_id" json:"userId"`
	Username        string `db:"username" json:"username"`
	StoryExcerpt    string `db:"story_excerpt" json:"storyExcerpt"`
	Authenticity    int    `db:"authenticity" json:"authenticity"`
	EmotionalImpact int    `db:"emotional_impact" json:"emotionalImpact"`
	Total           int    `db:"total" json:"total"`
	Worthy          Worthy `db:"worthy" json:"worthy"`
	Timestamp       int64  `db:"submitted_at" json:"timestamp"`
}

// LeaderboardEntry is a Rating with its rank in a particular read. Rank is never stored.
type LeaderboardEntry struct {
	Rating
	Rank int `json:"rank"`
}

// RatingInput is an unvalidated submission; nil pointers mark absent fields.
type RatingInput struct {
	UserID          string `json:"userId"`
	Username        string `json:"username"`
	StoryExcerpt    string `json:"storyExcerpt"`
	Authenticity    *int   `json:"authenticity"`
	EmotionalImpact *int   `json:"emotionalImpact"`
	Total           *int   `json:"total"`
	Worthy          Worthy `json:"worthy"`
	Timestamp       *int64 `json:"timestamp"`
}

// Input converts a complete Rating back into a submission.
func (r Rating) Input() RatingInput {
	a, e, t, ts := r.Authenticity, r.EmotionalImpact, r.Total, r.Timestamp
	return RatingInput{
		UserID:          r.UserID,
		Username:        r.Username,
		StoryExcerpt:    r.StoryExcerpt,
		Authenticity:    &a,
		EmotionalImpact: &e,
		Total:           &t,
		Worthy:          r.Worthy,
		Timestamp:       &ts,
	}
}

// Session is one user's timed conversation attempt.
type Session struct {
	ID          string  `db:"id" json:"id"`
	Username    string  `db:"username" json:"username"`
	StartTime   int64   `db:"start_time" json:"startTime"`
	EndTime     *int64  `db:"end_time" json:"endTime,omitempty"`
	IsCompleted bool    `db:"is_completed" json:"isCompleted"`
	Rating      *Rating `db:"rating" json:"rating,omitempty"`
}

// Clone returns a deep copy so stored records never alias caller memory.
func (s Session) Clone() Session {
	out := s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	if s.Rating != nil {
		r := *s.Rating
		out.Rating = &r
	}
	return out
}

// SessionPatch is a partial update; nil fields are left untouched.
type SessionPatch struct {
	Username    *string `json:"username,omitempty"`
	IsCompleted *bool   `json:"isCompleted,omitempty"`
	EndTime     *int64  `json:"endTime,omitempty"`
	Rating      *Rating `json:"rating,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SessionPatch) Empty() bool {
	return p.Username == nil && p.IsCompleted == nil && p.EndTime == nil && p.Rating == nil
}

// Apply merges p onto s in place.
func (p SessionPatch) Apply(s *Session) {
	if p.Username != nil {
		s.Username = *p.Username
	}
	if p.IsCompleted != nil {
		s.IsCompleted = *p.IsCompleted
	}
	if p.EndTime != nil {
		end := *p.EndTime
		s.EndTime = &end
	}
	if p.Rating != nil {
		r := *p.Rating
		s.Rating = &r
	}
}

// Message is one transcript turn exchanged with the completion service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Excerpt keeps the first ExcerptRunes runes of story and marks truncation.
func Excerpt(story string) string {
	story = strings.TrimSpace(story)
	if utf8.RuneCountInString(story) <= ExcerptRunes {
		return story
	}
	runes := []rune(story)
	return string(runes[:ExcerptRunes]) + ExcerptSuffix
}

// NowMillis is the timestamp unit used for every stored time.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
