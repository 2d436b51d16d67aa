package domain

import "time"

// Post is the local snapshot of host content needed for translation.
type Post struct {
	ID         int64
	TopicID    int64
	PostNumber int
	Raw        string
	Cooked     string
	TopicTitle string
	Hidden     bool
	DeletedAt  *time.Time
	UpdatedAt  time.Time
}

// Translatable reports whether the post may be sent for translation.
func (p Post) Translatable() bool {
	return p.DeletedAt == nil && !p.Hidden
}

// IsFirstInTopic is true for the opening post of a topic.
func (p Post) IsFirstInTopic() bool {
	return p.PostNumber == 1
}

// UserLanguagePreference stores the reading language chosen by a user.
type UserLanguagePreference struct {
	UserID    int64
	Language  *string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultPreference is returned for users who never stored a preference.
func DefaultPreference(userID int64) UserLanguagePreference {
	return UserLanguagePreference{UserID: userID, Enabled: true}
}

// LanguageOrEmpty dereferences the optional language.
func (p UserLanguagePreference) LanguageOrEmpty() string {
	if p.Language == nil {
		return ""
	}
	return *p.Language
}
