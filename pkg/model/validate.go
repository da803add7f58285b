package model

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxTitleLen     = 200
	MaxContentLen   = 5000
	MaxTagLen       = 20
	MaxCommentLen   = 1000
	MaxAttachments  = 5
	MinPasswordLen  = 6
	MaxUsernameLen  = 30
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func ValidPostType(t PostType) bool {
	return t == PostTypeNote || t == PostTypeJob
}

func ValidCategory(c Category) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// ValidateRegistration returns one message per invalid field, empty when the
// input is acceptable.
func ValidateRegistration(username, email, password, fullName string) []string {
	var errs []string
	username = strings.TrimSpace(username)
	if username == "" {
		errs = append(errs, "username is required")
	} else if len(username) > MaxUsernameLen || !usernameRe.MatchString(username) {
		errs = append(errs, "username must contain only letters, digits, '_', '.' or '-'")
	}
	if !emailRe.MatchString(email) {
		errs = append(errs, "a valid email is required")
	}
	if len(password) < MinPasswordLen {
		errs = append(errs, fmt.Sprintf("password must be at least %d characters", MinPasswordLen))
	}
	if strings.TrimSpace(fullName) == "" {
		errs = append(errs, "full name is required")
	}
	return errs
}

func ValidatePost(p Post) []string {
	var errs []string
	if !ValidPostType(p.Type) {
		errs = append(errs, "type must be \"note\" or \"job\"")
	}
	if strings.TrimSpace(p.Title) == "" {
		errs = append(errs, "title is required")
	} else if len(p.Title) > MaxTitleLen {
		errs = append(errs, fmt.Sprintf("title must not exceed %d characters", MaxTitleLen))
	}
	if strings.TrimSpace(p.Content) == "" {
		errs = append(errs, "content is required")
	} else if len(p.Content) > MaxContentLen {
		errs = append(errs, fmt.Sprintf("content must not exceed %d characters", MaxContentLen))
	}
	if !ValidCategory(p.Category) {
		errs = append(errs, "unknown category")
	}
	for _, tag := range p.Tags {
		if len(tag) > MaxTagLen {
			errs = append(errs, fmt.Sprintf("tag %q exceeds %d characters", tag, MaxTagLen))
		}
	}
	if len(p.Attachments) > MaxAttachments {
		errs = append(errs, fmt.Sprintf("at most %d attachments are allowed", MaxAttachments))
	}
	return errs
}

func ValidateComment(content string) []string {
	var errs []string
	if strings.TrimSpace(content) == "" {
		errs = append(errs, "content is required")
	} else if len(content) > MaxCommentLen {
		errs = append(errs, fmt.Sprintf("content must not exceed %d characters", MaxCommentLen))
	}
	return errs
}

// ParseTags splits a comma-separated tag string, trimming whitespace and
// dropping empties and duplicates. Order of first appearance is preserved.
func ParseTags(s string) []string {
	var tags []string
	seen := map[string]bool{}
	for _, raw := range strings.Split(s, ",") {
		tag := strings.TrimSpace(raw)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
