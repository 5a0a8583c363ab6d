// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog holds the library domain records (books, announcements) and
// the ISBN-keyed import path that merges stock into existing books.
package catalog

import (
	"math"
	"strings"
	"time"
)

// MaxCopies is the largest copy count a 32-bit integer column can hold.
const MaxCopies = math.MaxInt32

// Book is a catalog record keyed naturally by ISBN.
// Invariant: 0 <= AvailableCopies <= TotalCopies.
type Book struct {
	ID              string    `json:"id"`
	ISBN            string    `json:"isbn"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Publisher       string    `json:"publisher,omitempty"`
	Genre           string    `json:"genre,omitempty"`
	PublishedYear   int       `json:"published_year,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	Location        string    `json:"location,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CheckQuantities reports an error if the copy counts violate the invariant.
func (b Book) CheckQuantities() error {
	switch {
	case b.TotalCopies < 0:
		return &ValidationError{Field: "total_copies", Reason: "must not be negative"}
	case b.AvailableCopies < 0:
		return &ValidationError{Field: "available_copies", Reason: "must not be negative"}
	case b.AvailableCopies > b.TotalCopies:
		return &ValidationError{Field: "available_copies", Reason: "exceeds total_copies"}
	case b.TotalCopies > MaxCopies:
		return &ValidationError{Field: "total_copies", Reason: "exceeds maximum"}
	}
	return nil
}

// BookPartition is the single partition the book store is published under.
const BookPartition = "catalog"

// AnnouncementStatus partitions announcements.
type AnnouncementStatus string

const (
	AnnouncementActive    AnnouncementStatus = "active"
	AnnouncementScheduled AnnouncementStatus = "scheduled"
	AnnouncementArchived  AnnouncementStatus = "archived"
)

// String returns the string representation of AnnouncementStatus.
func (s AnnouncementStatus) String() string {
	return string(s)
}

// AnnouncementPartitions lists the partitions in display order.
var AnnouncementPartitions = []string{
	string(AnnouncementActive),
	string(AnnouncementScheduled),
	string(AnnouncementArchived),
}

// ParseAnnouncementStatus maps a partition name back to a status.
func ParseAnnouncementStatus(s string) (AnnouncementStatus, bool) {
	switch AnnouncementStatus(strings.ToLower(strings.TrimSpace(s))) {
	case AnnouncementActive:
		return AnnouncementActive, true
	case AnnouncementScheduled:
		return AnnouncementScheduled, true
	case AnnouncementArchived:
		return AnnouncementArchived, true
	}
	return "", false
}

// Audience selects who an announcement is shown to.
type Audience string

const (
	AudienceAll        Audience = "all"
	AudienceMembers    Audience = "members"
	AudienceLibrarians Audience = "librarians"
)

// Announcement is a notice posted by admins or librarians.
type Announcement struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Body      string             `json:"body"`
	Audience  Audience           `json:"audience"`
	Status    AnnouncementStatus `json:"status"`
	PublishAt time.Time          `json:"publish_at"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
	CreatedBy string             `json:"created_by,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}
