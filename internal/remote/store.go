// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package remote talks to the relational store that holds books and
// announcements. SQLiteStore embeds the store locally; RESTStore talks to a
// hosted PostgREST API.
package remote

import (
	"context"
	"fmt"

	"github.com/Sharnabh/LMS-sub002/internal/catalog"
)

// Store is the remote store as seen by loaders and the upsert coordinator.
type Store interface {
	catalog.BookWriter
	Ping(ctx context.Context) error
	FetchAnnouncements(ctx context.Context, status catalog.AnnouncementStatus) ([]catalog.Announcement, error)
	FetchBooks(ctx context.Context) ([]catalog.Book, error)
	Close() error
}

// AnnouncementSource adapts a Store to a refresh source partitioned by
// announcement status.
type AnnouncementSource struct {
	Store Store
}

func (s AnnouncementSource) Ping(ctx context.Context) error { return s.Store.Ping(ctx) }

func (s AnnouncementSource) Partitions() []string {
	return append([]string(nil), catalog.AnnouncementPartitions...)
}

func (s AnnouncementSource) Fetch(ctx context.Context, partition string) ([]catalog.Announcement, error) {
	status, ok := catalog.ParseAnnouncementStatus(partition)
	if !ok {
		return nil, fmt.Errorf("unknown announcement partition %q", partition)
	}
	return s.Store.FetchAnnouncements(ctx, status)
}

// BookSource adapts a Store to a single-partition refresh source.
type BookSource struct {
	Store Store
}

func (s BookSource) Ping(ctx context.Context) error { return s.Store.Ping(ctx) }

func (s BookSource) Partitions() []string { return []string{catalog.BookPartition} }

func (s BookSource) Fetch(ctx context.Context, partition string) ([]catalog.Book, error) {
	if partition != catalog.BookPartition {
		return nil, fmt.Errorf("unknown book partition %q", partition)
	}
	return s.Store.FetchBooks(ctx)
}
