// SPDX-License-Identifier: MIT

package api

import (
	"time"

	"github.com/Sharnabh/LMS-sub002/internal/refresh"
)

type stateView struct {
	Refreshing          bool      `json:"refreshing"`
	Loading             bool      `json:"loading"`
	LastError           string    `json:"last_error,omitempty"`
	LastAttempt         time.Time `json:"last_attempt,omitzero"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	FromCache           bool      `json:"from_cache"`
}

func newStateView(st refresh.State) stateView {
	v := stateView{
		Refreshing:          st.Refreshing,
		Loading:             st.Loading,
		LastAttempt:         st.LastAttempt,
		LastSuccess:         st.LastSuccess,
		ConsecutiveFailures: st.ConsecutiveFailures,
		FromCache:           st.FromCache,
	}
	if st.LastError != nil {
		v.LastError = st.LastError.Error()
	}
	return v
}

type snapshotMeta struct {
	Generation uint64    `json:"generation"`
	FetchedAt  time.Time `json:"fetched_at,omitzero"`
}

func metaOf[T any](snap *refresh.Snapshot[T]) snapshotMeta {
	if snap == nil {
		return snapshotMeta{}
	}
	return snapshotMeta{Generation: snap.Generation, FetchedAt: snap.FetchedAt}
}
