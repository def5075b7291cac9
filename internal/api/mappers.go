package api

import "github.com/Elephantprime/Unhinged-sub000/internal/domain"

func ToViewerInfo(e domain.RosterEntry) ViewerInfo {
	return ViewerInfo{
		ViewerID:   e.ViewerID,
		ViewerName: e.ViewerName,
		WithCamera: e.WithCamera,
		JoinedAt:   e.JoinedAt,
	}
}

func ToViewerInfos(entries []domain.RosterEntry) []ViewerInfo {
	viewers := make([]ViewerInfo, len(entries))
	for i, e := range entries {
		viewers[i] = ToViewerInfo(e)
	}
	return viewers
}

func ToStreamInfo(s domain.Stream, viewerCount int) StreamInfo {
	return StreamInfo{
		ID:              s.ID,
		BroadcasterID:   s.BroadcasterID,
		BroadcasterName: s.BroadcasterName,
		Title:           s.Title,
		StartedAt:       s.StartedAt,
		ViewerCount:     viewerCount,
	}
}
