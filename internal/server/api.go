package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/Elephantprime/Unhinged-sub000/internal/api"
	"github.com/Elephantprime/Unhinged-sub000/internal/domain"
	"github.com/Elephantprime/Unhinged-sub000/internal/store"
)

func (s *Server) setupStreamApi() {
	s.app.Get("/api/streams", func(c *fiber.Ctx) error {
		streams, err := s.registry.ListLive(c.Context(), 0)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Failed to list streams")
		}

		result := make([]api.StreamInfo, 0, len(streams))
		for _, st := range streams {
			result = append(result, api.ToStreamInfo(st, s.viewerCount(c.Context(), st.ID)))
		}
		return c.JSON(result)
	})

	s.app.Get("/api/streams/:id/roster", func(c *fiber.Ctx) error {
		streamID := c.Params("id")
		if _, err := s.registry.Get(c.Context(), streamID); err != nil {
			if errors.Is(err, domain.ErrStreamNotFound) {
				return c.Status(fiber.StatusNotFound).SendString("Stream not found")
			}
			return c.Status(fiber.StatusInternalServerError).SendString("Failed to look up stream")
		}

		entries := s.rosterEntries(c.Context(), streamID)
		return c.JSON(api.RosterMessage{
			StreamID: streamID,
			Count:    len(entries),
			Viewers:  api.ToViewerInfos(entries),
		})
	})
}

func (s *Server) setupAdminApi() {
	s.app.Route("/api/admin", func(router fiber.Router) {
		router.Use(basicauth.New(basicauth.Config{
			Realm: "Forbidden",
			Authorizer: func(user, pass string) bool {
				credential := s.manager.Get().Server.AdminCredential
				return credential != nil && user == "admin" && pass == *credential
			},
		}))

		router.Post("/streams/start", func(c *fiber.Ctx) error {
			var req startStreamRequest
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).SendString("Bad Request")
			}
			if req.BroadcasterID == "" {
				return c.Status(fiber.StatusBadRequest).SendString("broadcasterId is required")
			}

			st := domain.Stream{
				ID:              req.ID,
				BroadcasterID:   req.BroadcasterID,
				BroadcasterName: req.BroadcasterName,
				Title:           req.Title,
				StartedAt:       time.Now().UTC(),
			}
			if st.ID == "" {
				st.ID = uuid.NewString()
			}

			tracks, err := placeholderTracks(st.ID)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("Failed to create tracks")
			}
			if _, err := s.hub.StartBroadcast(c.Context(), st, tracks); err != nil {
				return c.Status(fiber.StatusConflict).SendString(err.Error())
			}
			return c.Status(fiber.StatusCreated).JSON(api.ToStreamInfo(st, 0))
		})

		router.Post("/streams/:id/stop", func(c *fiber.Ctx) error {
			streamID := c.Params("id")
			if err := s.hub.StopBroadcast(c.Context(), streamID); err != nil {
				if errors.Is(err, domain.ErrStreamNotFound) {
					return c.Status(fiber.StatusNotFound).SendString("Stream not found")
				}
				return c.Status(fiber.StatusInternalServerError).SendString("Failed to stop stream")
			}
			return c.Status(fiber.StatusOK).SendString("Ok")
		})
	})
}

type startStreamRequest struct {
	ID              string `json:"id"`
	BroadcasterID   string `json:"broadcasterId"`
	BroadcasterName string `json:"broadcasterName"`
	Title           string `json:"title"`
}

// viewerCount prefers the live roster of a locally hosted broadcast and
// falls back to the store mirror for broadcasts hosted elsewhere.
func (s *Server) viewerCount(ctx context.Context, streamID string) int {
	return len(s.rosterEntries(ctx, streamID))
}

func (s *Server) rosterEntries(ctx context.Context, streamID string) []domain.RosterEntry {
	if b, ok := s.hub.Get(streamID); ok {
		return b.Roster().Entries()
	}

	data, err := s.docs.GetDoc(ctx, "rosters/"+streamID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return nil
	}
	var entries []domain.RosterEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// placeholderTracks builds the local media tracks a server-hosted broadcast
// advertises until the ingest pipeline feeds them samples.
func placeholderTracks(streamID string) ([]webrtc.TrackLocal, error) {
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", "unhinged-"+streamID,
	)
	if err != nil {
		return nil, err
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "unhinged-"+streamID,
	)
	if err != nil {
		return nil, err
	}
	return []webrtc.TrackLocal{video, audio}, nil
}
