package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bochendong/dragon-continue/pkg/compaction"
	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CompactionResponse is a rendered history.
type CompactionResponse struct {
	ObservationChapter int       `json:"observation_chapter"`
	MergeFactor        int       `json:"merge_factor"`
	Text               string    `json:"rendered_text"`
	TextLength         int       `json:"text_length"`
	LayerCount         int       `json:"layer_count"`
	Titles             []string  `json:"generated_titles"`
	CreatedAt          time.Time `json:"created_at"`
	Cached             bool      `json:"cached"`

	// Warning is set when the rendering succeeded but could not be cached.
	Warning string `json:"warning,omitempty"`
}

// ChapterSummary is one row of the chapter listing.
type ChapterSummary struct {
	Number int    `json:"chapter_number"`
	Title  string `json:"title"`
}

func newCompactionResponse(e *mergecache.Entry, cached bool) CompactionResponse {
	return CompactionResponse{
		ObservationChapter: e.Observation,
		MergeFactor:        e.MergeFactor,
		Text:               e.Text,
		TextLength:         e.TextLength,
		LayerCount:         e.LayerCount,
		Titles:             e.Titles,
		CreatedAt:          e.CreatedAt,
		Cached:             cached,
	}
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListChapters lists the canonical chapter sequence.
func (s *Server) handleListChapters(c *fiber.Ctx) error {
	records, err := s.compactor.Chapters(c.Context())
	if err != nil {
		s.logger.Error("failed to list chapters", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list chapters"})
	}

	out := make([]ChapterSummary, 0, len(records))
	for _, r := range records {
		out = append(out, ChapterSummary{Number: r.Number, Title: r.Title})
	}

	return c.JSON(map[string]any{
		"count":    len(out),
		"chapters": out,
	})
}

// handleCompact handles GET /v1/compactions/:chapter?factor=&detail=&force=.
func (s *Server) handleCompact(c *fiber.Ctx) error {
	observation, err := strconv.Atoi(c.Params("chapter"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "chapter must be an integer"})
	}

	req := compaction.Request{
		Observation:  observation,
		MergeFactor:  c.QueryInt("factor", s.config.MergeFactor),
		DetailWindow: c.QueryInt("detail", s.config.DetailWindow),
		Force:        c.QueryBool("force", false),
	}

	resp, err := s.compactor.Summary(c.Context(), req)
	switch {
	case resp.Entry != nil && err != nil:
		s.logger.Warn("serving uncached rendering", "observation", observation, "error", err)
		body := newCompactionResponse(resp.Entry, resp.Hit)
		body.Warning = err.Error()
		return c.JSON(body)

	case errors.Is(err, compaction.ErrInvalidArgument):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})

	case err != nil:
		s.logger.Error("compaction failed", "observation", observation, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "compaction failed"})
	}

	return c.JSON(newCompactionResponse(resp.Entry, resp.Hit))
}

// handleListCache lists every cached rendering without its text.
func (s *Server) handleListCache(c *fiber.Ctx) error {
	entries, err := s.compactor.Entries(c.Context())
	if err != nil {
		s.logger.Error("failed to list cache", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list cache"})
	}

	out := make([]CompactionResponse, 0, len(entries))
	for _, e := range entries {
		r := newCompactionResponse(e, true)
		r.Text = ""
		out = append(out, r)
	}

	return c.JSON(map[string]any{
		"count":   len(out),
		"entries": out,
	})
}

// handleGetCache returns one cached rendering.
func (s *Server) handleGetCache(c *fiber.Ctx) error {
	key, ok := cacheKey(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "chapter and factor must be integers"})
	}

	entry, err := s.compactor.Cached(c.Context(), key)
	if errors.Is(err, mergecache.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "merge summary not found"})
	}
	if err != nil {
		s.logger.Error("failed to load cache entry", "key", key.String(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load cache entry"})
	}

	return c.JSON(newCompactionResponse(entry, true))
}

// handleInvalidateCache drops one cached rendering.
func (s *Server) handleInvalidateCache(c *fiber.Ctx) error {
	key, ok := cacheKey(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "chapter and factor must be integers"})
	}

	if err := s.compactor.Invalidate(c.Context(), key); err != nil {
		s.logger.Error("failed to invalidate cache entry", "key", key.String(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to invalidate cache entry"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func cacheKey(c *fiber.Ctx) (mergecache.Key, bool) {
	observation, err := strconv.Atoi(c.Params("chapter"))
	if err != nil {
		return mergecache.Key{}, false
	}
	factor, err := strconv.Atoi(c.Params("factor"))
	if err != nil {
		return mergecache.Key{}, false
	}
	return mergecache.Key{Observation: observation, MergeFactor: factor}, true
}
