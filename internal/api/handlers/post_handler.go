package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/instaflow/internal/queue"
	"github.com/maheshrc27/instaflow/internal/service"
	"github.com/maheshrc27/instaflow/internal/transfer"
)

type PostHandler struct {
	s         service.PostService
	client    queue.Enqueuer
	inspector queue.TaskInspector
}

func NewPostHandler(service service.PostService, client queue.Enqueuer, inspector queue.TaskInspector) *PostHandler {
	return &PostHandler{s: service, client: client, inspector: inspector}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	post, delay, err := h.s.CreatePost(c.Context(), userID, &pc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	payload := queue.SchedulePostPayload{PostID: post.ID, UserID: userID}
	if err := queue.EnqueuePost(c.Context(), h.client, payload, delay); err != nil {
		// The stale post job picks the post up once its time has passed.
		slog.Error("error scheduling post", "post_id", post.ID, "error", err)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message": "Post saved, scheduling is delayed",
			"post":    post,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Post scheduled successfully",
		"post":    post,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Query("id")

	if postID != "" {
		post, err := h.s.PostInfo(c.Context(), postID, userID)
		if err != nil {
			if errors.Is(err, service.ErrPostNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Post not found",
				})
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to get post",
			})
		}

		history, err := h.s.History(c.Context(), postID, userID)
		if err != nil {
			slog.Error("error getting publish history", "post_id", postID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unable to get post history",
			})
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"post":    post,
			"history": history,
		})
	}

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) PostStats(c *fiber.Ctx) error {
	userID := GetUserID(c)

	stats, err := h.s.Stats(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to get post stats",
		})
	}

	return c.Status(fiber.StatusOK).JSON(stats)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Query("id")

	err := h.s.Remove(c.Context(), userID, postID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to remove post",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) RetryPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Query("id")

	post, err := h.s.Retry(c.Context(), userID, postID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	payload := queue.SchedulePostPayload{PostID: post.ID, UserID: userID}
	err = queue.RequeuePost(c.Context(), h.client, h.inspector, payload, 0)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Post is already queued",
		})
	}
	if err != nil {
		slog.Error("error requeueing post", "post_id", post.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error scheduling post",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post queued for publishing",
	})
}
