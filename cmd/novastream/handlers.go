package main

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kaizorxxx/novastream/pkg/catalog"
	"github.com/kaizorxxx/novastream/pkg/stream"
	"github.com/kaizorxxx/novastream/pkg/synthetic"
)

const statusSuccess = "success"

func createHealthHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendString("OK")
	}
}

func createHomeHandler(client *catalog.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := pageParam(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid page parameter")
		}
		return c.JSON(fiber.Map{"status": statusSuccess, "data": client.Home(c.Context(), page)})
	}
}

func createSearchHandler(client *catalog.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return c.Status(fiber.StatusBadRequest).SendString("Missing query parameter \"q\"")
		}
		page, err := pageParam(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid page parameter")
		}
		return c.JSON(fiber.Map{"status": statusSuccess, "data": client.Search(c.Context(), query, page)})
	}
}

func createBatchHandler(client *catalog.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := pageParam(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid page parameter")
		}
		return c.JSON(fiber.Map{"status": statusSuccess, "data": client.Batch(c.Context(), page)})
	}
}

func createScheduleHandler(client *catalog.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": statusSuccess, "data": client.Schedule(c.Context())})
	}
}

func createDetailHandler(client *catalog.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		detail, err := client.Detail(c.Context(), c.Params("slug"))
		if err != nil {
			// The only error the client returns is the empty slug one
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}
		return c.JSON(fiber.Map{"status": statusSuccess, "data": detail})
	}
}

// createWatchHandler resolves stream sources for an episode. When resolution
// misses on all network paths the response carries synthetic placeholder
// sources, flagged as such, so a player always has something to load.
func createWatchHandler(resolver *stream.Resolver, generator synthetic.Generator, qualityMarker string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		episodeSlug := c.Params("slug")
		if episodeSlug == "" {
			return c.Status(fiber.StatusBadRequest).SendString("Missing episode slug")
		}

		result, ok := resolver.Resolve(c.Context(), episodeSlug)
		synthesized := false
		if !ok {
			logger.Debug("Serving synthetic stream sources", zap.String("episodeSlug", episodeSlug))
			result = stream.Result{
				Title:     catalog.TitleFromSlug(episodeSlug),
				Sources:   generator.StreamSources(),
				Downloads: generator.DownloadLinks(),
			}
			synthesized = true
		}
		preferred, _ := stream.Preferred(result.Sources, qualityMarker)

		return c.JSON(fiber.Map{
			"status": statusSuccess,
			"data": fiber.Map{
				"title":     result.Title,
				"sources":   result.Sources,
				"downloads": result.Downloads,
				"preferred": preferred,
				"synthetic": synthesized,
			},
		})
	}
}

// createSelectEpisodeHandler starts (or replaces) playback of an episode in
// the caller's session. The episode's series playlist is loaded first so
// auto-advance knows what comes next.
func createSelectEpisodeHandler(client *catalog.Client, sessions *sessionManager, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		episodeSlug := c.Params("slug")
		controller, err := sessions.get(c.Locals("sessionID").(string))
		if err != nil {
			logger.Error("Couldn't create playback controller", zap.Error(err))
			return c.SendStatus(fiber.StatusInternalServerError)
		}

		if seriesSlug := c.Query("series"); seriesSlug != "" {
			detail, err := client.Detail(c.Context(), seriesSlug)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).SendString(err.Error())
			}
			controller.LoadPlaylist(detail.Episodes)
		}

		// The resolution runs on after the request (the client polls the
		// snapshot), so it must not use fiber's request context: fasthttp
		// recycles that as soon as this handler returns.
		gate := controller.SelectEpisode(context.Background(), episodeSlug)
		return c.JSON(fiber.Map{
			"status":   statusSuccess,
			"gate":     gate,
			"snapshot": controller.Snapshot(),
		})
	}
}

// createSessionEventHandler forwards player events to the session's state
// machine. Unknown event names are a client error.
func createSessionEventHandler(sessions *sessionManager, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		controller, err := sessions.get(c.Locals("sessionID").(string))
		if err != nil {
			logger.Error("Couldn't create playback controller", zap.Error(err))
			return c.SendStatus(fiber.StatusInternalServerError)
		}

		response := fiber.Map{"status": statusSuccess}
		switch event := c.Params("event"); event {
		case "pause":
			response["gate"] = controller.Pause()
		case "resume":
			response["resumed"] = controller.Resume()
		case "dismissPauseGate":
			controller.DismissPauseGate()
		case "mediaEnded":
			controller.OnMediaEnded()
		case "mediaErrored":
			controller.OnMediaErrored()
		case "advanceNow":
			controller.AdvanceNow()
		case "cancelAutoAdvance":
			controller.CancelAutoAdvance()
		case "selectSource":
			var source stream.Source
			if err := c.BodyParser(&source); err != nil {
				return c.Status(fiber.StatusBadRequest).SendString("Invalid source in request body")
			}
			controller.SelectSource(source)
		default:
			return c.Status(fiber.StatusBadRequest).SendString("Unknown event: " + event)
		}

		response["snapshot"] = controller.Snapshot()
		return c.JSON(response)
	}
}

func createSessionSnapshotHandler(sessions *sessionManager, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		controller, err := sessions.get(c.Locals("sessionID").(string))
		if err != nil {
			logger.Error("Couldn't create playback controller", zap.Error(err))
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{
			"status":   statusSuccess,
			"snapshot": controller.Snapshot(),
			"flags":    controller.Flags(),
		})
	}
}

func pageParam(c *fiber.Ctx) (int, error) {
	pageString := c.Query("page", "1")
	page, err := strconv.Atoi(pageString)
	if err != nil || page < 1 {
		return 0, fiber.ErrBadRequest
	}
	return page, nil
}
