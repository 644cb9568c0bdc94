package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"beaconly/internal/config"
	"beaconly/internal/events"
	"beaconly/internal/websites"
)

const errInvalidRequest = "Invalid request"

// eventPayload is the wire shape of one tracked event.
type eventPayload struct {
	TrackingCode string                 `json:"trackingCode"`
	EventType    string                 `json:"eventType"`
	URL          string                 `json:"url"`
	Referrer     string                 `json:"referrer"`
	SessionID    string                 `json:"sessionId"`
	VisitorID    string                 `json:"visitorId"`
	Properties   map[string]interface{} `json:"properties"`
	Timestamp    *time.Time             `json:"timestamp"`
}

type batchPayload struct {
	Events []eventPayload `json:"events"`
}

func (p *eventPayload) toInput(ipAddress, userAgent string) *events.RecordEventInput {
	return &events.RecordEventInput{
		TrackingCode: p.TrackingCode,
		EventType:    p.EventType,
		URL:          p.URL,
		Referrer:     p.Referrer,
		SessionID:    p.SessionID,
		VisitorID:    p.VisitorID,
		Properties:   propertiesFromMap(p.Properties),
		Timestamp:    p.Timestamp,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
	}
}

type eventEcho struct {
	ID        uint      `json:"id"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

func echoEvent(e *events.Event) eventEcho {
	return eventEcho{ID: e.ID, EventType: e.EventType, Timestamp: e.Timestamp}
}

// CreateEventPublicAPIHandler records a single event: 201 on success, 400 on
// validation failure, 404 for unknown tracking codes.
func CreateEventPublicAPIHandler(ctx *cartridge.Context) error {
	var payload eventPayload
	if err := ctx.BodyParser(&payload); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   events.ErrCodeValidation,
			"message": errInvalidRequest,
		})
	}

	input := payload.toInput(getClientIP(ctx.Ctx), requestUserAgent(ctx))
	event, err := events.Record(ctx.DBManager.GetConnection(), ctx.Logger, input)
	if err != nil {
		return respondRecordError(ctx, err)
	}
	if event == nil {
		// Bot traffic is acknowledged but never stored.
		return ctx.Status(http.StatusAccepted).JSON(fiber.Map{"success": true})
	}

	ctx.Logger.Info("Recorded event",
		slog.Uint64("event_id", uint64(event.ID)),
		slog.String("event_type", event.EventType))
	return ctx.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"event":   echoEvent(event),
	})
}

// CreateEventBatchAPIHandler records up to the configured batch size of
// events, each independently: 201 when every item lands, 207 on a partial
// outcome, 400 when the envelope itself is unusable.
func CreateEventBatchAPIHandler(ctx *cartridge.Context) error {
	var payload batchPayload
	if err := ctx.BodyParser(&payload); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   events.ErrCodeValidation,
			"message": errInvalidRequest,
		})
	}

	maxBatch := config.GetConfig().MaxBatchSize
	if len(payload.Events) == 0 || len(payload.Events) > maxBatch {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   events.ErrCodeValidation,
			"message": "events must contain between 1 and " + strconv.Itoa(maxBatch) + " items",
		})
	}

	ipAddress := getClientIP(ctx.Ctx)
	userAgent := requestUserAgent(ctx)
	inputs := make([]*events.RecordEventInput, len(payload.Events))
	for i := range payload.Events {
		inputs[i] = payload.Events[i].toInput(ipAddress, userAgent)
	}

	result, err := events.RecordBatch(ctx.DBManager.GetConnection(), ctx.Logger, inputs)
	if err != nil {
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   events.ErrCodeInternal,
			"message": "Failed to record events",
		})
	}

	echoes := make([]eventEcho, len(result.Created))
	for i, e := range result.Created {
		echoes[i] = echoEvent(e)
	}

	response := fiber.Map{
		"success":       len(result.Errors) == 0,
		"eventsCreated": len(result.Created),
		"events":        echoes,
	}
	status := http.StatusCreated
	if len(result.Errors) > 0 {
		response["errors"] = result.Errors
		response["message"] = "Some events could not be recorded"
		status = http.StatusMultiStatus
	}

	return ctx.Status(status).JSON(response)
}

// CreateEventBeaconHandler accepts navigator.sendBeacon traffic. It always
// answers 202 with no body so it can never block a page unload; failures are
// logged and dropped.
func CreateEventBeaconHandler(ctx *cartridge.Context) error {
	// sendBeacon posts text/plain; either a single event or a batch envelope
	// may arrive, so the envelope shape is tried first.
	body := ctx.Body()
	var batch batchPayload
	if err := json.Unmarshal(body, &batch); err == nil && len(batch.Events) > 0 {
		return recordBeaconBatch(ctx, batch.Events)
	}

	var payload eventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		ctx.Logger.Debug("Failed to parse beacon request", slog.Any("error", err))
		return ctx.SendStatus(http.StatusAccepted)
	}

	if err := validateBeaconOrigin(ctx); err != nil {
		return ctx.SendStatus(http.StatusAccepted)
	}

	input := payload.toInput(getClientIP(ctx.Ctx), requestUserAgent(ctx))
	if _, err := events.Record(ctx.DBManager.GetConnection(), ctx.Logger, input); err != nil {
		ctx.Logger.Debug("Dropped beacon event", slog.Any("error", err))
	}
	return ctx.SendStatus(http.StatusAccepted)
}

func recordBeaconBatch(ctx *cartridge.Context, payloads []eventPayload) error {
	if err := validateBeaconOrigin(ctx); err != nil {
		return ctx.SendStatus(http.StatusAccepted)
	}

	ipAddress := getClientIP(ctx.Ctx)
	userAgent := requestUserAgent(ctx)
	inputs := make([]*events.RecordEventInput, len(payloads))
	for i := range payloads {
		inputs[i] = payloads[i].toInput(ipAddress, userAgent)
	}
	if _, err := events.RecordBatch(ctx.DBManager.GetConnection(), ctx.Logger, inputs); err != nil {
		ctx.Logger.Debug("Dropped beacon batch", slog.Any("error", err))
	}
	return ctx.SendStatus(http.StatusAccepted)
}

// validateBeaconOrigin checks the browser-set Origin (or Referer) against the
// registered websites. The beacon endpoint has no other caller identity, so
// unmatched origins are dropped.
func validateBeaconOrigin(ctx *cartridge.Context) error {
	origin := ctx.Get("Origin")
	if origin == "" {
		origin = ctx.Get("Referer")
	}
	if origin == "" {
		return errors.New("missing origin")
	}

	parsedURL, err := url.Parse(origin)
	if err != nil {
		return errors.New("unparseable origin")
	}

	baseDomain := websites.BaseDomainForHost(parsedURL.Hostname())
	if _, err := websites.GetWebsiteByDomain(ctx.DBManager.GetConnection(), baseDomain); err != nil {
		ctx.Logger.Debug("Beacon origin not registered",
			slog.String("origin", origin),
			slog.String("base_domain", baseDomain))
		return errors.New("unregistered origin")
	}
	return nil
}

func respondRecordError(ctx *cartridge.Context, err error) error {
	var (
		vErr  *events.ValidationError
		nfErr *websites.WebsiteNotFoundError
	)
	switch {
	case errors.As(err, &vErr):
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   events.ErrCodeValidation,
			"message": vErr.Error(),
		})
	case errors.As(err, &nfErr):
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   events.ErrCodeNotFound,
			"message": "Website not found",
		})
	default:
		ctx.Logger.Error("Failed to record event", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   events.ErrCodeInternal,
			"message": "Failed to record event",
		})
	}
}

func requestUserAgent(ctx *cartridge.Context) string {
	if forwardedUA := ctx.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
		return forwardedUA
	}
	return ctx.Get("User-Agent")
}

// propertiesFromMap serializes the free-form properties object for storage.
func propertiesFromMap(properties map[string]interface{}) string {
	if len(properties) == 0 {
		return ""
	}
	data, err := json.Marshal(properties)
	if err != nil {
		return ""
	}
	return string(data)
}
