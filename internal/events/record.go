package events

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"beaconly/internal/config"
	"beaconly/internal/pkg/useragent"
	"beaconly/internal/visitors"
	"beaconly/internal/websites"
)

// Record validates one beacon and persists it. The website lookup, identity
// resolution, event insert and rollup updates share one write transaction so
// a failure leaves no partial state. A nil event with a nil error means the
// beacon was recognized as bot traffic and dropped.
func Record(db *gorm.DB, logger *slog.Logger, input *RecordEventInput) (*Event, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	classification := useragent.Classify(input.UserAgent)
	if classification.Bot {
		logger.Debug("Dropping bot event",
			slog.String("tracking_code", input.TrackingCode),
			slog.String("user_agent", input.UserAgent))
		return nil, nil
	}

	cfg := config.GetConfig()

	timestamp := time.Now().UTC()
	if input.Timestamp != nil {
		timestamp = input.Timestamp.UTC()
	}

	var event *Event
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		website, err := websites.GetWebsiteByTrackingCode(tx, input.TrackingCode)
		if err != nil {
			return err
		}

		fingerprint := visitors.Fingerprint(website.ID, input.IPAddress, input.VisitorID, cfg.PrivateKey)
		isPageView := input.EventType == EventTypePageView

		visitor, err := visitors.ResolveVisitor(tx, website.ID, fingerprint, timestamp, isPageView)
		if err != nil {
			return err
		}

		session, err := visitors.ResolveSession(tx, website.ID, visitor.ID, input.SessionID, timestamp)
		if err != nil {
			return err
		}

		visitorID := visitor.ID
		event = &Event{
			WebsiteID:    website.ID,
			VisitorID:    &visitorID,
			SessionToken: session.Token,
			EventType:    input.EventType,
			PageURL:      input.URL,
			Referrer:     input.Referrer,
			DeviceType:   classification.DeviceType,
			Browser:      classification.Browser,
			OS:           classification.OS,
			Properties:   input.Properties,
			Timestamp:    timestamp,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}

		if isPageView {
			isNewVisitor := visitor.PageViews == 1
			isNewSession := session.PageCount == 1
			if err := updateRollups(tx, event, session, isNewVisitor, isNewSession); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return event, nil
}

// RecordBatch records each item independently; one bad item never blocks its
// neighbors. Items dropped as bot traffic count toward neither side.
func RecordBatch(db *gorm.DB, logger *slog.Logger, inputs []*RecordEventInput) (*BatchResult, error) {
	result := &BatchResult{}

	for i, input := range inputs {
		event, err := Record(db, logger, input)
		if err != nil {
			result.Errors = append(result.Errors, batchItemError(i, err))
			continue
		}
		if event != nil {
			result.Created = append(result.Created, event)
		}
	}

	logger.Info("Recorded event batch",
		slog.Int("received", len(inputs)),
		slog.Int("created", len(result.Created)),
		slog.Int("failed", len(result.Errors)))
	return result, nil
}

func batchItemError(index int, err error) BatchItemError {
	var (
		vErr  *ValidationError
		nfErr *websites.WebsiteNotFoundError
	)
	switch {
	case errors.As(err, &vErr):
		return BatchItemError{Index: index, Code: ErrCodeValidation, Message: vErr.Error()}
	case errors.As(err, &nfErr):
		return BatchItemError{Index: index, Code: ErrCodeNotFound, Message: "website not found"}
	default:
		return BatchItemError{Index: index, Code: ErrCodeInternal, Message: "failed to record event"}
	}
}
