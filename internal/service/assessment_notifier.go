package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/geometria-labs/geometria-api/internal/models"
	"github.com/geometria-labs/geometria-api/internal/observability"
)

// AssessmentEvent is the payload fanned out when a grading request reaches a
// terminal status.
type AssessmentEvent struct {
	Source       string    `json:"source"`
	AssessmentID uint      `json:"assessment_id"`
	StudentID    uint      `json:"student_id"`
	LessonID     uint      `json:"lesson_id"`
	Status       string    `json:"status"`
	Score        *int      `json:"score,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

// AssessmentNotifier publishes terminal assessment transitions to downstream
// consumers (dashboards, teacher review queues).
type AssessmentNotifier interface {
	PublishTerminal(ctx context.Context, record models.AssessmentRecord)
}

type assessmentNotifier struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	nodeID       string
}

// NewAssessmentNotifier builds the dual-broker publisher. Nil clients are
// tolerated; publishing becomes a no-op for the missing broker.
func NewAssessmentNotifier(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) AssessmentNotifier {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":assessments"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".assessments"
	}

	return &assessmentNotifier{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "assessment_notifier").Logger(),
		tracer:       otel.Tracer("github.com/geometria-labs/geometria-api/internal/service/assessment_notifier"),
		nodeID:       uuid.NewString(),
	}
}

func (n *assessmentNotifier) PublishTerminal(ctx context.Context, record models.AssessmentRecord) {
	if !record.Status.Terminal() {
		return
	}

	spanCtx, span := n.tracer.Start(ctx, "assessments.publish", trace.WithAttributes(
		attribute.Int64("assessment.id", int64(record.ID)),
		attribute.String("assessment.status", string(record.Status)),
	))
	defer span.End()

	event := AssessmentEvent{
		Source:       n.nodeID,
		AssessmentID: record.ID,
		StudentID:    record.StudentID,
		LessonID:     record.LessonID,
		Status:       string(record.Status),
		Score:        record.Score,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to encode assessment event")
		return
	}

	if n.redis != nil && n.redisChannel != "" {
		if err := n.redis.Publish(spanCtx, n.redisChannel, payload).Err(); err != nil {
			span.RecordError(err)
			n.logger.Warn().Err(err).Msg("failed to publish assessment event to redis")
		}
	}

	if n.nats != nil && n.natsSubject != "" {
		if err := n.nats.Publish(n.natsSubject, payload); err != nil {
			span.RecordError(err)
			n.logger.Warn().Err(err).Msg("failed to publish assessment event to nats")
		}
	}

	observability.AssessmentEventsPublished().WithLabelValues(string(record.Status)).Inc()
}
