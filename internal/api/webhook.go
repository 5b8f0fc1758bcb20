package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"signal-gateway/internal/events"
	"signal-gateway/internal/signal"
	"signal-gateway/pkg/i18n"
)

// maxBodyBytes caps webhook payloads; alert bodies are a few hundred bytes.
const maxBodyBytes = 1 << 20

// receiveSignal handles POST /webhook/signals: assemble, publish, echo the wire form.
func (s *Server) receiveSignal(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	req := signal.Request{
		Query:       c.Request.URL.Query(),
		Body:        body,
		ContentType: c.GetHeader("Content-Type"),
	}
	origin := s.Engine.OriginOf(req).String()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.rejectSignal(c, req, origin, signal.Validation("Request body exceeds 1 MiB."))
			return
		}
		s.rejectSignal(c, req, origin, signal.Validation("Unable to read request body."))
		return
	}

	sig, err := s.Engine.Process(ctx, req)
	if err != nil {
		s.rejectSignal(c, req, origin, err)
		return
	}

	msg := sig.Map()
	pubStart := time.Now()
	err = s.Publisher.Publish(ctx, s.EventStore, s.RoutingKey, msg)
	s.Metrics.Published(err, time.Since(pubStart))
	if err != nil {
		s.Log.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg(i18n.M().PublishFailed)
		s.rejectSignal(c, req, origin, signal.Unexpected(fmt.Errorf("publish: %w", err)))
		return
	}

	s.Metrics.SignalAccepted(origin)
	s.Metrics.WebhookLatency.RecordDuration(time.Since(start))
	s.Log.Info().
		Str("request_id", c.GetString(requestIDKey)).
		Str("origin", origin).
		Str("tv_signal_id", sig.TVSignalID).
		Str("event", string(sig.Event)).
		Msg(i18n.M().SignalPublished)

	c.JSON(http.StatusOK, gin.H{
		"message": "Signals saved successfully",
		"data":    msg,
	})
}

// rejectSignal answers with the status of err's kind, logs the request and announces the
// rejection on the bus, where the monitor counts it.
func (s *Server) rejectSignal(c *gin.Context, req signal.Request, origin string, err error) {
	kind := signal.KindOf(err)
	status, code := statusOf(kind)
	reason := signal.ReasonOf(err)
	if kind == signal.KindUnexpected {
		reason = i18n.M().InternalError
	}

	requestID := c.GetString(requestIDKey)
	s.Log.Error().
		Err(err).
		Str("request_id", requestID).
		Str("content_type", req.ContentType).
		Int("status_code", status).
		Str("detail", reason).
		Str("body", string(req.Body)).
		Msg(i18n.M().SignalRejected)

	if s.Bus != nil {
		s.Bus.Publish(events.EventSignalRejected, events.SignalRejected{
			RequestID: requestID,
			Origin:    origin,
			Kind:      kind.String(),
			Reason:    reason,
			At:        time.Now().UTC(),
		})
	}
	respondError(c, status, code, reason)
}

func statusOf(kind signal.Kind) (int, string) {
	switch kind {
	case signal.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case signal.KindAuthorization:
		return http.StatusForbidden, "FORBIDDEN"
	case signal.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case signal.KindDecode:
		return http.StatusBadRequest, "DECODE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
