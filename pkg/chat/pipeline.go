package chat

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// FailureText replaces the typing placeholder when the exchange fails.
	FailureText = "Failed to get a response"
	// EmptyReplyText stands in for a successful exchange that carried no body.
	EmptyReplyText = "No response received"

	// DefaultExchangeTimeout bounds the wait on the remote exchange so a dead
	// connection surfaces as a TransportError instead of hanging the loading
	// flag forever.
	DefaultExchangeTimeout = 60 * time.Second
)

// ExchangeRequest is the prompt sent to the remote assistant. SessionID is
// empty when no session is active yet; the server then creates one and
// returns its id.
type ExchangeRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
}

// ExchangeReply is the assistant's answer plus the session it belongs to.
type ExchangeReply struct {
	SessionID string `json:"session_id"`
	Content   string `json:"bot_content"`
}

// Exchanger performs the opaque "send message, get reply" round trip.
type Exchanger interface {
	Exchange(ctx context.Context, req ExchangeRequest) (ExchangeReply, error)
}

// PipelineHost gives the pipeline serialized access to the timeline it feeds.
// The Coordinator implements it; both methods run under the coordinator lock
// so the begin and finish transitions are atomic with respect to session
// switches.
type PipelineHost interface {
	// BeginSend appends the optimistic user message and the typing
	// placeholder, sets the loading flag, and returns the timeline epoch and
	// active session id captured at submit time. It must reject overlapping
	// sends with ErrSendInFlight before any side effect.
	BeginSend(user, placeholder Message) (epoch uint64, sessionID string, err error)
	// FinishSend clears the loading flag and, when the epoch still matches
	// the live timeline, reconciles the placeholder with the final message
	// and adopts newSessionID if no session was active. It reports whether
	// the result was discarded because the timeline has been replaced.
	FinishSend(epoch uint64, final Message, newSessionID string) (discarded bool, err error)
}

// SendPipeline runs a single submitted prompt through optimistic insertion,
// pending placeholder, remote exchange and reconciliation. It never
// interleaves two in-flight sends against one timeline.
type SendPipeline struct {
	exchange Exchanger
	timeout  time.Duration
}

func NewSendPipeline(exchange Exchanger, timeout time.Duration) *SendPipeline {
	if timeout <= 0 {
		timeout = DefaultExchangeTimeout
	}
	return &SendPipeline{exchange: exchange, timeout: timeout}
}

// Submit drives the state machine to a terminal state. An empty prompt or an
// overlapping send returns an error with no side effect. Exchange failures
// are reconciled into the timeline as a visible error message and the
// underlying error is returned so auth expiry can propagate to the caller.
// The loading flag is cleared on every exit path past BeginSend.
func (p *SendPipeline) Submit(ctx context.Context, host PipelineHost, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}

	epoch, sessionID, err := host.BeginSend(NewUserMessage(prompt), NewTypingPlaceholder())
	if err != nil {
		return err
	}

	exCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	reply, exchangeErr := p.exchange.Exchange(exCtx, ExchangeRequest{
		SessionID: sessionID,
		Role:      RoleUser,
		Content:   prompt,
	})

	var final Message
	newSessionID := ""
	if exchangeErr != nil {
		if !IsTransportError(exchangeErr) && !IsAuthError(exchangeErr) {
			// Timeouts and other raw failures from the exchange boundary
			// count as transport failures.
			exchangeErr = &TransportError{Cause: exchangeErr}
		}
		log.Warn().Err(exchangeErr).Str("session_id", sessionID).Msg("exchange failed")
		final = Message{
			Role:      RoleAssistant,
			Content:   FailureText,
			Timestamp: time.Now(),
			Status:    StatusError,
			IsNew:     true,
		}
	} else {
		content := reply.Content
		if content == "" {
			content = EmptyReplyText
		}
		final = Message{
			Role:      RoleAssistant,
			Content:   content,
			Timestamp: time.Now(),
			Status:    StatusSent,
			IsNew:     true,
		}
		if sessionID == "" {
			newSessionID = reply.SessionID
		}
	}

	discarded, finishErr := host.FinishSend(epoch, final, newSessionID)
	if finishErr != nil {
		return errors.Wrap(finishErr, "reconcile reply")
	}
	if discarded {
		log.Debug().Str("session_id", sessionID).Msg("discarding reply for replaced timeline")
		// Auth expiry still has to surface even when the reply itself is
		// dropped, otherwise the user keeps talking to a dead credential.
		if IsAuthError(exchangeErr) {
			return errors.Wrap(exchangeErr, "exchange")
		}
		return nil
	}
	if exchangeErr != nil {
		return errors.Wrap(exchangeErr, "exchange")
	}
	return nil
}
