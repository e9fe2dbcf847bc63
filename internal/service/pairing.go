package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/lumacast/pairing-server-go/internal/errors"
	"github.com/lumacast/pairing-server-go/internal/model"
	"github.com/lumacast/pairing-server-go/internal/sse"
	"github.com/lumacast/pairing-server-go/internal/store"
	"github.com/lumacast/pairing-server-go/internal/util"
)

// PairingConfig carries the policy knobs of the pairing protocol.
type PairingConfig struct {
	TTL          time.Duration
	CodeLength   int
	CodeAlphabet string
	MaxAttempts  int
}

type CreateSessionResult struct {
	Code       string              `json:"code"`
	TTLSeconds int                 `json:"ttlSeconds"`
	Status     model.SessionStatus `json:"status"`
}

type SessionStatusResult struct {
	Status           model.SessionStatus `json:"status"`
	HasCredentials   bool                `json:"hasCredentials"`
	Credentials      *model.Credentials  `json:"credentials,omitempty"`
	RemainingSeconds int                 `json:"remainingSeconds"`
}

// PairingService is the broker's state machine: create -> join ->
// deliver -> complete, with expiry derived from the TTL. Every guarded
// mutation goes through the store's atomic Update so two racing callers
// can never both pass the same guard.
type PairingService struct {
	store  store.SessionStore
	broker *sse.Broker
	cfg    PairingConfig
	now    func() time.Time
}

func NewPairingService(sessionStore store.SessionStore, broker *sse.Broker, cfg PairingConfig) *PairingService {
	return &PairingService{
		store:  sessionStore,
		broker: broker,
		cfg:    cfg,
		now:    time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (s *PairingService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateSession allocates a unique code and an empty pending session.
// Collisions against live sessions are retried up to MaxAttempts; the
// code space can genuinely fill up when the alphabet is small.
func (s *PairingService) CreateSession(ctx context.Context) (*CreateSessionResult, error) {
	for attempts := 0; attempts < s.cfg.MaxAttempts; attempts++ {
		code := s.generateCode()
		if !s.store.IsAvailable(code) {
			continue
		}

		session := &model.PairingSession{
			Code:      code,
			Status:    model.SessionStatusPending,
			CreatedAt: s.now(),
		}

		err := s.store.Create(code, session)
		if errors.Is(err, store.ErrCodeCollision) {
			// Lost the race against a concurrent CreateSession.
			continue
		}
		if err != nil {
			return nil, apperrors.Internal("failed to store pairing session").WithCause(err)
		}

		log.Info().
			Str("code", code).
			Dur("ttl", s.cfg.TTL).
			Msg("pairing session created")

		return &CreateSessionResult{
			Code:       code,
			TTLSeconds: int(s.cfg.TTL.Seconds()),
			Status:     model.SessionStatusPending,
		}, nil
	}

	log.Warn().
		Int("attempts", s.cfg.MaxAttempts).
		Msg("pairing code space exhausted")

	return nil, apperrors.CodeSpaceExhausted()
}

// GetStatus returns the session's current state. Receivers poll this
// under the poll binding and call it once on reconnect under the push
// binding to resynchronize.
func (s *PairingService) GetStatus(ctx context.Context, code string) (*SessionStatusResult, error) {
	code = util.NormalizeCode(code)

	session, err := s.store.Get(code)
	if err != nil {
		return nil, apperrors.NotFound("pairing session")
	}

	return s.statusOf(session), nil
}

// Join attaches a sender to the session. Idempotent while the session
// is not yet completed, so a phone that reconnects can join again.
func (s *PairingService) Join(ctx context.Context, code string) error {
	code = util.NormalizeCode(code)

	_, err := s.store.Update(code, func(session *model.PairingSession) error {
		if session.Status == model.SessionStatusCompleted {
			return apperrors.AlreadyPaired()
		}
		session.Status = model.SessionStatusAwaitingCredentials
		return nil
	})
	if err != nil {
		return s.mapStoreError(err)
	}

	log.Info().Str("code", code).Msg("sender joined pairing session")

	s.publish(ctx, code, sse.EventPeerJoined, map[string]any{"code": code})
	return nil
}

// SubmitCredentials stores the payload and completes the session.
// Credentials are write-once: of two racing submissions exactly one
// wins and the other fails with AlreadyPaired.
func (s *PairingService) SubmitCredentials(ctx context.Context, code string, creds model.Credentials) error {
	code = util.NormalizeCode(code)

	if err := validateCredentials(creds); err != nil {
		return err
	}

	_, err := s.store.Update(code, func(session *model.PairingSession) error {
		if session.Credentials != nil {
			return apperrors.AlreadyPaired()
		}
		session.Credentials = &creds
		session.Status = model.SessionStatusCompleted
		return nil
	})
	if err != nil {
		return s.mapStoreError(err)
	}

	log.Info().
		Str("code", code).
		Str("host", creds.Host).
		Str("username", creds.Username).
		Msg("credentials received, pairing completed")

	s.publish(ctx, code, sse.EventCredentialsReceived, map[string]any{
		"code":        code,
		"credentials": creds,
	})
	return nil
}

// ReceiverDisconnect records that the TV dropped its connection. The
// session is deliberately kept alive for the rest of the TTL window so
// a page reload or network blip does not burn the code.
func (s *PairingService) ReceiverDisconnect(code string) {
	code = util.NormalizeCode(code)

	session, err := s.store.Get(code)
	if err != nil {
		return
	}

	log.Info().
		Str("code", code).
		Str("status", string(session.Status)).
		Msg("receiver disconnected, session kept until ttl")
}

func (s *PairingService) statusOf(session *model.PairingSession) *SessionStatusResult {
	result := &SessionStatusResult{
		Status:         session.Status,
		HasCredentials: session.Credentials != nil,
	}

	if session.Status == model.SessionStatusCompleted {
		result.Credentials = session.Credentials
	}

	remaining := s.cfg.TTL - s.now().Sub(session.CreatedAt)
	if remaining > 0 {
		result.RemainingSeconds = int(remaining.Seconds())
	}

	return result
}

func (s *PairingService) mapStoreError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("pairing session")
	}
	return err
}

func (s *PairingService) publish(ctx context.Context, code, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("failed to marshal event payload")
		return
	}

	if err := s.broker.Publish(ctx, code, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Error().Err(err).Str("code", code).Str("event", eventType).Msg("failed to publish event")
	}
}

func (s *PairingService) generateCode() string {
	chars := []byte(s.cfg.CodeAlphabet)
	code := make([]byte, s.cfg.CodeLength)

	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		code[i] = chars[n.Int64()]
	}

	return string(code)
}

func validateCredentials(creds model.Credentials) error {
	if creds.Host == "" {
		return apperrors.InvalidCredentials("host")
	}
	if creds.Username == "" {
		return apperrors.InvalidCredentials("username")
	}
	if creds.Password == "" {
		return apperrors.InvalidCredentials("password")
	}
	return nil
}
