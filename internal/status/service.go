package status

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Rules struct {
	SideA         Side
	SideB         Side
	ClosedKeyword string
	StatusKeyword string
	// AllowedChats are the conversation ids the bot reacts to.
	AllowedChats []string
	// Location renders update times in replies; nil means UTC.
	Location *time.Location
}

type service struct {
	repo     Repo
	outbound Outbound
	rules    Rules
	allowed  map[string]bool
	log      zerolog.Logger
}

func NewService(repo Repo, outbound Outbound, rules Rules, log zerolog.Logger) Service {
	allowed := make(map[string]bool, len(rules.AllowedChats))
	for _, id := range rules.AllowedChats {
		if id != "" {
			allowed[id] = true
		}
	}
	rules.ClosedKeyword = strings.ToLower(rules.ClosedKeyword)
	rules.StatusKeyword = strings.ToLower(rules.StatusKeyword)
	if rules.Location == nil {
		rules.Location = time.UTC
	}

	return &service{
		repo:     repo,
		outbound: outbound,
		rules:    rules,
		allowed:  allowed,
		log:      log.With().Str("component", "service").Logger(),
	}
}

// HandleIncoming applies the keyword rules to one chat message. The closed
// and status rules are independent; a message can trigger both.
func (s *service) HandleIncoming(ctx context.Context, msg *Message) error {
	if msg.Text == "" || !s.allowed[msg.ChatID] {
		s.log.Debug().Str("chat_id", msg.ChatID).Msg("ignored message")
		return nil
	}

	s.log.Info().
		Str("chat_id", msg.ChatID).
		Str("from", msg.PushName).
		Str("type", msg.MessageType).
		Str("text", msg.Text).
		Msg("message received")

	text := strings.ToLower(msg.Text)

	if strings.Contains(text, s.rules.ClosedKeyword) {
		if err := s.closeSide(ctx, msg.ChatID, text); err != nil {
			return err
		}
	}

	if strings.Contains(text, s.rules.StatusKeyword) {
		if err := s.reportStatus(ctx, msg.ChatID); err != nil {
			return err
		}
	}

	return nil
}

// sides picks the closed side. Anything not naming side A closes side B.
func (s *service) sides(text string) (closed, open Side) {
	if strings.Contains(text, strings.ToLower(string(s.rules.SideA))) {
		return s.rules.SideA, s.rules.SideB
	}
	return s.rules.SideB, s.rules.SideA
}

// closeSide writes the pair as two separate inserts. If the second one fails
// the first stays committed until a later message overwrites it.
func (s *service) closeSide(ctx context.Context, chatID, text string) error {
	closed, open := s.sides(text)

	if err := s.repo.RecordStatus(ctx, closed, StatusClosed); err != nil {
		return err
	}
	if err := s.repo.RecordStatus(ctx, open, StatusOpen); err != nil {
		return err
	}
	s.log.Info().Str("closed", string(closed)).Str("open", string(open)).Msg("status updated")

	return s.outbound.SendText(ctx, chatID, closedAlert(closed, open))
}

func (s *service) reportStatus(ctx context.Context, chatID string) error {
	a, err := s.repo.LatestRecord(ctx, s.rules.SideA)
	if err != nil {
		return err
	}
	b, err := s.repo.LatestRecord(ctx, s.rules.SideB)
	if err != nil {
		return err
	}
	return s.outbound.SendText(ctx, chatID, statusSummary(a, b, s.rules.Location))
}
