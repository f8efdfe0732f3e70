/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package game is the command surface of the bot. It turns commands and
// chat messages into round transitions and describes what to publish,
// without knowing anything about the chat platform.
package game

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Seednode/streetguess/catalog"
	"github.com/Seednode/streetguess/ledger"
	"github.com/Seednode/streetguess/round"
)

const (
	GameTitle       = "Street View location game"
	StartedText     = "Where was this photo taken? Name the country or region. Naming the region or city earns more points!\nReply to this message with your answer!"
	ImageName       = "streetview.png"
	CorrectTitle    = "Correct!"
	WrongReaction   = "❌"
	LeaderboardSize = 10
)

// Image is a file to attach to a reply.
type Image struct {
	Name string
	Path string
}

// Reply is a platform-neutral message. Adapters decide how to render it.
type Reply struct {
	Title string
	Text  string
	URL   string
	Image *Image
	// Private asks the adapter to show the reply only to the caller.
	Private bool
}

// Responder answers a command.
type Responder interface {
	// Defer acknowledges a command whose reply will take a while.
	Defer(ctx context.Context) error
	// Respond sends the reply and returns the id of the posted message.
	Respond(ctx context.Context, r Reply) (string, error)
}

// Message is an incoming chat message that may be a guess.
type Message interface {
	AuthorID() string
	AuthorName() string
	Content() string
	// RepliedMessageID is the id of the message this one replies to, or "".
	RepliedMessageID() string
	// Mention renders a reference to the author.
	Mention() string
	Reply(ctx context.Context, r Reply) error
	React(ctx context.Context, emoji string) error
	// Send posts to the message's channel without replying to it.
	Send(ctx context.Context, r Reply) error
}

// NameResolver maps an identity to a display name.
type NameResolver interface {
	DisplayName(ctx context.Context, identity string) (string, error)
}

// Rounds is the part of round.Machine the service drives.
type Rounds interface {
	Start(ctx context.Context, mode catalog.Mode) (*round.Started, error)
	Anchor(ctx context.Context, roundID, messageID string) error
	SubmitGuess(ctx context.Context, g round.Guess) (round.Outcome, error)
	ResetAll(ctx context.Context) (bool, error)
}

// Scores is the read side of the ledger.
type Scores interface {
	Read(mode catalog.Mode, identity string) int
	Top(mode catalog.Mode, n int) []ledger.Entry
}

// Service implements the bot's commands.
type Service struct {
	rounds    Rounds
	scores    Scores
	observers []Observer
	logger    *zap.Logger
}

func NewService(rounds Rounds, scores Scores, logger *zap.Logger, observers ...Observer) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		rounds:    rounds,
		scores:    scores,
		observers: observers,
		logger:    logger,
	}
}

// StartRound handles the start command for mode.
func (s *Service) StartRound(ctx context.Context, mode catalog.Mode, r Responder) error {
	if err := r.Defer(ctx); err != nil {
		return fmt.Errorf("defer reply: %w", err)
	}

	started, err := s.rounds.Start(ctx, mode)
	switch {
	case errors.Is(err, round.ErrRoundAlreadyActive):
		_, rerr := r.Respond(ctx, Reply{Text: "A round is already in progress."})
		return rerr
	case err != nil:
		s.logger.Warn("starting round", zap.String("mode", string(mode)), zap.Error(err))
		_, rerr := r.Respond(ctx, Reply{Text: "Could not fetch a Street View image. Please try again."})
		return errors.Join(err, rerr)
	}

	defer func() {
		if err := os.Remove(started.ArtifactPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("removing artifact", zap.String("path", started.ArtifactPath), zap.Error(err))
		}
	}()

	messageID, err := r.Respond(ctx, Reply{
		Title: GameTitle,
		Text:  StartedText,
		Image: &Image{Name: ImageName, Path: started.ArtifactPath},
	})
	if err != nil {
		return fmt.Errorf("publish round: %w", err)
	}

	if err := s.rounds.Anchor(ctx, started.RoundID, messageID); err != nil {
		return fmt.Errorf("anchor round: %w", err)
	}

	s.notify(Event{
		Type:      EventRoundStarted,
		RoundID:   started.RoundID,
		Mode:      started.Mode,
		MessageID: messageID,
	})

	return nil
}

// HandleGuess treats msg as a guess for the active round.
func (s *Service) HandleGuess(ctx context.Context, msg Message) error {
	out, err := s.rounds.SubmitGuess(ctx, round.Guess{
		Identity: msg.AuthorID(),
		Text:     msg.Content(),
		ReplyTo:  msg.RepliedMessageID(),
	})
	if err != nil {
		return err
	}

	switch {
	case out.Ignored:
		return nil

	case out.Won:
		s.notify(Event{
			Type:      EventRoundResolved,
			RoundID:   out.RoundID,
			Mode:      out.Mode,
			Winner:    msg.AuthorName(),
			Points:    out.Points,
			Label:     out.Label,
			Reference: out.Reference,
		})
		return msg.Send(ctx, resolvedReply(msg.Mention(), out))

	case out.Warning == round.WarnMultiToken:
		return errors.Join(
			msg.React(ctx, WrongReaction),
			msg.Reply(ctx, Reply{Text: "Please answer with a single place name.", Private: true}),
		)
	}

	return msg.React(ctx, WrongReaction)
}

func resolvedReply(mention string, out round.Outcome) Reply {
	return Reply{
		Title: CorrectTitle,
		Text: fmt.Sprintf("%s was the first to answer correctly!\nThe answer was: %s\n%d %s earned!",
			mention, out.Label, out.Points, plural(out.Points, "point", "points")),
		URL: out.Reference,
	}
}

// Score reports identity's points in mode.
func (s *Service) Score(mode catalog.Mode, identity string) Reply {
	points := s.scores.Read(mode, identity)
	return Reply{
		Title: fmt.Sprintf("Your score in %s mode is %d %s", ModeName(mode), points, plural(points, "point", "points")),
	}
}

// Leaderboard lists the top n players of mode.
func (s *Service) Leaderboard(ctx context.Context, mode catalog.Mode, n int, names NameResolver) Reply {
	if n <= 0 {
		n = LeaderboardSize
	}

	entries := s.scores.Top(mode, n)
	title := fmt.Sprintf("Top %d (%s)", n, ModeName(mode))
	if len(entries) == 0 {
		return Reply{Title: title, Text: "No scores yet."}
	}

	var b strings.Builder
	for i, e := range entries {
		name := e.Identity
		if names != nil {
			resolved, err := names.DisplayName(ctx, e.Identity)
			if err != nil {
				s.logger.Debug("resolving name", zap.String("identity", e.Identity), zap.Error(err))
				name = "(unknown player)"
			} else {
				name = resolved
			}
		}
		fmt.Fprintf(&b, "%d. %s - %d %s\n", i+1, name, e.Points, plural(e.Points, "point", "points"))
	}

	return Reply{Title: title, Text: strings.TrimSuffix(b.String(), "\n")}
}

// Reset clears every score. The adapter decides whether the caller is an
// administrator.
func (s *Service) Reset(ctx context.Context, callerIsAdmin bool) (Reply, error) {
	if !callerIsAdmin {
		return Reply{Text: "You do not have permission to run this command.", Private: true}, nil
	}

	aborted, err := s.rounds.ResetAll(ctx)
	if err != nil {
		return Reply{}, err
	}

	s.notify(Event{Type: EventScoresReset})
	if aborted {
		s.notify(Event{Type: EventRoundAborted})
	}

	s.logger.Info("scores reset", zap.Bool("aborted_round", aborted))

	return Reply{Title: "All scores have been reset."}, nil
}

// ModeName is the display name of a mode.
func ModeName(m catalog.Mode) string {
	switch m {
	case catalog.ModeJapan:
		return "Japan"
	case catalog.ModeWorld:
		return "World"
	}
	return string(m)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
