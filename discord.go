/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/Seednode/streetguess/catalog"
	"github.com/Seednode/streetguess/game"
)

const (
	embedColor    = 0x4285f4
	modeOption    = "mode"
	intents       = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	adminPermBits = discordgo.PermissionAdministrator | discordgo.PermissionManageServer
)

func modeChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(catalog.Modes()))
	for _, m := range catalog.Modes() {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  game.ModeName(m),
			Value: string(m),
		})
	}
	return choices
}

func commands() []*discordgo.ApplicationCommand {
	mode := func(description string) []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        modeOption,
			Description: description,
			Required:    true,
			Choices:     modeChoices(),
		}}
	}

	return []*discordgo.ApplicationCommand{
		{Name: "gamestart", Description: "Start a round of the location game", Options: mode("Where the photo may be taken")},
		{Name: "score", Description: "Show your score", Options: mode("Which mode to show")},
		{Name: "leaderboard", Description: "Show the top players", Options: mode("Which mode to show")},
		{Name: "reset", Description: "Reset every score (administrators only)"},
	}
}

type bot struct {
	cfg     *Config
	session *discordgo.Session
	service *game.Service
	logger  *zap.Logger

	ctx context.Context
}

func newBot(cfg *Config, service *game.Service, logger *zap.Logger) (*bot, error) {
	s, err := discordgo.New("Bot " + cfg.token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = intents

	return &bot{
		cfg:     cfg,
		session: s,
		service: service,
		logger:  logger.Named("discord"),
	}, nil
}

// run connects to the gateway and serves commands until ctx is done.
func (b *bot) run(ctx context.Context) error {
	b.ctx = ctx

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)
	b.session.AddHandler(b.onMessage)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	appID := b.cfg.appID
	if appID == "" {
		appID = b.session.State.User.ID
	}
	if _, err := b.session.ApplicationCommandBulkOverwrite(appID, b.cfg.guildID, commands(), discordgo.WithContext(ctx)); err != nil {
		_ = b.session.Close()
		return fmt.Errorf("register commands: %w", err)
	}

	<-ctx.Done()

	return b.session.Close()
}

func (b *bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	logf(b.cfg, "DISCORD: Logged in as %s", r.User.Username)
}

func (b *bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	logger := b.logger.With(zap.String("command", data.Name), zap.String("user", callerID(i)))

	mode := catalog.ModeJapan
	for _, opt := range data.Options {
		if opt.Name != modeOption {
			continue
		}
		parsed, err := catalog.ParseMode(opt.StringValue())
		if err != nil {
			logger.Warn("bad mode option", zap.Error(err))
			return
		}
		mode = parsed
	}

	r := &interactionResponder{session: s, interaction: i.Interaction}

	var err error
	switch data.Name {
	case "gamestart":
		err = b.service.StartRound(b.ctx, mode, r)
	case "score":
		err = r.reply(b.ctx, b.service.Score(mode, callerID(i)))
	case "leaderboard":
		err = r.reply(b.ctx, b.service.Leaderboard(b.ctx, mode, game.LeaderboardSize, discordNames{session: s}))
	case "reset":
		var reply game.Reply
		reply, err = b.service.Reset(b.ctx, isAdmin(i.Member, b.cfg.adminRole))
		if err == nil {
			err = r.reply(b.ctx, reply)
		}
	default:
		return
	}

	if err != nil {
		logger.Warn("handling command", zap.Error(err))
	}
}

func (b *bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.ChannelID != b.cfg.guessChannel {
		return
	}

	if err := b.service.HandleGuess(b.ctx, discordMessage{session: s, msg: m.Message}); err != nil {
		b.logger.Warn("handling guess", zap.String("user", m.Author.ID), zap.Error(err))
	}
}

func callerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// isAdmin reports whether member may reset scores: server administrators,
// server managers, and holders of adminRole.
func isAdmin(member *discordgo.Member, adminRole string) bool {
	if member == nil {
		return false
	}
	if member.Permissions&adminPermBits != 0 {
		return true
	}
	return adminRole != "" && slices.Contains(member.Roles, adminRole)
}

// embed renders r for Discord. Plain text replies stay plain.
func embed(r game.Reply) (string, []*discordgo.MessageEmbed) {
	if r.Title == "" && r.URL == "" && r.Image == nil {
		return r.Text, nil
	}

	e := &discordgo.MessageEmbed{
		Title:       r.Title,
		Description: r.Text,
		URL:         r.URL,
		Color:       embedColor,
	}
	if r.Image != nil {
		e.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + r.Image.Name}
	}
	return "", []*discordgo.MessageEmbed{e}
}

type interactionResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	deferred    bool
}

func (r *interactionResponder) Defer(ctx context.Context) error {
	r.deferred = true
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx))
}

func (r *interactionResponder) Respond(ctx context.Context, reply game.Reply) (string, error) {
	if !r.deferred {
		return "", r.reply(ctx, reply)
	}

	content, embeds := embed(reply)
	edit := &discordgo.WebhookEdit{
		Content: &content,
		Embeds:  &embeds,
	}

	if reply.Image != nil {
		f, err := os.Open(reply.Image.Path)
		if err != nil {
			return "", fmt.Errorf("open image: %w", err)
		}
		defer f.Close()

		edit.Files = []*discordgo.File{{
			Name:        reply.Image.Name,
			ContentType: "image/png",
			Reader:      f,
		}}
	}

	msg, err := r.session.InteractionResponseEdit(r.interaction, edit, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// reply answers an interaction that was not deferred.
func (r *interactionResponder) reply(ctx context.Context, reply game.Reply) error {
	content, embeds := embed(reply)

	data := &discordgo.InteractionResponseData{
		Content: content,
		Embeds:  embeds,
	}
	if reply.Private {
		data.Flags = discordgo.MessageFlagsEphemeral
	}

	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
}

type discordMessage struct {
	session *discordgo.Session
	msg     *discordgo.Message
}

func (m discordMessage) AuthorID() string   { return m.msg.Author.ID }
func (m discordMessage) AuthorName() string { return displayName(m.msg.Author) }
func (m discordMessage) Content() string    { return m.msg.Content }
func (m discordMessage) Mention() string    { return m.msg.Author.Mention() }

func (m discordMessage) RepliedMessageID() string {
	if m.msg.MessageReference == nil {
		return ""
	}
	return m.msg.MessageReference.MessageID
}

// Reply answers in the channel. Messages cannot be ephemeral, so Private is
// ignored.
func (m discordMessage) Reply(ctx context.Context, r game.Reply) error {
	content, embeds := embed(r)
	_, err := m.session.ChannelMessageSendComplex(m.msg.ChannelID, &discordgo.MessageSend{
		Content:   content,
		Embeds:    embeds,
		Reference: m.msg.Reference(),
	}, discordgo.WithContext(ctx))
	return err
}

func (m discordMessage) React(ctx context.Context, emoji string) error {
	return m.session.MessageReactionAdd(m.msg.ChannelID, m.msg.ID, emoji, discordgo.WithContext(ctx))
}

func (m discordMessage) Send(ctx context.Context, r game.Reply) error {
	content, embeds := embed(r)
	_, err := m.session.ChannelMessageSendComplex(m.msg.ChannelID, &discordgo.MessageSend{
		Content: content,
		Embeds:  embeds,
	}, discordgo.WithContext(ctx))
	return err
}

type discordNames struct {
	session *discordgo.Session
}

func (n discordNames) DisplayName(ctx context.Context, identity string) (string, error) {
	u, err := n.session.User(identity, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return displayName(u), nil
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
