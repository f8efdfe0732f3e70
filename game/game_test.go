package game

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Seednode/streetguess/catalog"
	"github.com/Seednode/streetguess/ledger"
	"github.com/Seednode/streetguess/round"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fileAcquirer struct {
	dir string
	err error
}

func (a *fileAcquirer) Acquire(_ context.Context, _ catalog.Mode, key string) (round.Acquisition, error) {
	if a.err != nil {
		return round.Acquisition{}, a.err
	}
	path := filepath.Join(a.dir, key+".png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		return round.Acquisition{}, err
	}
	return round.Acquisition{
		Candidate: catalog.Candidate{
			Label:     "Osaka",
			Reference: "https://maps.example/1",
			Answers:   []string{"japan", "osaka"},
		},
		ArtifactPath: path,
	}, nil
}

type fakeResponder struct {
	deferred  bool
	replies   []Reply
	sawImage  bool
	publishOK bool
}

func (r *fakeResponder) Defer(context.Context) error {
	r.deferred = true
	return nil
}

func (r *fakeResponder) Respond(_ context.Context, reply Reply) (string, error) {
	r.replies = append(r.replies, reply)
	if reply.Image != nil {
		_, err := os.Stat(reply.Image.Path)
		r.sawImage = err == nil
		if !r.publishOK {
			return "", errors.New("upload failed")
		}
	}
	return "anchor-1", nil
}

type fakeMessage struct {
	author, name, content, replyTo string

	replies   []Reply
	sent      []Reply
	reactions []string
}

func (m *fakeMessage) AuthorID() string         { return m.author }
func (m *fakeMessage) AuthorName() string       { return m.name }
func (m *fakeMessage) Content() string          { return m.content }
func (m *fakeMessage) RepliedMessageID() string { return m.replyTo }
func (m *fakeMessage) Mention() string          { return "@" + m.name }

func (m *fakeMessage) Reply(_ context.Context, r Reply) error {
	m.replies = append(m.replies, r)
	return nil
}

func (m *fakeMessage) React(_ context.Context, emoji string) error {
	m.reactions = append(m.reactions, emoji)
	return nil
}

func (m *fakeMessage) Send(_ context.Context, r Reply) error {
	m.sent = append(m.sent, r)
	return nil
}

type mapNames map[string]string

func (n mapNames) DisplayName(_ context.Context, id string) (string, error) {
	if name, ok := n[id]; ok {
		return name, nil
	}
	return "", errors.New("unknown user")
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) RoundEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      *Service
	ledger   *ledger.Ledger
	acquirer *fileAcquirer
	events   *recorder
}

func newFixture(t *testing.T, opts ...round.Option) *fixture {
	t.Helper()

	f := &fixture{
		ledger:   ledger.New(),
		acquirer: &fileAcquirer{dir: t.TempDir()},
		events:   &recorder{},
	}
	logger := zaptest.NewLogger(t)
	m := round.NewMachine(f.acquirer, f.ledger, append([]round.Option{round.WithLogger(logger)}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	f.svc = NewService(m, f.ledger, logger, f.events)
	return f
}

func TestStartRoundPublishesAndRemovesArtifact(t *testing.T) {
	f := newFixture(t)
	r := &fakeResponder{publishOK: true}

	require.NoError(t, f.svc.StartRound(context.Background(), catalog.ModeJapan, r))

	assert.True(t, r.deferred)
	require.Len(t, r.replies, 1)
	assert.Equal(t, GameTitle, r.replies[0].Title)
	assert.NotContains(t, r.replies[0].Text, "Osaka", "the label stays hidden until resolved")
	assert.True(t, r.sawImage)

	entries, err := os.ReadDir(f.acquirer.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Equal(t, []EventType{EventRoundStarted}, f.events.types())
}

func TestStartRoundRemovesArtifactWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	r := &fakeResponder{}

	require.Error(t, f.svc.StartRound(context.Background(), catalog.ModeJapan, r))

	entries, err := os.ReadDir(f.acquirer.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStartRoundAlreadyActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.StartRound(ctx, catalog.ModeJapan, &fakeResponder{publishOK: true}))

	r := &fakeResponder{publishOK: true}
	require.NoError(t, f.svc.StartRound(ctx, catalog.ModeWorld, r))
	require.Len(t, r.replies, 1)
	assert.Equal(t, "A round is already in progress.", r.replies[0].Text)
}

func TestStartRoundAcquisitionFailure(t *testing.T) {
	f := newFixture(t)
	f.acquirer.err = errors.New("scene canvas not found")
	r := &fakeResponder{}

	err := f.svc.StartRound(context.Background(), catalog.ModeJapan, r)

	require.ErrorIs(t, err, round.ErrAcquisitionFailed)
	require.Len(t, r.replies, 1)
	assert.Contains(t, r.replies[0].Text, "Could not fetch")
}

func TestHandleGuess(t *testing.T) {
	f := newFixture(t, round.WithScorer(round.Scorer{RejectMultiToken: true}))
	ctx := context.Background()

	idle := &fakeMessage{author: "u0", name: "zero", content: "osaka"}
	require.NoError(t, f.svc.HandleGuess(ctx, idle))
	assert.Empty(t, idle.reactions, "no round, no acknowledgement")

	require.NoError(t, f.svc.StartRound(ctx, catalog.ModeJapan, &fakeResponder{publishOK: true}))

	wrong := &fakeMessage{author: "u1", name: "one", content: "kyoto", replyTo: "anchor-1"}
	require.NoError(t, f.svc.HandleGuess(ctx, wrong))
	assert.Equal(t, []string{WrongReaction}, wrong.reactions)
	assert.Empty(t, wrong.replies)

	chatty := &fakeMessage{author: "u1", name: "one", content: "maybe kyoto"}
	require.NoError(t, f.svc.HandleGuess(ctx, chatty))
	assert.Equal(t, []string{WrongReaction}, chatty.reactions)
	require.Len(t, chatty.replies, 1)

	right := &fakeMessage{author: "u2", name: "two", content: "Osaka!", replyTo: "anchor-1"}
	require.NoError(t, f.svc.HandleGuess(ctx, right))
	require.Len(t, right.sent, 1)
	assert.Equal(t, CorrectTitle, right.sent[0].Title)
	assert.Contains(t, right.sent[0].Text, "@two")
	assert.Contains(t, right.sent[0].Text, "Osaka")
	assert.Contains(t, right.sent[0].Text, "2 points")
	assert.Equal(t, "https://maps.example/1", right.sent[0].URL)

	assert.Equal(t, 2, f.svc.scores.Read(catalog.ModeJapan, "u2"))
	assert.Equal(t, []EventType{EventRoundStarted, EventRoundResolved}, f.events.types())
}

func TestScoreAndLeaderboard(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Import(map[string]map[string]int{
		"japan": {"u1": 5, "u2": 9, "u3": 1},
	}))

	assert.Equal(t, "Your score in Japan mode is 5 points", f.svc.Score(catalog.ModeJapan, "u1").Title)
	assert.Equal(t, "Your score in World mode is 0 points", f.svc.Score(catalog.ModeWorld, "u1").Title)

	board := f.svc.Leaderboard(context.Background(), catalog.ModeJapan, 2, mapNames{"u2": "two"})
	assert.Equal(t, "Top 2 (Japan)", board.Title)
	assert.Equal(t, "1. two - 9 points\n2. (unknown player) - 5 points", board.Text)

	empty := f.svc.Leaderboard(context.Background(), catalog.ModeWorld, 0, nil)
	assert.Equal(t, "No scores yet.", empty.Text)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Credit(catalog.ModeJapan, "u1", 3))

	reply, err := f.svc.Reset(ctx, false)
	require.NoError(t, err)
	assert.True(t, reply.Private)
	assert.Equal(t, 3, f.ledger.Read(catalog.ModeJapan, "u1"))

	require.NoError(t, f.svc.StartRound(ctx, catalog.ModeJapan, &fakeResponder{publishOK: true}))

	reply, err = f.svc.Reset(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "All scores have been reset.", reply.Title)
	assert.Equal(t, 0, f.ledger.Read(catalog.ModeJapan, "u1"))
	assert.Equal(t, []EventType{EventRoundStarted, EventScoresReset, EventRoundAborted}, f.events.types())

	late := &fakeMessage{author: "u1", content: "osaka"}
	require.NoError(t, f.svc.HandleGuess(ctx, late))
	assert.Empty(t, late.sent)
	assert.Empty(t, late.reactions)
}
