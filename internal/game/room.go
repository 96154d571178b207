// Package game runs one drawing-and-guessing match: turn order, word
// selection, the per-second drawing timer, hints, scoring and final results.
//
// A Room never starts goroutines of its own for timing. Its owner drives it by
// calling Tick from a single loop and calling the wake hook's target again
// whenever Tick's answer may have changed.
package game

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sketchroom/internal/event"
	"sketchroom/internal/rules"
	"sketchroom/internal/scoring"
	"sketchroom/internal/session"
	"sketchroom/internal/words"
	"sketchroom/pkg/realtime"
)

const recordTimeout = 30 * time.Second

// maxCatchUp bounds the steps a single Tick may take after a long stall.
const maxCatchUp = 4096

// WordSource offers the drawer one word per difficulty.
type WordSource interface {
	Choices(ctx context.Context) []words.Choice
}

// ResultRecorder persists final results. Failures are logged, never surfaced
// to players.
type ResultRecorder interface {
	RecordGame(ctx context.Context, res Results) error
}

// Params configures a new Room.
type Params struct {
	ID      string
	Mode    rules.Mode
	HostID  string
	Players []session.Profile // lobby join order

	Words    WordSource
	Scoring  scoring.Engine
	Emitter  event.Emitter
	Recorder ResultRecorder // optional
	Log      zerolog.Logger

	Clock       func() time.Time // defaults to time.Now
	Rand        *rand.Rand       // turn order shuffle; defaults to a time seed
	WordTimeout time.Duration
	Countdown   time.Duration // defaults to rules.GameStartCountdown
	RoundPause  time.Duration // defaults to rules.RoundEndDelay
}

type Room struct {
	id       string
	scope    string
	mode     rules.Mode
	settings rules.ModeSettings
	hostID   string

	words       WordSource
	scorer      scoring.Engine
	emit        event.Emitter
	recorder    ResultRecorder
	log         zerolog.Logger
	clock       func() time.Time
	wordTimeout time.Duration
	countdown   time.Duration
	roundPause  time.Duration

	mu           sync.Mutex
	status       Status
	order        []string // join order
	players      map[string]*Player
	turnOrder    []string
	totalRounds  int
	currentRound int
	roundsPlayed int
	round        *RoundState
	guessers     []Guesser
	choices      []words.Choice
	needWords    bool // round started, choices not fetched yet
	fetching     bool
	canvas       []string // undoable action ids, oldest first
	timer        *realtime.Countdown
	deadline     time.Time
	startedAt    time.Time
	endedAt      time.Time
	results      *Results
	wake         func()
	onEnd        []func(Results)
}

// NewRoom builds a room in the pending state. Every player starts connected.
func NewRoom(p Params) *Room {
	r := &Room{
		id:          p.ID,
		scope:       event.GameScope(p.ID),
		mode:        p.Mode,
		settings:    p.Mode.Settings(),
		hostID:      p.HostID,
		words:       p.Words,
		scorer:      p.Scoring,
		emit:        p.Emitter,
		recorder:    p.Recorder,
		log:         p.Log.With().Str("game", p.ID).Logger(),
		clock:       p.Clock,
		wordTimeout: p.WordTimeout,
		countdown:   p.Countdown,
		roundPause:  p.RoundPause,
		status:      StatusPending,
		players:     make(map[string]*Player, len(p.Players)),
		wake:        func() {},
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.wordTimeout <= 0 {
		r.wordTimeout = rules.DefaultWordFetchWait
	}
	if r.countdown <= 0 {
		r.countdown = rules.GameStartCountdown
	}
	if r.roundPause <= 0 {
		r.roundPause = rules.RoundEndDelay
	}
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for _, prof := range p.Players {
		if _, dup := r.players[prof.UserID]; dup {
			continue
		}
		r.order = append(r.order, prof.UserID)
		r.players[prof.UserID] = &Player{Profile: prof, IsConnected: true}
	}
	r.turnOrder = append([]string(nil), r.order...)
	rng.Shuffle(len(r.turnOrder), func(i, j int) {
		r.turnOrder[i], r.turnOrder[j] = r.turnOrder[j], r.turnOrder[i]
	})
	r.totalRounds = len(r.turnOrder) * r.settings.RoundsPerPlayer
	return r
}

func (r *Room) ID() string     { return r.id }
func (r *Room) Scope() string  { return r.scope }
func (r *Room) HostID() string { return r.hostID }

// SetWake installs the hook called whenever the room's next deadline may have
// moved. It is called with the room lock held and must not block.
func (r *Room) SetWake(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		fn = func() {}
	}
	r.wake = fn
}

// OnEnd registers fn to run once, synchronously, when the game ends. fn must
// not call back into the room.
func (r *Room) OnEnd(fn func(Results)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results != nil {
		fn(*r.results)
		return
	}
	r.onEnd = append(r.onEnd, fn)
}

// Start announces the pre-game countdown. The first round begins on the first
// Tick at or after the countdown deadline.
func (r *Room) Start(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case StatusPending:
	case StatusEnded:
		return ErrGameEnded
	default:
		return ErrAlreadyStarted
	}
	r.status = StatusStarting
	r.startedAt = now
	r.deadline = now.Add(r.countdown)
	r.broadcast(event.GameStarting, startingPayload{Countdown: int(r.countdown / time.Second)})
	r.log.Info().Int("players", len(r.order)).Int("rounds", r.totalRounds).Msg("game starting")
	if r.connectedLocked() < rules.MinPlayers {
		r.endGameLocked(now)
	}
	r.wake()
	return nil
}

// Tick advances every phase whose deadline has passed at now and returns when
// it next needs to run. Calling it early is harmless. Word choices are fetched
// with the room unlocked, so chat and departures are never held up by the
// word store.
func (r *Room) Tick(now time.Time) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanceLocked(now)
	for r.needWords && !r.fetching {
		rs := r.round
		r.fetching = true
		r.mu.Unlock()
		choices := r.fetchChoices()
		r.mu.Lock()
		r.fetching = false
		r.offerChoicesLocked(rs, choices, now)
		r.advanceLocked(now)
	}
	return r.nextWakeLocked(now)
}

func (r *Room) fetchChoices() []words.Choice {
	ctx, cancel := context.WithTimeout(context.Background(), r.wordTimeout)
	defer cancel()
	return r.words.Choices(ctx)
}

// offerChoicesLocked hands fetched choices to the drawer of rs. They are
// dropped if that round ended while the fetch was running.
func (r *Room) offerChoicesLocked(rs *RoundState, choices []words.Choice, now time.Time) {
	if !r.needWords || r.round != rs {
		return
	}
	r.needWords = false
	r.choices = choices
	r.emit.EmitTo(rs.DrawerID, event.New(event.RoundWordSelection, wordSelectionPayload{
		Choices:   r.choices,
		TimeLimit: r.settings.WordSelectionTime,
	}))
	r.deadline = now.Add(time.Duration(r.settings.WordSelectionTime) * time.Second)
}

func (r *Room) advanceLocked(now time.Time) {
	for i := 0; i < maxCatchUp; i++ {
		switch {
		case r.needWords:
			return
		case r.status == StatusStarting && !now.Before(r.deadline):
			r.status = StatusPlaying
			r.broadcast(event.GameStarted, startedPayload{Game: r.stateLocked()})
			r.startRoundLocked(now)
		case r.status != StatusPlaying || r.round == nil:
			return
		case r.round.Phase == PhaseWordSelection && !now.Before(r.deadline):
			r.log.Debug().Int("round", r.round.RoundNumber).Msg("word selection timed out")
			r.selectWordLocked(0, now)
		case r.round.Phase == PhaseDrawing && (r.timer.Due(now) || r.timer.Expired()):
			r.tickSecondLocked(now)
		case r.round.Phase == PhaseRoundEnd && !now.Before(r.deadline):
			r.startRoundLocked(now)
		default:
			return
		}
	}
}

func (r *Room) nextWakeLocked(now time.Time) (time.Time, bool) {
	switch r.status {
	case StatusStarting:
		return r.deadline, false
	case StatusPlaying:
		if r.needWords {
			return now, false
		}
		if r.round != nil && r.round.Phase == PhaseDrawing {
			if next, ok := r.timer.NextWake(); ok {
				return next, false
			}
			return now, false
		}
		return r.deadline, false
	default:
		return time.Time{}, true
	}
}

// startRoundLocked moves to the next round whose drawer is still connected,
// skipping absent drawers. It ends the game when rounds run out.
func (r *Room) startRoundLocked(now time.Time) {
	var drawer *Player
	for skipped := 0; drawer == nil; skipped++ {
		r.currentRound++
		if r.currentRound > r.totalRounds || skipped >= len(r.turnOrder) {
			r.currentRound = min(r.currentRound, r.totalRounds)
			r.endGameLocked(now)
			return
		}
		id := r.turnOrder[(r.currentRound-1)%len(r.turnOrder)]
		if p := r.players[id]; p.IsConnected {
			drawer = p
		} else {
			r.log.Debug().Str("drawer", id).Int("round", r.currentRound).Msg("skipping absent drawer")
		}
	}

	r.roundsPlayed++
	drawer.RoundsDrawn++
	for _, p := range r.players {
		p.IsDrawing = p.UserID == drawer.UserID
		p.HasGuessedCorrectly = false
	}
	r.guessers = nil
	r.canvas = nil
	r.timer = nil
	r.round = &RoundState{
		RoundNumber:     r.currentRound,
		DrawerID:        drawer.UserID,
		TimeRemaining:   r.settings.DrawingTime,
		TotalTime:       r.settings.DrawingTime,
		CorrectGuessers: []string{},
		Phase:           PhaseWordSelection,
	}
	r.broadcast(event.RoundStart, roundStartPayload{
		RoundNumber: r.currentRound,
		DrawerID:    drawer.UserID,
		TotalTime:   r.settings.DrawingTime,
	})
	r.choices = nil
	r.needWords = true
	r.deadline = time.Time{}
}

// SelectWord locks in the drawer's choice. Out-of-range indexes pick the first
// choice.
func (r *Room) SelectWord(userID string, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPlaying || r.round == nil {
		return ErrWrongPhase
	}
	if r.round.DrawerID != userID {
		return ErrNotDrawer
	}
	if r.round.Phase != PhaseWordSelection || r.needWords {
		return ErrWrongPhase
	}
	r.selectWordLocked(index, r.clock())
	r.wake()
	return nil
}

func (r *Room) selectWordLocked(index int, now time.Time) {
	rs := r.round
	if len(r.choices) == 0 {
		// Nothing to draw; close the round without points.
		r.log.Warn().Int("round", rs.RoundNumber).Msg("no word choices available")
		r.endRoundLocked(now)
		return
	}
	choice := r.choices[0]
	if index >= 0 && index < len(r.choices) {
		choice = r.choices[index]
	}
	r.choices = nil
	r.deadline = time.Time{}

	eligible := 0
	for _, p := range r.players {
		if p.IsConnected && p.UserID != rs.DrawerID {
			eligible++
		}
	}
	rs.Word = choice.Word
	rs.Difficulty = choice.Difficulty
	rs.MaskedWord = MaskWord(choice.Word, 0)
	rs.TimeRemaining = rs.TotalTime
	rs.GuessersRemaining = eligible
	rs.eligible = eligible
	rs.Phase = PhaseDrawing
	r.canvas = nil

	r.broadcast(event.CanvasClear, canvasPayload{UserID: rs.DrawerID, Timestamp: event.Now()})
	length := len([]rune(choice.Word))
	r.emit.EmitTo(rs.DrawerID, event.New(event.RoundWordSelected, wordSelectedPayload{
		Difficulty: choice.Difficulty,
		WordLength: length,
		MaskedWord: choice.Word,
	}))
	r.emit.Broadcast(r.scope, event.New(event.RoundWordSelected, wordSelectedPayload{
		Difficulty: choice.Difficulty,
		WordLength: length,
		MaskedWord: rs.MaskedWord,
	}), rs.DrawerID)

	r.timer = realtime.StartCountdown(rs.TotalTime, now)
	r.log.Debug().Int("round", rs.RoundNumber).Str("difficulty", string(choice.Difficulty)).Msg("word selected")
	if eligible == 0 {
		r.endRoundLocked(now)
	}
}

func (r *Room) tickSecondLocked(now time.Time) {
	rs := r.round
	if r.timer.Due(now) {
		rs.TimeRemaining = r.timer.Step()
	} else {
		rs.TimeRemaining = r.timer.Remaining
	}

	if due := hintsDue(rs.TimeRemaining); due > rs.HintsRevealed {
		rs.HintsRevealed = due
		rs.MaskedWord = MaskWord(rs.Word, due)
		r.broadcast(event.RoundHintReveal, hintPayload{MaskedWord: rs.MaskedWord, HintsRevealed: due})
	}
	r.broadcast(event.RoundTimerUpdate, timerPayload{
		TimeRemaining: rs.TimeRemaining,
		TimerHalved:   rs.halved,
	})

	if rs.TimeRemaining <= 0 || rs.GuessersRemaining <= 0 {
		r.endRoundLocked(now)
	}
}

// endRoundLocked closes the current round once. The drawer is only paid if a
// word was being drawn and they are still here.
func (r *Room) endRoundLocked(now time.Time) {
	rs := r.round
	if rs == nil || rs.Phase == PhaseRoundEnd {
		return
	}
	drawing := rs.Phase == PhaseDrawing
	rs.Phase = PhaseRoundEnd
	r.timer = nil
	r.choices = nil
	r.needWords = false

	drawerPoints := 0
	if drawer := r.players[rs.DrawerID]; drawing && drawer.IsConnected {
		drawerPoints = r.scorer.DrawerPoints(len(r.guessers), rs.eligible, r.settings.MaxPoints, rs.Difficulty)
		drawer.Points += drawerPoints
	}

	scores := make([]scoreLine, 0, len(r.order))
	for _, id := range r.order {
		scores = append(scores, scoreLine{UserID: id, TotalPoints: r.players[id].Points})
	}
	r.broadcast(event.RoundEnd, roundEndPayload{
		RoundNumber:  rs.RoundNumber,
		Word:         rs.Word,
		DrawerID:     rs.DrawerID,
		DrawerPoints: drawerPoints,
		Guessers:     append([]Guesser{}, r.guessers...),
		Scores:       scores,
	})
	r.log.Debug().Int("round", rs.RoundNumber).Int("guessers", len(r.guessers)).Int("drawerPoints", drawerPoints).Msg("round ended")
	r.deadline = now.Add(r.roundPause)
}

func (r *Room) endGameLocked(now time.Time) {
	if r.status == StatusEnded {
		return
	}
	r.status = StatusEnded
	r.endedAt = now
	r.timer = nil
	r.choices = nil
	r.needWords = false
	r.deadline = time.Time{}
	for _, p := range r.players {
		p.IsDrawing = false
	}

	res := r.resultsLocked()
	r.results = &res
	r.broadcast(event.GameEnded, endedPayload{Results: res})
	r.log.Info().Int("rounds", res.TotalRounds).Int("duration", res.Duration).Msg("game ended")

	if r.recorder != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			defer cancel()
			if err := r.recorder.RecordGame(ctx, res); err != nil {
				r.log.Error().Err(err).Msg("record game results")
			}
		}()
	}
	for _, fn := range r.onEnd {
		fn(res)
	}
	r.onEnd = nil
}

func (r *Room) resultsLocked() Results {
	ranked := append([]string(nil), r.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return r.players[ranked[i]].Points > r.players[ranked[j]].Points
	})
	out := Results{
		GameID:      r.id,
		Mode:        r.mode,
		TotalRounds: r.roundsPlayed,
		Players:     make([]PlayerResult, 0, len(ranked)),
		EndedAt:     r.endedAt,
	}
	if !r.startedAt.IsZero() {
		out.Duration = int(r.endedAt.Sub(r.startedAt) / time.Second)
	}
	for i, id := range ranked {
		p := r.players[id]
		out.Players = append(out.Players, PlayerResult{
			Profile:        p.Profile,
			Rank:           i + 1,
			TotalPoints:    p.Points,
			CorrectGuesses: p.CorrectGuesses,
			FirstGuesses:   p.FirstGuesses,
			RoundsDrawn:    p.RoundsDrawn,
			PointsGained:   p.Points,
			LeftEarly:      !p.IsConnected,
		})
	}
	return out
}

// Disconnect marks the player absent. A departing drawer ends the round, a
// departing unsolved guesser shrinks the pool, and fewer than two connected
// players ends the game.
func (r *Room) Disconnect(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.departLocked(userID, false, r.clock())
}

// Kick removes target on the host's behalf, exactly as if they had left.
func (r *Room) Kick(hostID, targetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hostID != r.hostID {
		return ErrNotHost
	}
	if targetID == hostID {
		return ErrCannotKickSelf
	}
	if _, ok := r.players[targetID]; !ok {
		return ErrNotInGame
	}
	r.departLocked(targetID, true, r.clock())
	return nil
}

func (r *Room) departLocked(userID string, kicked bool, now time.Time) {
	p, ok := r.players[userID]
	if !ok || !p.IsConnected {
		return
	}
	p.IsConnected = false
	p.Kicked = kicked
	r.broadcast(event.GamePlayerLeft, playerLeftPayload{UserID: userID, Username: p.Username, Kicked: kicked})
	r.log.Info().Str("player", userID).Bool("kicked", kicked).Msg("player left game")

	if r.status == StatusPlaying && r.round != nil {
		rs := r.round
		switch {
		case rs.DrawerID == userID:
			r.endRoundLocked(now)
		case rs.Phase == PhaseDrawing && !p.HasGuessedCorrectly:
			rs.GuessersRemaining--
			if rs.GuessersRemaining <= 0 {
				r.endRoundLocked(now)
			}
		}
	}
	if r.status != StatusEnded && r.status != StatusPending && r.connectedLocked() < rules.MinPlayers {
		r.endGameLocked(now)
	}
	r.wake()
}

func (r *Room) connectedLocked() int {
	n := 0
	for _, p := range r.players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// State returns a snapshot that never contains the current word.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Room) stateLocked() State {
	s := State{
		ID:           r.id,
		Mode:         r.mode,
		TotalRounds:  r.totalRounds,
		CurrentRound: r.currentRound,
		Status:       r.status,
		HostID:       r.hostID,
		Players:      make([]Player, 0, len(r.order)),
		TurnOrder:    append([]string(nil), r.turnOrder...),
	}
	for _, id := range r.order {
		s.Players = append(s.Players, *r.players[id])
	}
	if r.round != nil {
		rs := *r.round
		rs.CorrectGuessers = append([]string{}, r.round.CorrectGuessers...)
		if r.round.FirstGuessTime != nil {
			ft := *r.round.FirstGuessTime
			rs.FirstGuessTime = &ft
		}
		s.Round = &rs
		if r.status == StatusPlaying {
			s.CurrentDrawerID = rs.DrawerID
		}
	}
	return s
}

// Status reports the room's lifecycle state.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Members returns every player id in join order, connected or not.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Connected reports whether userID is in the room and still connected.
func (r *Room) Connected(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[userID]
	return ok && p.IsConnected
}

func (r *Room) IsDrawer(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == StatusPlaying && r.round != nil && r.round.DrawerID == userID
}

func (r *Room) HasGuessed(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[userID]
	return ok && p.HasGuessedCorrectly
}

func (r *Room) broadcast(name string, data any) {
	r.emit.Broadcast(r.scope, event.New(name, data), "")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
