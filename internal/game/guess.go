package game

import (
	"github.com/google/uuid"

	"sketchroom/internal/event"
	"sketchroom/internal/rules"
)

// CheckGuess scores guess for userID without producing any chat traffic. It
// returns a zero result for wrong words, repeat solvers, the drawer, and any
// phase other than drawing.
func (r *Room) CheckGuess(userID, guess string) GuessResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	res, last := r.checkGuessLocked(userID, guess)
	if last {
		r.endRoundLocked(now)
		r.wake()
	}
	return res
}

func (r *Room) checkGuessLocked(userID, guess string) (GuessResult, bool) {
	rs := r.round
	if r.status != StatusPlaying || rs == nil || rs.Phase != PhaseDrawing || rs.Word == "" {
		return GuessResult{}, false
	}
	p, ok := r.players[userID]
	if !ok || !p.IsConnected || p.HasGuessedCorrectly || userID == rs.DrawerID {
		return GuessResult{}, false
	}
	if normalize(guess) != normalize(rs.Word) {
		return GuessResult{}, false
	}

	order := len(r.guessers) + 1
	isFirst := order == 1
	if isFirst {
		first := rs.TimeRemaining
		rs.FirstGuessTime = &first
		p.FirstGuesses++
		if rules.HalveOnFirstGuess {
			if halved := max(rules.MinTimeAfterHalve, rs.TimeRemaining/2); halved < rs.TimeRemaining {
				rs.TimeRemaining = halved
				rs.halved = true
				r.timer.Set(halved)
			}
		}
	}
	points := r.scorer.GuesserPoints(order, rs.TimeRemaining, *rs.FirstGuessTime, r.settings.MaxPoints, rs.Difficulty)

	p.HasGuessedCorrectly = true
	p.CorrectGuesses++
	p.Points += points
	rs.CorrectGuessers = append(rs.CorrectGuessers, userID)
	rs.GuessersRemaining--
	r.guessers = append(r.guessers, Guesser{
		UserID:        userID,
		Username:      p.Username,
		Points:        points,
		GuessOrder:    order,
		TimeRemaining: rs.TimeRemaining,
	})

	r.broadcast(event.RoundCorrectGuess, correctGuessPayload{
		UserID:            userID,
		Username:          p.Username,
		Points:            points,
		IsFirst:           isFirst,
		GuessOrder:        order,
		GuessersRemaining: rs.GuessersRemaining,
	})
	res := GuessResult{
		Correct:       true,
		Points:        points,
		IsFirst:       isFirst,
		GuessOrder:    order,
		TimeRemaining: rs.TimeRemaining,
	}
	return res, rs.GuessersRemaining <= 0
}

// Guess handles a guess sent through chat. Wrong guesses are shown only to
// players still guessing; messages from players who already solved the round
// stay among solvers.
func (r *Room) Guess(userID, text string) (GuessResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[userID]
	if !ok {
		return GuessResult{}, ErrNotInGame
	}
	if r.status == StatusEnded {
		return GuessResult{}, ErrGameEnded
	}
	rs := r.round
	if rs != nil && rs.DrawerID == userID && rs.Phase != PhaseRoundEnd {
		return GuessResult{}, ErrDrawerCannotGuess
	}
	now := r.clock()
	ts := now.UnixMilli()

	if r.solvingLocked() && p.HasGuessedCorrectly {
		r.toSolvers(event.New(event.ChatMessage, chatPayload{
			ID: uuid.NewString(), UserID: userID, Username: p.Username, Message: text, Timestamp: ts,
		}))
		return GuessResult{}, nil
	}

	res, last := r.checkGuessLocked(userID, text)
	if res.Correct {
		r.broadcast(event.ChatCorrectGuess, chatCorrectPayload{
			ID: uuid.NewString(), UserID: userID, Username: p.Username, Points: res.Points, IsFirst: res.IsFirst, Timestamp: ts,
		})
		if last {
			r.endRoundLocked(now)
		}
		r.wake()
		return res, nil
	}

	e := event.New(event.ChatGuess, guessPayload{
		ID: uuid.NewString(), UserID: userID, Username: p.Username, Guess: text, Timestamp: ts,
	})
	if !r.solvingLocked() {
		r.emit.Broadcast(r.scope, e, "")
		return res, nil
	}
	for _, id := range r.order {
		q := r.players[id]
		if q.IsConnected && !q.HasGuessedCorrectly && id != rs.DrawerID {
			r.emit.EmitTo(id, e)
		}
	}
	return res, nil
}

// Chat posts a free-text message. While a word is being drawn, players who
// already solved it can only talk among themselves.
func (r *Room) Chat(userID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[userID]
	if !ok {
		return ErrNotInGame
	}
	e := event.New(event.ChatMessage, chatPayload{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  p.Username,
		Message:   text,
		Timestamp: r.clock().UnixMilli(),
	})
	if r.solvingLocked() && p.HasGuessedCorrectly {
		r.toSolvers(e)
		return nil
	}
	r.emit.Broadcast(r.scope, e, "")
	return nil
}

// solvingLocked reports whether a word is currently hidden from guessers.
func (r *Room) solvingLocked() bool {
	return r.status == StatusPlaying && r.round != nil && r.round.Phase == PhaseDrawing
}

func (r *Room) toSolvers(e event.Event) {
	for _, id := range r.order {
		if q := r.players[id]; q.IsConnected && q.HasGuessedCorrectly {
			r.emit.EmitTo(id, e)
		}
	}
}
