package game

import (
	"sketchroom/internal/event"
)

// Canvas relays one drawer action to everyone else in the room. Completed
// strokes and fills are remembered so undo can name what it removed.
func (r *Room) Canvas(userID string, a CanvasAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs := r.round
	if r.status != StatusPlaying || rs == nil || rs.DrawerID != userID {
		return ErrNotDrawer
	}
	if rs.Phase != PhaseDrawing {
		return ErrWrongPhase
	}

	out := canvasPayload{UserID: userID, ActionID: a.ActionID, Data: a.Data, Timestamp: event.Now()}
	switch a.Kind {
	case event.CanvasStrokeStart, event.CanvasStrokeData:
	case event.CanvasStrokeEnd, event.CanvasFill:
		if a.ActionID != "" {
			r.canvas = append(r.canvas, a.ActionID)
		}
	case event.CanvasClear:
		r.canvas = nil
		out.ActionID, out.Data = "", nil
	case event.CanvasUndo:
		id, ok := r.undoLocked(a.ActionID)
		if !ok {
			return nil
		}
		out.ActionID, out.Data = id, nil
	default:
		return ErrUnknownCanvasAction
	}
	r.emit.Broadcast(r.scope, event.New(a.Kind, out), userID)
	return nil
}

// undoLocked removes actionID from the history, or the latest action when
// actionID is empty or unknown.
func (r *Room) undoLocked(actionID string) (string, bool) {
	if len(r.canvas) == 0 {
		return "", false
	}
	for i := len(r.canvas) - 1; actionID != "" && i >= 0; i-- {
		if r.canvas[i] == actionID {
			r.canvas = append(r.canvas[:i], r.canvas[i+1:]...)
			return actionID, true
		}
	}
	last := r.canvas[len(r.canvas)-1]
	r.canvas = r.canvas[:len(r.canvas)-1]
	return last, true
}
