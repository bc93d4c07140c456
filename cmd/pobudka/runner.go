package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/jason-s-yu/pobudka/internal/models"
	"github.com/jason-s-yu/pobudka/internal/room"
	"github.com/pterm/pterm"
)

// seatWriter is the part of the local store that seats players.
type seatWriter interface {
	JoinRoom(ctx context.Context, roomID string, seat models.Seat) error
}

type runner struct {
	svc    *room.Service
	seats  seatWriter
	roomID string
	mode   models.GameMode
}

// localPlayerID is the seat id of the n-th (1-based) local player. In single
// player mode p1 is the human and the rest are scripted.
func localPlayerID(n int) string {
	return fmt.Sprintf("p%d", n)
}

// setup creates the room and its seats unless the room already exists, in
// which case the stored game is resumed.
func (r *runner) setup(ctx context.Context, names []string) error {
	_, err := r.svc.QueryState(ctx, r.roomID, localPlayerID(1))
	if err == nil {
		pterm.Info.Printfln("Resuming room %s", r.roomID)
		return nil
	}
	if !errors.Is(err, game.ErrRoomNotFound) {
		return err
	}

	if _, err := r.svc.CreateRoom(ctx, r.roomID, localPlayerID(1), r.mode); err != nil {
		return err
	}
	for i, name := range names {
		seat := models.Seat{PlayerID: localPlayerID(i + 1), Name: strings.TrimSpace(name), Seat: i + 1, Anonymous: true}
		if err := r.seats.JoinRoom(ctx, r.roomID, seat); err != nil {
			return err
		}
	}
	pterm.Success.Printfln("Created room %s with %d players", r.roomID, len(names))
	return nil
}

// view loads the state as the local screen shows it. Hotseat rooms are
// unredacted; single player rooms are seen by the human.
func (r *runner) view(ctx context.Context) (*game.ViewerGameState, error) {
	view, err := r.svc.QueryState(ctx, r.roomID, localPlayerID(1))
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, game.NewError(game.CodeMissingPrerequisiteState, "room %s has no visible state", r.roomID)
	}
	return view, nil
}

// activePlayer resolves who the next submitted line acts for.
func activePlayer(s models.GameState) string {
	idx := s.CurrentPlayerIndex
	if s.GamePhase == models.PhasePeeking && s.PeekingState != nil {
		idx = s.PeekingState.PlayerIndex
	}
	if idx < 0 || idx >= len(s.Players) {
		return localPlayerID(1)
	}
	return s.Players[idx].ID
}

// play submits one action per input line until the game ends, the input runs
// out or a line reads "quit".
func (r *runner) play(ctx context.Context, in io.Reader) error {
	view, err := r.view(ctx)
	if err != nil {
		return err
	}
	render(view.GameState)

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case line == "quit":
			return nil
		}

		action, err := game.ParseAction([]byte(line))
		if err != nil {
			pterm.Error.Printfln("%s: %v", game.CodeOf(err), err)
			continue
		}
		caller := activePlayer(view.GameState)
		if _, err := r.svc.SubmitAction(ctx, r.roomID, caller, action, uuid.NewString()); err != nil {
			pterm.Error.Printfln("%s: %v", game.CodeOf(err), err)
			continue
		}

		if view, err = r.view(ctx); err != nil {
			return err
		}
		render(view.GameState)
		if view.GamePhase == models.PhaseGameOver {
			return nil
		}
	}
	return sc.Err()
}
