package main

import (
	"fmt"
	"strings"

	"github.com/jason-s-yu/pobudka/internal/models"
	"github.com/pterm/pterm"
)

// cardLabel shows a card face or a back. Specials are tagged with their action.
func cardLabel(c models.Card, faceUp bool) string {
	if !faceUp || c == models.HiddenCard {
		return pterm.Gray("##")
	}
	if c.IsSpecial {
		return pterm.LightMagenta(fmt.Sprintf("%d*%s", c.Value, c.SpecialAction))
	}
	return pterm.LightCyan(fmt.Sprintf("%d", c.Value))
}

// playerBox renders one player's hand. On a shared screen cards stay face down
// unless the slot is face up or the round is being scored.
func playerBox(p models.Player, active, reveal bool) string {
	labels := make([]string, len(p.Hand))
	for i, slot := range p.Hand {
		labels[i] = cardLabel(slot.Card, reveal || slot.IsFaceUp)
	}
	title := p.Name
	if active {
		title = pterm.LightGreen("> " + p.Name)
	}
	box := pterm.DefaultBox.WithHorizontalPadding(2).WithTitle(title).WithTitleTopLeft()
	return box.Sprintf("%s\nScore: %d", strings.Join(labels, "  "), p.Score)
}

// tableBox renders the piles and whatever the active player is holding.
func tableBox(s models.GameState) string {
	discard := pterm.Gray("empty")
	if n := len(s.DiscardPile); n > 0 {
		discard = cardLabel(s.DiscardPile[n-1], true)
	}
	lines := []string{
		fmt.Sprintf("Phase: %s   Round: %d", s.GamePhase, s.RoundNumber),
		fmt.Sprintf("Draw pile: %d   Discard: %s", len(s.DrawPile), discard),
	}
	if s.DrawnCard != nil {
		lines = append(lines, "Holding: "+cardLabel(*s.DrawnCard, true))
	}
	if len(s.TempCards) > 0 {
		temp := make([]string, len(s.TempCards))
		for i, c := range s.TempCards {
			temp[i] = fmt.Sprintf("[id %d] %s", c.ID, cardLabel(c, true))
		}
		lines = append(lines, "Choose: "+strings.Join(temp, "  "))
	}
	if s.ActionMessage != "" {
		lines = append(lines, pterm.LightYellow(s.ActionMessage))
	}
	return pterm.DefaultBox.WithHorizontalPadding(4).WithTitle("|TABLE|").WithTitleTopCenter().Sprint(strings.Join(lines, "\n"))
}

func render(s models.GameState) {
	reveal := s.GamePhase == models.PhaseRoundEnd || s.GamePhase == models.PhaseGameOver
	active := -1
	if s.GamePhase.RoundInProgress() {
		active = s.PlayerIndex(activePlayer(s))
	}

	var row []pterm.Panel
	for i, p := range s.Players {
		row = append(row, pterm.Panel{Data: playerBox(p, i == active, reveal)})
	}
	_ = pterm.DefaultPanel.WithPanels([][]pterm.Panel{row, {{Data: tableBox(s)}}}).Render()

	if len(s.LastRoundScores) > 0 && reveal {
		data := pterm.TableData{{"Player", "Hand", "Penalty", "Round", "Total"}}
		for _, rs := range s.LastRoundScores {
			data = append(data, []string{
				rs.PlayerID,
				fmt.Sprint(rs.HandValue),
				fmt.Sprint(rs.Penalty),
				fmt.Sprint(rs.RoundScore),
				fmt.Sprint(rs.TotalScore),
			})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}
	if s.GamePhase == models.PhaseGameOver && s.WinnerID != "" {
		pterm.Success.Printfln("Game over, winner: %s", s.WinnerID)
	}
}
