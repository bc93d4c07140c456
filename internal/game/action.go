// internal/game/action.go
package game

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ActionType is the wire discriminator of an action.
type ActionType string

const (
	ActionPeekCard         ActionType = "PEEK_CARD"
	ActionFinishPeeking    ActionType = "FINISH_PEEKING"
	ActionDrawFromDeck     ActionType = "DRAW_FROM_DECK"
	ActionDrawFromDiscard  ActionType = "DRAW_FROM_DISCARD"
	ActionDiscardHeldCard  ActionType = "DISCARD_HELD_CARD"
	ActionSwapHeldCard     ActionType = "SWAP_HELD_CARD"
	ActionUseSpecialAction ActionType = "USE_SPECIAL_ACTION"
	ActionPeek1Select      ActionType = "ACTION_PEEK_1_SELECT"
	ActionSwap2Select      ActionType = "ACTION_SWAP_2_SELECT"
	ActionTake2Choose      ActionType = "ACTION_TAKE_2_CHOOSE"
	ActionCallPobudka      ActionType = "CALL_POBUDKA"
	ActionStartNewRound    ActionType = "START_NEW_ROUND"
)

// Action is the closed set of moves a caller can submit. Every variant is
// handled by the type switch in Engine.Apply.
type Action interface {
	Type() ActionType
	isAction()
}

// PeekCard reveals one of the caller's own cards during the peeking phase.
// PlayerID may be omitted; when present it must be the caller.
type PeekCard struct {
	PlayerID  string `json:"playerId,omitempty"`
	CardIndex int    `json:"cardIndex"`
}

type FinishPeeking struct{}

type DrawFromDeck struct{}

type DrawFromDiscard struct{}

type DiscardHeldCard struct{}

// SwapHeldCard replaces the caller's slot CardIndex with the held card.
type SwapHeldCard struct {
	CardIndex int `json:"cardIndex"`
}

type UseSpecialAction struct{}

// Peek1Select picks the slot revealed by a peek_1 special.
type Peek1Select struct {
	PlayerID  string `json:"playerId"`
	CardIndex int    `json:"cardIndex"`
}

// Swap2Select picks one of the two slots exchanged by a swap_2 special.
type Swap2Select struct {
	PlayerID  string `json:"playerId"`
	CardIndex int    `json:"cardIndex"`
}

// Take2Choose keeps one of the candidates drawn by a take_2 special.
type Take2Choose struct {
	CardID int `json:"cardId"`
}

type CallPobudka struct{}

type StartNewRound struct{}

func (PeekCard) Type() ActionType         { return ActionPeekCard }
func (FinishPeeking) Type() ActionType    { return ActionFinishPeeking }
func (DrawFromDeck) Type() ActionType     { return ActionDrawFromDeck }
func (DrawFromDiscard) Type() ActionType  { return ActionDrawFromDiscard }
func (DiscardHeldCard) Type() ActionType  { return ActionDiscardHeldCard }
func (SwapHeldCard) Type() ActionType     { return ActionSwapHeldCard }
func (UseSpecialAction) Type() ActionType { return ActionUseSpecialAction }
func (Peek1Select) Type() ActionType      { return ActionPeek1Select }
func (Swap2Select) Type() ActionType      { return ActionSwap2Select }
func (Take2Choose) Type() ActionType      { return ActionTake2Choose }
func (CallPobudka) Type() ActionType      { return ActionCallPobudka }
func (StartNewRound) Type() ActionType    { return ActionStartNewRound }

func (PeekCard) isAction()         {}
func (FinishPeeking) isAction()    {}
func (DrawFromDeck) isAction()     {}
func (DrawFromDiscard) isAction()  {}
func (DiscardHeldCard) isAction()  {}
func (SwapHeldCard) isAction()     {}
func (UseSpecialAction) isAction() {}
func (Peek1Select) isAction()      {}
func (Swap2Select) isAction()      {}
func (Take2Choose) isAction()      {}
func (CallPobudka) isAction()      {}
func (StartNewRound) isAction()    {}

// Envelope is the wire form {type, payload?}.
type Envelope struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseAction decodes an envelope into its variant. A missing type or a payload
// that does not fit the variant is INVALID_ACTION_SHAPE; an unrecognised type is
// UNKNOWN_ACTION_TYPE.
func ParseAction(data []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, WrapError(CodeInvalidActionShape, "action must be a JSON object with a type", err)
	}
	return env.Decode()
}

// Decode resolves the envelope's payload into the matching variant.
func (env Envelope) Decode() (Action, error) {
	if env.Type == "" {
		return nil, NewError(CodeInvalidActionShape, "action type is required")
	}
	var (
		act     Action
		payload any
	)
	switch env.Type {
	case ActionPeekCard:
		a := &PeekCard{CardIndex: -1}
		payload, act = a, a
	case ActionFinishPeeking:
		act = FinishPeeking{}
	case ActionDrawFromDeck:
		act = DrawFromDeck{}
	case ActionDrawFromDiscard:
		act = DrawFromDiscard{}
	case ActionDiscardHeldCard:
		act = DiscardHeldCard{}
	case ActionSwapHeldCard:
		a := &SwapHeldCard{CardIndex: -1}
		payload, act = a, a
	case ActionUseSpecialAction:
		act = UseSpecialAction{}
	case ActionPeek1Select:
		a := &Peek1Select{CardIndex: -1}
		payload, act = a, a
	case ActionSwap2Select:
		a := &Swap2Select{CardIndex: -1}
		payload, act = a, a
	case ActionTake2Choose:
		a := &Take2Choose{CardID: -1}
		payload, act = a, a
	case ActionCallPobudka:
		act = CallPobudka{}
	case ActionStartNewRound:
		act = StartNewRound{}
	default:
		return nil, NewError(CodeUnknownActionType, "unknown action type %q", env.Type)
	}
	if payload != nil {
		raw := bytes.TrimSpace(env.Payload)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return nil, NewError(CodeInvalidActionShape, "%s requires a payload", env.Type)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(payload); err != nil {
			return nil, WrapError(CodeInvalidActionShape, fmt.Sprintf("malformed %s payload", env.Type), err)
		}
	}
	return deref(act), nil
}

// deref turns the pointer variants used for decoding back into values so that
// callers always switch on value types.
func deref(a Action) Action {
	switch v := a.(type) {
	case *PeekCard:
		return *v
	case *SwapHeldCard:
		return *v
	case *Peek1Select:
		return *v
	case *Swap2Select:
		return *v
	case *Take2Choose:
		return *v
	}
	return a
}

// MarshalAction renders a into its canonical envelope.
func MarshalAction(a Action) ([]byte, error) {
	env := Envelope{Type: a.Type()}
	switch a.(type) {
	case PeekCard, SwapHeldCard, Peek1Select, Swap2Select, Take2Choose:
		p, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		env.Payload = p
	}
	return json.Marshal(env)
}
