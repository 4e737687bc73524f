package events

import (
	"encoding/json"
	"errors"
	"testing"
)

func envelope(t *testing.T, typ Type, actor string, payload any) Envelope {
	t.Helper()
	env := Envelope{ID: "evt-1", Type: typ, ActorID: actor}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		env.Payload = data
	}
	return env
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode(envelope(t, Type("launch-rocket"), "u1", nil))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeRejectsMissingActor(t *testing.T) {
	_, err := Decode(Envelope{ID: "evt-1", Type: TypeUserJoin})
	if !errors.Is(err, ErrMissingActor) {
		t.Fatalf("expected ErrMissingActor, got %v", err)
	}
}

func TestDecodeTrimsAndRejectsEmptyMessage(t *testing.T) {
	_, err := Decode(envelope(t, TypeSendMessage, "u1", SendMessagePayload{Text: "   "}))
	if !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody for whitespace text, got %v", err)
	}

	decoded, err := Decode(envelope(t, TypeSendMessage, "u1", SendMessagePayload{Text: "  hello  "}))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.SendMessage == nil || decoded.SendMessage.Text != "hello" {
		t.Fatalf("expected trimmed text, got %+v", decoded.SendMessage)
	}
	if decoded.SendMessage.Kind != MessageText {
		t.Fatalf("expected default kind %q, got %q", MessageText, decoded.SendMessage.Kind)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	env := Envelope{ID: "evt-1", Type: TypeCreatePost, ActorID: "u1", Payload: []byte(`{"content":`)}
	_, err := Decode(env)
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestDecodeLikePostRequiresTarget(t *testing.T) {
	_, err := Decode(envelope(t, TypeLikePost, "u1", LikePostPayload{}))
	if !errors.Is(err, ErrMissingTarget) {
		t.Fatalf("expected ErrMissingTarget, got %v", err)
	}
}

func TestDecodePlayerActionRejectsUnknownAction(t *testing.T) {
	_, err := Decode(envelope(t, TypePlayerAction, "u1", PlayerActionPayload{Action: Action("teleport")}))
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}

	decoded, err := Decode(envelope(t, TypePlayerAction, "u1", PlayerActionPayload{Action: ActionCollectStar}))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.PlayerAction == nil || decoded.PlayerAction.Action != ActionCollectStar {
		t.Fatalf("unexpected decoded action %+v", decoded.PlayerAction)
	}
}

func TestDecodeTypingEventsNeedNoPayload(t *testing.T) {
	for _, typ := range []Type{TypeUserTyping, TypeUserStopTyping, TypeResetGame} {
		decoded, err := Decode(Envelope{ID: "evt-1", Type: typ, ActorID: "u1"})
		if err != nil {
			t.Fatalf("decode %s failed: %v", typ, err)
		}
		if decoded.Envelope.Type != typ {
			t.Fatalf("expected type %s, got %s", typ, decoded.Envelope.Type)
		}
	}
}
