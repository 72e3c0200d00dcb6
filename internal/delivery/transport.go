package delivery

import (
	"context"

	"github.com/lunaris/capsuled/pkg/capsule"
	"github.com/pkg/errors"
)

// A Transport can deliver content to an address. One primitive per
// content kind, each taking an opaque content reference.
type Transport interface {
	// SendNotice sends a plain text notice.
	SendNotice(ctx context.Context, address, text string) error
	// SendText sends a text content item.
	SendText(ctx context.Context, address, text string) error
	// SendSticker sends a sticker by reference.
	SendSticker(ctx context.Context, address, ref string) error
	// SendPhoto sends a photo by reference.
	SendPhoto(ctx context.Context, address, ref string) error
	// SendDocument sends a document by reference.
	SendDocument(ctx context.Context, address, ref string) error
	// SendVoice sends a voice message by reference.
	SendVoice(ctx context.Context, address, ref string) error
	// SendVideo sends a video by reference.
	SendVideo(ctx context.Context, address, ref string) error
	// SendAudio sends an audio track by reference.
	SendAudio(ctx context.Context, address, ref string) error
}

// send dispatches one content item through the primitive matching its kind.
func send(ctx context.Context, t Transport, address string, kind capsule.Kind, ref string) error {
	switch kind {
	case capsule.Text:
		return t.SendText(ctx, address, ref)
	case capsule.Sticker:
		return t.SendSticker(ctx, address, ref)
	case capsule.Photo:
		return t.SendPhoto(ctx, address, ref)
	case capsule.Document:
		return t.SendDocument(ctx, address, ref)
	case capsule.Voice:
		return t.SendVoice(ctx, address, ref)
	case capsule.Video:
		return t.SendVideo(ctx, address, ref)
	case capsule.Audio:
		return t.SendAudio(ctx, address, ref)
	}
	return errors.Errorf("unknown content kind: %s", kind)
}
