package capsule

import (
	"github.com/pkg/errors"
)

// A Kind identifies one of the supported content types.
type Kind string

// All the content kinds a bundle can hold.
const (
	Text     Kind = "text"
	Sticker  Kind = "sticker"
	Photo    Kind = "photo"
	Document Kind = "document"
	Voice    Kind = "voice"
	Video    Kind = "video"
	Audio    Kind = "audio"
)

// SendOrder is the order in which content is delivered to a recipient.
// It is fixed, changing it changes what recipients observe.
var SendOrder = []Kind{Text, Sticker, Photo, Document, Voice, Video, Audio}

// A Bundle is the plaintext content of a capsule. Each kind maps to an
// ordered list of opaque content references (transport file handles or
// raw text). Order within a list is the send order.
type Bundle struct {
	Texts     []string `json:"text"`
	Stickers  []string `json:"stickers"`
	Photos    []string `json:"photos"`
	Documents []string `json:"documents"`
	Voices    []string `json:"voices"`
	Videos    []string `json:"videos"`
	Audios    []string `json:"audios"`
}

// NewBundle returns an empty bundle with every list allocated so the
// serialized form always carries the seven keys.
func NewBundle() *Bundle {
	return &Bundle{
		Texts:     []string{},
		Stickers:  []string{},
		Photos:    []string{},
		Documents: []string{},
		Voices:    []string{},
		Videos:    []string{},
		Audios:    []string{},
	}
}

func (b *Bundle) list(k Kind) *[]string {
	switch k {
	case Text:
		return &b.Texts
	case Sticker:
		return &b.Stickers
	case Photo:
		return &b.Photos
	case Document:
		return &b.Documents
	case Voice:
		return &b.Voices
	case Video:
		return &b.Videos
	case Audio:
		return &b.Audios
	}
	return nil
}

// Append adds a content reference to the matching list.
func (b *Bundle) Append(k Kind, ref string) error {
	l := b.list(k)
	if l == nil {
		return errors.Errorf("unknown content kind: %s", k)
	}
	*l = append(*l, ref)
	return nil
}

// Items returns the ordered references stored for the given kind.
func (b *Bundle) Items(k Kind) []string {
	l := b.list(k)
	if l == nil {
		return nil
	}
	return *l
}

// Len returns the total number of content references.
func (b *Bundle) Len() (n int) {
	for _, k := range SendOrder {
		n += len(b.Items(k))
	}
	return n
}

// Empty returns true when the bundle holds no content at all.
func (b *Bundle) Empty() bool {
	return b.Len() == 0
}
