package capsule_test

import (
	"testing"

	"github.com/lunaris/capsuled/pkg/capsule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleAppendPreservesOrder(t *testing.T) {
	b := capsule.NewBundle()
	require.NoError(t, b.Append(capsule.Photo, "P1"))
	require.NoError(t, b.Append(capsule.Photo, "P2"))
	require.NoError(t, b.Append(capsule.Photo, "P3"))

	assert.Equal(t, []string{"P1", "P2", "P3"}, b.Items(capsule.Photo))
}

func TestBundleAppendUnknownKind(t *testing.T) {
	b := capsule.NewBundle()
	err := b.Append(capsule.Kind("gif"), "ref")
	assert.Error(t, err)
	assert.True(t, b.Empty())
}

func TestBundleLen(t *testing.T) {
	b := capsule.NewBundle()
	assert.True(t, b.Empty())
	assert.Equal(t, 0, b.Len())

	for _, kind := range capsule.SendOrder {
		require.NoError(t, b.Append(kind, "ref"))
	}
	assert.False(t, b.Empty())
	assert.Equal(t, len(capsule.SendOrder), b.Len())
}

func TestSendOrderIsStable(t *testing.T) {
	assert.Equal(t, []capsule.Kind{
		capsule.Text,
		capsule.Sticker,
		capsule.Photo,
		capsule.Document,
		capsule.Voice,
		capsule.Video,
		capsule.Audio,
	}, capsule.SendOrder)
}
