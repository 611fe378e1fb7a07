//go:build portaudio

package audio

import (
	"bytes"
	"testing"
)

func TestEncodePCMLittleEndian(t *testing.T) {
	t.Parallel()

	got := encodePCM([]int16{1, -2, 0x0102})
	want := []byte{0x01, 0x00, 0xfe, 0xff, 0x02, 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("unexpected pcm bytes: %v", got)
	}
}
