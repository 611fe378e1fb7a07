package usecase

import (
	"errors"
	"fmt"
	"io"
	"time"

	"voicebridge/internal/ports"
)

// pumpAudioChunks copies microphone audio into the provider stream until
// capture ends. Send is closed on the way out so the provider can flush.
func pumpAudioChunks(audio ports.AudioSession, stream ports.StreamingSession, chunkSize int) error {
	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				_ = stream.CloseSend()
				return fmt.Errorf("%w: failed to stream audio: %v", ports.ErrAudioStream, sendErr)
			}
		}
		if err != nil {
			_ = stream.CloseSend()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: audio capture error: %v", ports.ErrAudioStream, err)
		}
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
