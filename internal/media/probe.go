package media

import (
	"fmt"
	"os"
	"time"

	"github.com/faiface/beep/mp3"
)

// Probe decodes the MP3 stream header of path and returns its playing
// time. A truncated or non-MP3 file yields an error.
func Probe(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	defer streamer.Close()

	if format.SampleRate <= 0 {
		return 0, fmt.Errorf("%s has no sample rate", path)
	}
	return format.SampleRate.D(streamer.Len()), nil
}
