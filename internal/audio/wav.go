package audio

import (
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// EncodeWAV wraps raw 16-bit little-endian PCM in a RIFF WAV container,
// entirely in memory. The remote engine ships its audio this way.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	buf := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(buf, sampleRate, 16, channels, 1)

	intBuf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: 16,
		Data:           make([]int, len(pcm)/2),
	}
	for i := range intBuf.Data {
		intBuf.Data[i] = int(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
	}

	if err := encoder.Write(intBuf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}

	data, err := io.ReadAll(buf.Reader())
	if err != nil {
		return nil, fmt.Errorf("read wav buffer: %w", err)
	}

	return data, nil
}
