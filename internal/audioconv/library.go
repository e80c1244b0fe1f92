package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"

	"interview-assistant-service/internal/models"
)

// Library decodes wav, mp3 and ogg (Vorbis or Opus) in process and writes
// mono 16-bit wav. Any other output format is ErrUnsupported.
type Library struct{}

func NewLibrary() *Library { return &Library{} }

func (l *Library) Name() string { return "library" }

func (l *Library) Convert(ctx context.Context, src, dst string, target Target) error {
	if target.Format != models.FormatWAV || target.Channels > 1 {
		return fmt.Errorf("%w: library encodes mono wav only", ErrUnsupported)
	}
	rate := target.SampleRate
	if rate <= 0 {
		rate = 16000
	}

	samples, err := decodeFile(src, rate)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(samples) == 0 {
		return errors.New("decoded audio is empty")
	}
	return writeWAV(dst, samples, rate)
}

func decodeFile(path string, rate int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWAV(f, rate)
	case ".mp3":
		return decodeMP3(f, rate)
	case ".ogg", ".oga", ".opus":
		return decodeOgg(f, rate)
	}

	br := bufio.NewReader(f)
	magic, _ := br.Peek(4)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	switch {
	case string(magic) == "RIFF":
		return decodeWAV(f, rate)
	case string(magic) == "OggS":
		return decodeOgg(f, rate)
	case len(magic) >= 3 && (string(magic[:3]) == "ID3" || (magic[0] == 0xFF && magic[1]&0xE0 == 0xE0)):
		return decodeMP3(f, rate)
	default:
		return nil, fmt.Errorf("%w: unrecognized input %s", ErrUnsupported, filepath.Base(path))
	}
}

func decodeWAV(r io.ReadSeeker, rate int) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil || pb == nil || pb.Data == nil {
		if err == nil {
			err = errors.New("empty wav")
		}
		return nil, err
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := intsToFloat(pb.Data, bd)

	ch, sr := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	return resample(downmix(x, ch), sr, rate), nil
}

func decodeMP3(r io.Reader, rate int) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}
	// the decoder always emits interleaved stereo
	x := downmix(int16sToFloat(ints), 2)

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	return resample(x, sr, rate), nil
}

// decodeOgg tries Vorbis first, then Opus (WhatsApp voice notes).
func decodeOgg(f io.ReadSeeker, rate int) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(f)
	if err == nil && format != nil && format.Channels > 0 && format.SampleRate > 0 {
		return resample(downmix(pcm, format.Channels), format.SampleRate, rate), nil
	}
	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return nil, serr
	}

	dec, oerr := popus.NewDecoder(f)
	if oerr != nil {
		return nil, fmt.Errorf("ogg is neither vorbis (%v) nor opus: %w", err, oerr)
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}
	var pcm48 []float32
	buf := make([]int16, 48_000*ch/2)
	for {
		n, rerr := dec.Read(buf)
		if n > 0 {
			pcm48 = append(pcm48, int16sToFloat(buf[:n*ch])...)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
	}
	// opus always decodes at 48 kHz
	return resample(downmix(pcm48, ch), 48000, rate), nil
}

func writeWAV(dst string, samples []float32, rate int) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(clamp(float64(s), -1, 1) * 32767))
	}
	enc := wav.NewEncoder(out, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		out.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return out.Close()
}

func intsToFloat(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1, 1))
	}
	return out
}

func int16sToFloat(data []int16) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(float64(v) / 32768.0)
	}
	return out
}

func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resample(in []float32, inRate, outRate int) []float32 {
	if inRate == outRate || len(in) == 0 {
		return in
	}
	ratio := float64(outRate) / float64(inRate)
	n := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		pos := float64(i) / ratio
		i0 := int(math.Floor(pos))
		if i0 >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		a := float32(pos - float64(i0))
		out[i] = in[i0]*(1-a) + in[i0+1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
