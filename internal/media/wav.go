package media

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// wavData is decoded PCM content before normalization.
type wavData struct {
	samples    []int16
	sampleRate int
	channels   int
}

// decodeWAVFile parses a RIFF/WAVE file containing 16-bit PCM audio.
// Other encodings return an error so callers can fall back to ffmpeg.
func decodeWAVFile(path string) (wavData, error) {
	f, err := os.Open(path)
	if err != nil {
		return wavData{}, err
	}
	defer f.Close()

	return decodeWAV(f)
}

// decodeWAV reads RIFF chunks until the PCM data chunk is consumed.
func decodeWAV(r io.Reader) (wavData, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return wavData{}, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return wavData{}, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var (
		out       wavData
		haveFmt   bool
		bitsPer   uint16
		audioFmt  uint16
		chunkHead [8]byte
	)

	for {
		if _, err := io.ReadFull(r, chunkHead[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return wavData{}, fmt.Errorf("read chunk header: %w", err)
		}

		id := string(chunkHead[0:4])
		size := binary.LittleEndian.Uint32(chunkHead[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return wavData{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return wavData{}, fmt.Errorf("fmt chunk too short: %d bytes", len(body))
			}
			audioFmt = binary.LittleEndian.Uint16(body[0:2])
			out.channels = int(binary.LittleEndian.Uint16(body[2:4]))
			out.sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPer = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return wavData{}, fmt.Errorf("data chunk before fmt chunk")
			}
			if audioFmt != 1 || bitsPer != 16 {
				return wavData{}, fmt.Errorf("unsupported encoding: format=%d bits=%d", audioFmt, bitsPer)
			}
			body := make([]byte, size)
			n, err := io.ReadFull(r, body)
			if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				return wavData{}, fmt.Errorf("read data chunk: %w", err)
			}
			body = body[:n-n%2]
			out.samples = make([]int16, len(body)/2)
			for i := range out.samples {
				out.samples[i] = int16(binary.LittleEndian.Uint16(body[2*i : 2*i+2]))
			}
			if out.channels <= 0 || out.sampleRate <= 0 {
				return wavData{}, fmt.Errorf("invalid fmt values: channels=%d rate=%d", out.channels, out.sampleRate)
			}
			return out, nil
		default:
			// Skip unrelated chunks (LIST, fact, ...). Chunks are word aligned.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return wavData{}, fmt.Errorf("skip %s chunk: %w", id, err)
			}
		}
	}

	return wavData{}, fmt.Errorf("no data chunk found")
}

// EncodeWAV writes samples as a mono 16-bit PCM WAV file.
func EncodeWAV(w io.Writer, samples []int16, sampleRate int) error {
	dataLen := uint32(len(samples) * 2)

	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataLen)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1) // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(header[32:34], 2)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataLen)

	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:2*i+2], uint16(s))
	}
	_, err := w.Write(buf)
	return err
}

// WriteWAVFile writes samples as a mono 16-bit PCM WAV at path.
func WriteWAVFile(path string, samples []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := EncodeWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
