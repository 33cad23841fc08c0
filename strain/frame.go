package strain

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
)

// frameMagic identifies a ringdown frame file.
var frameMagic = [4]byte{'R', 'D', 'W', 'F'}

// frameHeader is the JSON header stored ahead of the sample payload.
type frameHeader struct {
	Detector   string  `json:"detector"`
	SampleRate float64 `json:"sample_rate"`
	Epoch      float64 `json:"epoch"`
	Samples    int     `json:"samples"`
}

// WriteFrame writes the series to path as a frame file: a 4-byte magic,
// a uint32 header length, a JSON header, then little-endian float64 samples.
func WriteFrame(path, detector string, s *Series) error {
	if s == nil || len(s.Data) == 0 {
		return errEmptySeries
	}

	hdr, err := json.Marshal(frameHeader{
		Detector:   detector,
		SampleRate: s.SampleRate,
		Epoch:      s.Epoch,
		Samples:    len(s.Data),
	})
	if err != nil {
		return fmt.Errorf("strain: encode frame header: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("strain: create frame: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(frameMagic[:]); err != nil {
		return fmt.Errorf("strain: write frame magic: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(hdr))); err != nil {
		return fmt.Errorf("strain: write frame header length: %w", err)
	}
	if _, err := f.Write(hdr); err != nil {
		return fmt.Errorf("strain: write frame header: %w", err)
	}

	buf := make([]byte, 8*len(s.Data))
	for i, v := range s.Data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("strain: write frame samples: %w", err)
	}

	return f.Close()
}

// ReadFrame reads a frame file and returns the series and detector name.
func ReadFrame(path string) (*Series, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("strain: open frame: %w", err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, "", fmt.Errorf("strain: read frame magic: %w", err)
	}
	if magic != frameMagic {
		return nil, "", fmt.Errorf("strain: not a frame file: %q", magic)
	}

	var hdrLen uint32
	if err := binary.Read(f, binary.LittleEndian, &hdrLen); err != nil {
		return nil, "", fmt.Errorf("strain: read frame header length: %w", err)
	}
	if hdrLen == 0 || hdrLen > 1<<20 {
		return nil, "", fmt.Errorf("strain: implausible frame header length: %d", hdrLen)
	}

	hdrBuf := make([]byte, hdrLen)
	if _, err := io.ReadFull(f, hdrBuf); err != nil {
		return nil, "", fmt.Errorf("strain: read frame header: %w", err)
	}
	var hdr frameHeader
	if err := json.Unmarshal(hdrBuf, &hdr); err != nil {
		return nil, "", fmt.Errorf("strain: decode frame header: %w", err)
	}
	if hdr.Samples <= 0 {
		return nil, "", fmt.Errorf("strain: frame sample count must be > 0: %d", hdr.Samples)
	}

	buf := make([]byte, 8*hdr.Samples)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, "", fmt.Errorf("strain: read frame samples: %w", err)
	}
	data := make([]float64, hdr.Samples)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}

	s, err := New(data, hdr.SampleRate, hdr.Epoch)
	if err != nil {
		return nil, "", err
	}
	return s, hdr.Detector, nil
}
