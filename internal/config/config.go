// Package config loads the firmware settings: the constants fixed for the
// life of the process, in the uploader's settings.json format.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cbegin/picopd-go/internal/engine"
)

// Receiver names one per-voice receiver in the patch. Hash may be omitted,
// in which case it is derived from Name.
type Receiver struct {
	Name string      `json:"name"`
	Hash engine.Hash `json:"hash"`
}

type Settings struct {
	SampleRate   int         `json:"sample_rate"`
	BufferSize   int         `json:"buffer_size"`
	MaxVoices    int         `json:"max_voices"`
	VoiceHashes  []Receiver  `json:"voice_hashes"`
	VolumeCC     int         `json:"volume_cc"`
	LEDName      string      `json:"led_name"`
	LEDHash      engine.Hash `json:"led_hash"`
	AudioBuffers int         `json:"audio_buffers"`
	LEDPort      string      `json:"led_port"`
	LEDBaud      int         `json:"led_baud"`

	// Board settings kept for manifests; the host build ignores them.
	PicoBoard  string `json:"pico_board,omitempty"`
	CoreFreq   int    `json:"core_freq,omitempty"`
	I2SDataPin int    `json:"i2s_data_pin,omitempty"`
	I2SBclkPin int    `json:"i2s_bclk_pin,omitempty"`
	LEDPin     int    `json:"led_builtin_pin,omitempty"`
}

func Default() Settings {
	return Settings{
		SampleRate:   44100,
		BufferSize:   256,
		MaxVoices:    4,
		VolumeCC:     7,
		LEDName:      "led",
		AudioBuffers: 3,
		LEDBaud:      115200,
		PicoBoard:    "pico2",
	}
}

// Load reads path over the defaults and fills derived fields. An empty path
// yields the defaults.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
		if err := json.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}
	s.Resolve()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Resolve fills the voice receivers and LED hash from names where they were
// not given explicitly.
func (s *Settings) Resolve() {
	if len(s.VoiceHashes) == 0 {
		for i := 0; i < s.MaxVoices; i++ {
			s.VoiceHashes = append(s.VoiceHashes, Receiver{Name: fmt.Sprintf("voice_%d", i)})
		}
	}
	for i := range s.VoiceHashes {
		if s.VoiceHashes[i].Hash == 0 && s.VoiceHashes[i].Name != "" {
			s.VoiceHashes[i].Hash = engine.HashString(s.VoiceHashes[i].Name)
		}
	}
	if s.LEDHash == 0 && s.LEDName != "" {
		s.LEDHash = engine.HashString(s.LEDName)
	}
}

func (s Settings) Validate() error {
	if s.SampleRate <= 0 {
		return errors.New("sample_rate must be positive")
	}
	if s.BufferSize <= 0 {
		return errors.New("buffer_size must be positive")
	}
	if s.MaxVoices <= 0 {
		return errors.New("max_voices must be positive")
	}
	if len(s.VoiceHashes) != s.MaxVoices {
		return fmt.Errorf("voice_hashes has %d entries, max_voices is %d", len(s.VoiceHashes), s.MaxVoices)
	}
	seen := make(map[engine.Hash]int, len(s.VoiceHashes))
	for i, r := range s.VoiceHashes {
		if r.Hash == 0 {
			return fmt.Errorf("voice_hashes[%d] has neither name nor hash", i)
		}
		if j, ok := seen[r.Hash]; ok {
			return fmt.Errorf("voice_hashes[%d] repeats the receiver of entry %d (%s)", i, j, r.Hash)
		}
		seen[r.Hash] = i
	}
	if s.VolumeCC < 0 || s.VolumeCC > 127 {
		return fmt.Errorf("volume_cc %d out of range", s.VolumeCC)
	}
	if s.LEDHash == 0 {
		return errors.New("led_name or led_hash is required")
	}
	if s.AudioBuffers <= 0 {
		return errors.New("audio_buffers must be positive")
	}
	return nil
}

// LED returns the receiver the patch sends its LED level to.
func (s Settings) LED() Receiver {
	return Receiver{Name: s.LEDName, Hash: s.LEDHash}
}

// Addresses returns the voice receivers in slot order.
func (s Settings) Addresses() []engine.Hash {
	out := make([]engine.Hash, len(s.VoiceHashes))
	for i, r := range s.VoiceHashes {
		out[i] = r.Hash
	}
	return out
}
