package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrCodecNotFound is returned when no codec is registered under a name.
	ErrCodecNotFound = errors.New("codec not found")
	// ErrInvalidCodecFormat is returned when codec validation fails.
	ErrInvalidCodecFormat = errors.New("invalid codec format")
)

// Codec is a ChirpStack style payload decoder script.
type Codec struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Script string `json:"script"`
}

// CodecMetadata is a codec without its script body.
type CodecMetadata struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewCodec(name, script string) *Codec {
	c := &Codec{Name: name, Script: script}
	c.ID = c.generateID()
	return c
}

func (c *Codec) generateID() string {
	hash := sha256.Sum256([]byte(c.Script + c.Name))
	return hex.EncodeToString(hash[:])[:16]
}

// Validate checks that the codec is named and defines a Decode function.
func (c *Codec) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCodecFormat)
	}
	if c.Script == "" {
		return fmt.Errorf("%w: script is required", ErrInvalidCodecFormat)
	}
	if !strings.Contains(c.Script, "function Decode") {
		return fmt.Errorf("%w: script must define function Decode(fPort, bytes)", ErrInvalidCodecFormat)
	}
	return nil
}

func (c *Codec) Metadata() CodecMetadata {
	return CodecMetadata{ID: c.ID, Name: c.Name}
}

// Library holds the decoders known to the simulator, keyed by name.
type Library struct {
	mu     sync.RWMutex
	codecs map[string]*Codec
}

func NewLibrary() *Library {
	return &Library{codecs: make(map[string]*Codec)}
}

// Add registers a codec, replacing any codec with the same name.
func (l *Library) Add(c *Codec) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = c.generateID()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.codecs[c.Name] = c
	return nil
}

func (l *Library) Get(name string) (*Codec, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCodecNotFound, name)
	}
	return c, nil
}

func (l *Library) Remove(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.codecs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCodecNotFound, name)
	}
	delete(l.codecs, name)
	return nil
}

// List returns codec metadata sorted by name.
func (l *Library) List() []CodecMetadata {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]CodecMetadata, 0, len(l.codecs))
	for _, c := range l.codecs {
		out = append(out, c.Metadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (l *Library) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.codecs)
}

// LoadDefaults registers the decoders for the built-in frame formats under the
// product names used in configuration.
func (l *Library) LoadDefaults() {
	for name, script := range defaultScripts {
		if err := l.Add(NewCodec(name, script)); err != nil {
			panic(fmt.Sprintf("codec: built-in %s: %v", name, err))
		}
	}
}

func (l *Library) ToJSON() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	list := make([]*Codec, 0, len(l.codecs))
	for _, c := range l.codecs {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return json.Marshal(list)
}

// FromJSON adds every codec in data. It stops at the first invalid one.
func (l *Library) FromJSON(data []byte) error {
	var list []*Codec
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCodecFormat, err)
	}
	for _, c := range list {
		if err := l.Add(c); err != nil {
			return err
		}
	}
	return nil
}
