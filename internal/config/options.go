// Package config loads SagaManager construction options from a TOML
// document, the non-programmatic counterpart to the functional options in
// package saga.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/atlanticdynamic/sagakit/internal/saga"
)

// ErrUnknownConcurrencyPolicy is returned when a document's
// concurrencyPolicy value is neither "queue" nor "reject".
var ErrUnknownConcurrencyPolicy = errors.New("config: unknown concurrencyPolicy")

// document is the on-disk TOML shape: the recognized saga.Option knobs
// plus the concurrency/retry settings.
type document struct {
	MaxHistorySize    uint32 `toml:"maxHistorySize"`
	EnableDevTools    bool   `toml:"enableDevTools"`
	AutoSnapshot      *bool  `toml:"autoSnapshot"`
	RetryDelayMs      uint32 `toml:"retryDelayMs"`
	ConcurrencyPolicy string `toml:"concurrencyPolicy"`
}

// LoadOptions reads a TOML document from path and translates it into
// saga.Option values. A missing optional field keeps the saga package's own
// default (autoSnapshot defaults true, concurrencyPolicy defaults "queue").
func LoadOptions(path string) ([]saga.Option, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to open options file: %w", err)
	}
	defer f.Close()
	return LoadOptionsFromReader(f)
}

// LoadOptionsFromReader is LoadOptions reading from an already-open source.
func LoadOptionsFromReader(r io.Reader) ([]saga.Option, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read options: %w", err)
	}
	return LoadOptionsFromBytes(data)
}

// LoadOptionsFromBytes parses raw TOML bytes into saga.Option values.
func LoadOptionsFromBytes(data []byte) ([]saga.Option, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: failed to parse TOML options: %w", err)
	}

	var opts []saga.Option

	if doc.MaxHistorySize > 0 {
		opts = append(opts, saga.WithMaxHistorySize(int(doc.MaxHistorySize)))
	}
	if doc.EnableDevTools {
		opts = append(opts, saga.WithEnableDevTools(true))
	}
	if doc.AutoSnapshot != nil {
		opts = append(opts, saga.WithAutoSnapshot(*doc.AutoSnapshot))
	}
	if doc.RetryDelayMs > 0 {
		opts = append(opts, saga.WithRetryDelay(time.Duration(doc.RetryDelayMs)*time.Millisecond))
	}
	if doc.ConcurrencyPolicy != "" {
		policy, err := parseConcurrencyPolicy(doc.ConcurrencyPolicy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, saga.WithConcurrencyPolicy(policy))
	}

	return opts, nil
}

func parseConcurrencyPolicy(s string) (saga.ConcurrencyPolicy, error) {
	switch s {
	case "queue":
		return saga.PolicyQueue, nil
	case "reject":
		return saga.PolicyReject, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownConcurrencyPolicy, s)
	}
}
