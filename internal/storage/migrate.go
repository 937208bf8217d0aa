// ABOUTME: Data migration between fitcore storage backends.
// ABOUTME: Copies every known key from a source gateway to a destination.

package storage

import (
	"errors"
	"fmt"
)

// MigrateSummary holds the keys copied and the keys the source lacked.
type MigrateSummary struct {
	Copied  []string
	Missing []string
	Bytes   int
}

// MigrateData copies every key in AllKeys from src to dst. With dryRun set
// nothing is written. Values in dst are overwritten.
func MigrateData(src, dst Gateway, dryRun bool) (*MigrateSummary, error) {
	summary := &MigrateSummary{}

	for _, key := range AllKeys {
		value, err := src.Get(key)
		if errors.Is(err, ErrNotFound) {
			summary.Missing = append(summary.Missing, key)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", key, err)
		}
		if !dryRun {
			if err := dst.Set(key, value); err != nil {
				return nil, fmt.Errorf("write destination %s: %w", key, err)
			}
		}
		summary.Copied = append(summary.Copied, key)
		summary.Bytes += len(value)
	}

	return summary, nil
}

// HasData reports whether g holds any key in AllKeys.
func HasData(g Gateway) (bool, error) {
	for _, key := range AllKeys {
		_, err := g.Get(key)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return false, fmt.Errorf("read %s: %w", key, err)
		}
	}
	return false, nil
}
