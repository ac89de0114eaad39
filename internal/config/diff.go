package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and vault
// changes require a restart.
type ConfigDiff struct {
	LogLevelChanged   bool
	NewLogLevel       LogLevel
	VocabularyChanged bool
	TagsChanged       bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.VocabularyChanged || d.TagsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !slices.Equal(old.Vocabulary.Terms, new.Vocabulary.Terms) ||
		old.Vocabulary.MinSimilarity != new.Vocabulary.MinSimilarity {
		d.VocabularyChanged = true
	}

	if old.Tags != new.Tags {
		d.TagsChanged = true
	}

	return d
}
