package config

import "testing"

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Server:     ServerConfig{LogLevel: LogInfo},
		Vocabulary: VocabularyConfig{Terms: []string{"pgvector"}},
		Tags:       TagsConfig{FixedTag: "voice-memo"},
	}
	other := *cfg
	d := Diff(cfg, &other)
	if d.Any() {
		t.Errorf("Diff reported changes for identical configs: %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()

	old := &Config{Server: ServerConfig{LogLevel: LogInfo}}
	new := &Config{Server: ServerConfig{LogLevel: LogDebug}}
	d := Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("Diff = %+v", d)
	}
}

func TestDiff_VocabularyAndTags(t *testing.T) {
	t.Parallel()

	old := &Config{
		Vocabulary: VocabularyConfig{Terms: []string{"pgvector"}},
		Tags:       TagsConfig{MaxTags: 5},
	}
	new := &Config{
		Vocabulary: VocabularyConfig{Terms: []string{"pgvector", "kubernetes"}},
		Tags:       TagsConfig{MaxTags: 8},
	}
	d := Diff(old, new)
	if !d.VocabularyChanged {
		t.Error("vocabulary change not detected")
	}
	if !d.TagsChanged {
		t.Error("tags change not detected")
	}
	if d.LogLevelChanged {
		t.Error("log level change reported spuriously")
	}
}
