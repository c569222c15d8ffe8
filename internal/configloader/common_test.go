package configloader

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshal(t *testing.T) {
	var cfg struct {
		Interval Duration `yaml:"interval"`
	}
	if err := yaml.Unmarshal([]byte("interval: 1500ms"), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Interval.Std() != 1500*time.Millisecond {
		t.Errorf("interval = %v, want 1.5s", cfg.Interval.Std())
	}
}

func TestDurationUnmarshalRejectsGarbage(t *testing.T) {
	var cfg struct {
		Interval Duration `yaml:"interval"`
	}
	if err := yaml.Unmarshal([]byte("interval: not-a-duration"), &cfg); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestOverrideYAMLDuration(t *testing.T) {
	d := Duration(time.Second)
	t.Setenv("TEST_OVERRIDE_DURATION", "250ms")
	OverrideYAMLDuration(&d, "TEST_OVERRIDE_DURATION")
	if d.Std() != 250*time.Millisecond {
		t.Errorf("override = %v, want 250ms", d.Std())
	}
}
