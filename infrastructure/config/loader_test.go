package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	os.Setenv("GATEWAY_TEST_KEY", "value")
	defer os.Unsetenv("GATEWAY_TEST_KEY")

	if got := GetEnv("GATEWAY_TEST_KEY", "default"); got != "value" {
		t.Errorf("GetEnv() = %v, want value", got)
	}
	if got := GetEnv("GATEWAY_TEST_MISSING", "default"); got != "default" {
		t.Errorf("GetEnv() = %v, want default", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"true", true},
		{"1", true},
		{"yes", true},
		{"Y", true},
		{"false", false},
		{"0", false},
		{"", false},
	}

	for _, tt := range tests {
		os.Setenv("GATEWAY_TEST_BOOL", tt.raw)
		if got := GetEnvBool("GATEWAY_TEST_BOOL", false); got != tt.want && tt.raw != "" {
			t.Errorf("GetEnvBool(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	os.Unsetenv("GATEWAY_TEST_BOOL")
	if got := GetEnvBool("GATEWAY_TEST_BOOL", true); got != true {
		t.Errorf("GetEnvBool() default = %v, want true", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	os.Setenv("GATEWAY_TEST_INT", "42")
	defer os.Unsetenv("GATEWAY_TEST_INT")

	if got := GetEnvInt("GATEWAY_TEST_INT", 0); got != 42 {
		t.Errorf("GetEnvInt() = %d, want 42", got)
	}
	if got := GetEnvInt("GATEWAY_TEST_MISSING", 7); got != 7 {
		t.Errorf("GetEnvInt() = %d, want 7", got)
	}
}

func TestParseEnvInt(t *testing.T) {
	os.Setenv("GATEWAY_TEST_PARSEINT", "99")
	defer os.Unsetenv("GATEWAY_TEST_PARSEINT")

	got, ok := ParseEnvInt("GATEWAY_TEST_PARSEINT")
	if !ok || got != 99 {
		t.Errorf("ParseEnvInt() = (%d, %v), want (99, true)", got, ok)
	}

	if _, ok := ParseEnvInt("GATEWAY_TEST_MISSING"); ok {
		t.Error("ParseEnvInt() on unset key returned ok=true")
	}
}

func TestParseEnvDuration(t *testing.T) {
	os.Setenv("GATEWAY_TEST_DURATION", "250ms")
	defer os.Unsetenv("GATEWAY_TEST_DURATION")

	got, ok := ParseEnvDuration("GATEWAY_TEST_DURATION")
	if !ok || got != 250*time.Millisecond {
		t.Errorf("ParseEnvDuration() = (%v, %v), want (250ms, true)", got, ok)
	}
}

func TestSplitAndTrimCSV(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ,, c ", []string{"a", "b", "c"}},
		{"", nil},
	}

	for _, tt := range tests {
		got := SplitAndTrimCSV(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("SplitAndTrimCSV(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitAndTrimCSV(%q)[%d] = %v, want %v", tt.raw, i, got[i], tt.want[i])
			}
		}
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"1KB", 1024, false},
		{"1MB", 1024 * 1024, false},
		{"1GB", 1024 * 1024 * 1024, false},
		{"512", 512, false},
		{"", 0, true},
		{"-1KB", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseByteSize(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseByteSize(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	if got := ParseDurationOrDefault("500ms", time.Second); got != 500*time.Millisecond {
		t.Errorf("ParseDurationOrDefault() = %v, want 500ms", got)
	}
	if got := ParseDurationOrDefault("garbage", time.Second); got != time.Second {
		t.Errorf("ParseDurationOrDefault() = %v, want 1s default", got)
	}
}

func TestParseIntOrDefault(t *testing.T) {
	if got := ParseIntOrDefault("12", 0); got != 12 {
		t.Errorf("ParseIntOrDefault() = %d, want 12", got)
	}
	if got := ParseIntOrDefault("nope", 5); got != 5 {
		t.Errorf("ParseIntOrDefault() = %d, want 5", got)
	}
}

func TestGetPort(t *testing.T) {
	os.Unsetenv("PORT")
	if got := GetPort(8080); got != 8080 {
		t.Errorf("GetPort() = %d, want 8080", got)
	}

	os.Setenv("PORT", "9090")
	defer os.Unsetenv("PORT")
	if got := GetPort(8080); got != 9090 {
		t.Errorf("GetPort() = %d, want 9090", got)
	}
}

func TestGetDefaultTimeouts(t *testing.T) {
	timeouts := GetDefaultTimeouts()
	if timeouts.Persistence != 10*time.Second {
		t.Errorf("Persistence = %v, want 10s", timeouts.Persistence)
	}
	if timeouts.PluginLoad != 5*time.Second {
		t.Errorf("PluginLoad = %v, want 5s", timeouts.PluginLoad)
	}
}
