package env

import (
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Backend  string        `env:"PAGE_BACKEND"`
	Interval time.Duration `env:"POLL_INTERVAL"`
	Archive  bool          `env:"ENABLE_ARCHIVE"`
	Owner    int64         `env:"TELEGRAM_OWNER_ID,required"`
	Origins  []string      `env:"HTTP_CORS_ORIGINS"`
	Skipped  string
	hidden   string `env:"HIDDEN"`
}

func TestValues(t *testing.T) {
	tests := []struct {
		name string
		in   sample
		want map[string]string
	}{
		{
			name: "all set",
			in:   sample{Backend: "cdp", Interval: 2 * time.Second, Archive: true, Owner: 42, Origins: []string{"a", "b"}, Skipped: "x", hidden: "y"},
			want: map[string]string{
				"PAGE_BACKEND":      "cdp",
				"POLL_INTERVAL":     "2s",
				"ENABLE_ARCHIVE":    "true",
				"TELEGRAM_OWNER_ID": "42",
				"HTTP_CORS_ORIGINS": "a,b",
			},
		},
		{
			name: "zero values omitted",
			in:   sample{Backend: "bridge", Origins: []string{}},
			want: map[string]string{"PAGE_BACKEND": "bridge"},
		},
		{
			name: "empty",
			in:   sample{},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Values(&tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshalEnv_ReadsBack(t *testing.T) {
	in := sample{Backend: "sandbox", Interval: 500 * time.Millisecond, Owner: 42, Origins: []string{"http://localhost:5173", "chrome-extension://abc"}}

	out, err := MarshalEnv(&in)
	require.NoError(t, err)

	got, err := godotenv.Unmarshal(out)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"PAGE_BACKEND":      "sandbox",
		"POLL_INTERVAL":     "500ms",
		"TELEGRAM_OWNER_ID": "42",
		"HTTP_CORS_ORIGINS": "http://localhost:5173,chrome-extension://abc",
	}, got)
}

func TestMarshalEnv_Empty(t *testing.T) {
	out, err := MarshalEnv(&sample{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMarshalEnv_RejectsNonStruct(t *testing.T) {
	_, err := MarshalEnv("nope")
	assert.Error(t, err)

	_, err = Values(sample{})
	assert.Error(t, err)
}

func TestMarshalAll(t *testing.T) {
	a := &sample{Backend: "sandbox"}
	b := &sample{}
	c := &sample{Owner: 7}

	got, err := MarshalAll(a, b, c)
	require.NoError(t, err)
	assert.Equal(t, "PAGE_BACKEND=\"sandbox\"\n\nTELEGRAM_OWNER_ID=7\n", got)
}
