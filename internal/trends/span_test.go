package trends

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/polltrend/internal/contracts"
)

func TestParseSpan(t *testing.T) {
	tests := []struct {
		spec    string
		want    int
		wantErr bool
	}{
		{"D", 1, false},
		{"1D", 1, false},
		{"7d", 7, false},
		{" 14D ", 14, false},
		{"W", 7, false},
		{"2W", 14, false},
		{"24h", 1, false},
		{"168h", 7, false},
		{"0D", 0, true},
		{"", 0, true},
		{"12h", 0, true},
		{"-24h", 0, true},
		{"weekly", 0, true},
		{"3M", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseSpan("trend.window", tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, contracts.ErrConfig))

				var cfgErr *contracts.ConfigError
				require.True(t, errors.As(err, &cfgErr))
				assert.Equal(t, "trend.window", cfgErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
