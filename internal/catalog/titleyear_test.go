package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTitleYear(t *testing.T) {
	tests := []struct {
		in        string
		wantTitle string
		wantYear  int // 0 means no year
	}{
		{"Heat (1995)", "Heat", 1995},
		{"  Pulp Fiction(1994)  ", "Pulp Fiction", 1994},
		{"1917", "1917", 0},
		{"2001: A Space Odyssey", "2001: A Space Odyssey", 0},
		{"Blade Runner (1982) Final Cut", "Blade Runner (1982) Final Cut", 0},
		{"(1999)", "(1999)", 0},
		{"Alien (79)", "Alien (79)", 0},
		{"", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			title, year := ParseTitleYear(tt.in)
			assert.Equal(t, tt.wantTitle, title)
			if tt.wantYear == 0 {
				assert.Nil(t, year)
				return
			}
			if assert.NotNil(t, year) {
				assert.Equal(t, tt.wantYear, *year)
			}
		})
	}
}
