package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantID    int
		wantFound bool
	}{
		{name: "exact", input: "Netflix", wantID: 1, wantFound: true},
		{name: "case insensitive", input: "disney+", wantID: 2, wantFound: true},
		{name: "surrounding spaces", input: "  Magis TV ", wantID: 10, wantFound: true},
		{name: "unknown", input: "Blim", wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := ByName(tt.input)
			assert.Equal(t, tt.wantFound, ok)
			if tt.wantFound {
				assert.Equal(t, tt.wantID, p.ID)
			}
		})
	}
}

func TestLimit(t *testing.T) {
	assert.Equal(t, 5, Limit("Netflix"))
	assert.Equal(t, 7, Limit("Disney+"))
	assert.Equal(t, 1, Limit("IPTV"))
	assert.Equal(t, DefaultLimit, Limit("Unknown Service"))
}

func TestCategoriesCoverAllPlatforms(t *testing.T) {
	total := 0
	for _, c := range Categories() {
		inCat := InCategory(c)
		require.NotEmpty(t, inCat, "category %s is empty", c)
		total += len(inCat)
	}
	assert.Equal(t, len(All()), total)
}

func TestRequiresProfile(t *testing.T) {
	assert.True(t, RequiresProfile("Netflix"))
	assert.False(t, RequiresProfile("Spotify"))
	assert.False(t, RequiresProfile("Unknown"))
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].Name = "changed"
	p, ok := ByID(1)
	require.True(t, ok)
	assert.Equal(t, "Netflix", p.Name)
}

func TestByID_MenuNumbers(t *testing.T) {
	tests := []struct {
		id   int
		want string
	}{
		{id: 1, want: "Netflix"},
		{id: 6, want: "Spotify"},
		{id: 7, want: "Crunchyroll"},
		{id: 8, want: "YouTube Premium"},
		{id: 10, want: "Magis TV"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			p, ok := ByID(tt.id)
			require.True(t, ok)
			assert.Equal(t, tt.want, p.Name)
		})
	}

	_, ok := ByID(11)
	assert.False(t, ok)
}
