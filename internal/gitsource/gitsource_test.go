package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "https", url: "https://github.com/acme/notes.git", want: filepath.Join("repos", "github.com", "acme", "notes")},
		{name: "https without suffix", url: "https://gitlab.com/acme/deck", want: filepath.Join("repos", "gitlab.com", "acme", "deck")},
		{name: "scp style", url: "git@github.com:acme/notes.git", want: filepath.Join("repos", "github.com", "acme", "notes")},
		{name: "local path", url: "/home/me/notes", wantErr: true},
		{name: "no repo path", url: "https://github.com/", wantErr: true},
		{name: "escapes base", url: "git@host:../../etc", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LocalPath("repos", tc.url)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://github.com/acme/notes"))
	assert.True(t, IsRemote("git@github.com:acme/notes.git"))
	assert.True(t, IsRemote("/srv/mirror/notes.git"))
	assert.False(t, IsRemote("/home/me/notes"))
	assert.False(t, IsRemote("notes"))
}

func TestSyncRejectsNonRepository(t *testing.T) {
	base := t.TempDir()
	s := &Syncer{BaseDir: base}

	local, err := LocalPath(base, "https://example.com/acme/notes.git")
	require.NoError(t, err)
	// An existing directory that is not a git checkout cannot be pulled.
	require.NoError(t, os.MkdirAll(local, 0o755))

	_, err = s.Sync(context.Background(), "https://example.com/acme/notes.git")
	assert.ErrorContains(t, err, "failed to open existing repo")
}
