package reposvc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDerivesNameAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.json")
	s, err := Open(path)
	require.NoError(t, err)

	r, err := s.Create("https://github.com/acme/widgets.git", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "widgets", r.Name)

	reopened, err := Open(path)
	require.NoError(t, err)
	got, ok := reopened.Get("widgets")
	require.True(t, ok)
	assert.Equal(t, r.URL, got.URL)
}

func TestCreateDuplicateNameFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.json")
	s, _ := Open(path)

	_, err := s.Create("https://github.com/acme/widgets.git", "", "", "")
	require.NoError(t, err)

	_, err = s.Create("git@github.com:other/widgets.git", "", "", "")
	assert.Error(t, err, "expected error creating a duplicate repo name")
}

func TestUpdatePreservesUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.json")
	s, _ := Open(path)
	s.Create("https://github.com/acme/widgets.git", "cmake --build .", "", "")

	updated, err := s.Update("widgets", RepoConfig{BuildCommand: "ninja"})
	require.NoError(t, err)
	assert.Equal(t, "cmake --build .", updated.PostCheckout)
	assert.Equal(t, "ninja", updated.BuildCommand)
}

func TestUpdateUnknownRepoFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.json")
	s, _ := Open(path)
	_, err := s.Update("nope", RepoConfig{})
	assert.Error(t, err, "expected error updating an uncatalogued repo")
}

func TestDeleteRemovesEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.json")
	s, _ := Open(path)
	s.Create("https://github.com/acme/widgets.git", "", "", "")

	require.NoError(t, s.Delete("widgets"))
	_, ok := s.Get("widgets")
	assert.False(t, ok, "expected widgets to be gone after Delete")
}

func TestWatchReloadsExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Watch())
	defer s.Close()

	externalContent := `[{"name":"external-repo","url":"https://github.com/acme/external.git"}]`
	require.NoError(t, os.WriteFile(path, []byte(externalContent), 0o644))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.Get("external-repo"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("external edit to repos.json was never picked up by the watch")
}
