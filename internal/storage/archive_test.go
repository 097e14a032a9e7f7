package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/magic-table/internal/game/deck"
)

func TestFileArchive_FileName(t *testing.T) {
	t.Parallel()

	a := NewFileArchive(t.TempDir())
	at := time.Date(2011, 6, 15, 23, 3, 48, 0, time.Local)
	name := a.FileName("alice", deck.Deck{Name: "elves"}, at)
	assert.Equal(t, "2011-06-15 23.03.48 aliceelves.txt", name)
}

func TestFileArchive_ArchiveDeck(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "archive")
	a := NewFileArchive(dir)
	a.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) }

	d := deck.Deck{Name: "elves", Cards: []deck.Entry{{Name: "Forest", Quantity: 16}}}
	require.NoError(t, a.ArchiveDeck(context.Background(), "bob", d))

	data, err := os.ReadFile(filepath.Join(dir, "2024-01-02 03.04.05 bobelves.txt"))
	require.NoError(t, err)
	assert.Equal(t, "# elves\n16 Forest\n", string(data))
}

type failingArchive struct{ calls int }

func (f *failingArchive) ArchiveDeck(context.Context, string, deck.Deck) error {
	f.calls++
	return errors.New("down")
}

func TestMultiArchive(t *testing.T) {
	t.Parallel()

	first, second := &failingArchive{}, &failingArchive{}
	err := MultiArchive{first, second}.ArchiveDeck(context.Background(), "alice", deck.Deck{})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls, "前一个失败不影响后续归档")
}
