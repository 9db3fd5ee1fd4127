package main

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kaizorxxx/novastream/pkg/stream"
)

func TestResultStore(t *testing.T) {
	badgerOpts := badger.DefaultOptions(t.TempDir()).
		WithLogger(nil).
		WithSyncWrites(false)
	db, err := badger.Open(badgerOpts)
	require.NoError(t, err)
	defer db.Close()

	store := &resultStore{db: db, keyPrefix: "result:"}

	_, _, found, err := store.Get("neon-dynasty-episode-1")
	require.NoError(t, err)
	require.False(t, found)

	exp := stream.Result{
		Title: "Neon Dynasty Episode 1",
		Sources: []stream.Source{
			{Name: "Server 720P", Kind: stream.KindDirect, URL: "https://cdn.example.com/720.mp4"},
		},
		Downloads: []stream.DownloadLink{
			{Quality: "720p", Providers: []stream.ProviderLink{{Provider: "G-Drive", URL: "https://drive.example.com/x"}}},
		},
	}
	require.NoError(t, store.Set("neon-dynasty-episode-1", exp))

	actual, created, found, err := store.Get("neon-dynasty-episode-1")
	require.NoError(t, err)
	require.True(t, found)
	require.WithinDuration(t, time.Now(), created, time.Minute)
	require.True(t, cmp.Equal(exp, actual), cmp.Diff(exp, actual))
}
