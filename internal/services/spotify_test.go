package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crossfade/internal/shared"
)

const spotifyTrackJSON = `{"id":"%s","name":"%s","type":"track","artists":[{"id":"a1","name":"Coldplay"}],"album":{"name":"Parachutes"}}`

type spotifyFake struct {
	mu        sync.Mutex
	addBodies []string
	failAdd   int
}

func newSpotifyServer(t *testing.T, fake *spotifyFake) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("GET /v1/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "nothing" {
			fmt.Fprint(w, `{"tracks":{"items":[],"total":0}}`)
			return
		}
		fmt.Fprintf(w, `{"tracks":{"items":[`+spotifyTrackJSON+`,`+spotifyTrackJSON+`],"total":2}}`, "sp1", "Yellow", "sp2", "Yellow (Live)")
	})
	mux.HandleFunc("GET /v1/tracks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"status":404,"message":"Not found"}}`)
			return
		}
		fmt.Fprintf(w, spotifyTrackJSON, r.PathValue("id"), "Yellow")
	})
	mux.HandleFunc("GET /v1/playlists/{id}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":"%s","name":"Mix","public":true,"images":[{"url":"http://img/1"}],"tracks":{"items":[]}}`, r.PathValue("id"))
	})
	items := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "1" {
			fmt.Fprintf(w, `{"items":[{"track":`+spotifyTrackJSON+`}],"next":null,"total":2}`, "t2", "Clocks")
			return
		}
		next := srv.URL + r.URL.Path + "?offset=1&limit=1"
		fmt.Fprintf(w, `{"items":[{"track":`+spotifyTrackJSON+`}],"next":"%s","total":2}`, "t1", "Yellow", next)
	}
	mux.HandleFunc("GET /v1/playlists/{id}/tracks", items)
	mux.HandleFunc("GET /v1/playlists/{id}/items", items)
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"user1","display_name":"User"}`)
	})
	mux.HandleFunc("POST /v1/users/{user}/playlists", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("user") != "user1" {
			t.Errorf("expected playlist for user1, got %s", r.PathValue("user"))
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"newpl","name":"Copy"}`)
	})
	add := func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fake.mu.Lock()
		fake.addBodies = append(fake.addBodies, string(body))
		n := len(fake.addBodies)
		fake.mu.Unlock()

		if n == fake.failAdd {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"status":500,"message":"boom"}}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"snapshot_id":"snap"}`)
	}
	mux.HandleFunc("POST /v1/playlists/{id}/tracks", add)
	mux.HandleFunc("POST /v1/playlists/{id}/items", add)

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer expired" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"status":401,"message":"The access token expired"}}`)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("unexpected authorization header %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()
	logger := log.New(io.Discard)

	t.Run("Identity", func(t *testing.T) {
		srv := NewSpotifyService(SpotifyOptions{})
		if srv.Name() != "Spotify" || srv.Platform() != "spotify" {
			t.Errorf("unexpected identity %s/%s", srv.Name(), srv.Platform())
		}
		if srv.batchSize != 100 {
			t.Errorf("expected default batch size 100, got %d", srv.batchSize)
		}
	})

	t.Run("Search", func(t *testing.T) {
		ts := newSpotifyServer(t, &spotifyFake{})
		srv := NewSpotifyService(SpotifyOptions{APIURL: ts.URL + "/v1", Logger: logger})

		tracks, err := srv.Search(ctx, "tok", "Yellow Coldplay", 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 {
			t.Fatalf("expected limit to cap results at 1, got %d", len(tracks))
		}
		if tracks[0].ID != "sp1" || tracks[0].PrimaryArtist() != "Coldplay" || tracks[0].Album != "Parachutes" {
			t.Errorf("unexpected track %+v", tracks[0])
		}
	})

	t.Run("Search With No Results", func(t *testing.T) {
		ts := newSpotifyServer(t, &spotifyFake{})
		srv := NewSpotifyService(SpotifyOptions{APIURL: ts.URL + "/v1", Logger: logger})

		tracks, err := srv.Search(ctx, "tok", "nothing", 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tracks == nil || len(tracks) != 0 {
			t.Errorf("expected an empty, non-nil slice, got %#v", tracks)
		}
	})

	t.Run("Expired Token", func(t *testing.T) {
		ts := newSpotifyServer(t, &spotifyFake{})
		srv := NewSpotifyService(SpotifyOptions{APIURL: ts.URL + "/v1", Logger: logger})

		_, err := srv.Search(ctx, "expired", "Yellow", 1)
		if !errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired, got %v", err)
		}
	})

	t.Run("TrackDetails", func(t *testing.T) {
		ts := newSpotifyServer(t, &spotifyFake{})
		srv := NewSpotifyService(SpotifyOptions{APIURL: ts.URL + "/v1", Logger: logger})

		tr, err := srv.TrackDetails(ctx, "tok", "sp9")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tr.ID != "sp9" || tr.Name != "Yellow" {
			t.Errorf("unexpected track %+v", tr)
		}

		if _, err := srv.TrackDetails(ctx, "tok", "missing"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("GetPlaylist Follows Pages", func(t *testing.T) {
		ts := newSpotifyServer(t, &spotifyFake{})
		srv := NewSpotifyService(SpotifyOptions{APIURL: ts.URL + "/v1", Logger: logger})

		pl, err := srv.GetPlaylist(ctx, "tok", "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if pl.Name != "Mix" || !pl.Public || pl.ImageURL != "http://img/1" {
			t.Errorf("unexpected playlist metadata %+v", pl)
		}
		if len(pl.Tracks) != 2 || pl.Tracks[0].ID != "t1" || pl.Tracks[1].ID != "t2" {
			t.Errorf("expected tracks t1, t2 in order, got %+v", pl.Tracks)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		ts := newSpotifyServer(t, &spotifyFake{})
		srv := NewSpotifyService(SpotifyOptions{APIURL: ts.URL + "/v1", Logger: logger})

		id, err := srv.CreatePlaylist(ctx, "tok", "Copy", false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "newpl" {
			t.Errorf("expected newpl, got %s", id)
		}
	})

	t.Run("AddTracks In Batches", func(t *testing.T) {
		fake := &spotifyFake{failAdd: 2}
		ts := newSpotifyServer(t, fake)
		srv := NewSpotifyService(SpotifyOptions{APIURL: ts.URL + "/v1", BatchSize: 2, Logger: logger})

		res, err := srv.AddTracks(ctx, "tok", "newpl", []string{"a", "b", "c", "d", "e"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(fake.addBodies) != 3 {
			t.Fatalf("expected 3 batches, got %d", len(fake.addBodies))
		}
		if res.Added != 3 {
			t.Errorf("expected 3 added, got %d", res.Added)
		}
		if strings.Join(res.Failed, ",") != "c,d" {
			t.Errorf("expected the second batch to fail, got %v", res.Failed)
		}
		if !strings.Contains(fake.addBodies[0], "spotify:track:a") {
			t.Errorf("expected track uris in body, got %s", fake.addBodies[0])
		}
	})
}
