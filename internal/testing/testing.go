// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
)

// MockService is a test double for [services.Service]. Search results are keyed by exact query.
// Every call is recorded; all methods are safe for concurrent use.
type MockService struct {
	PlatformID models.Platform

	SearchResults map[string][]models.Track
	SearchErr     error
	// SearchFunc, when set, replaces the map lookup.
	SearchFunc func(query string) ([]models.Track, error)

	Details    map[string]models.Track
	DetailsErr error

	Playlist    *models.Playlist
	PlaylistErr error

	CreatedID string
	CreateErr error
	AddErr    error
	// FailAdds lists track ids that AddTracks reports as failed.
	FailAdds map[string]bool

	mu           sync.Mutex
	Queries      []string
	DetailCalls  []string
	CreateCalls  []string
	AddedTracks  []string
	PlaylistGets int
}

var _ services.Service = (*MockService)(nil)

// NewMockService creates an empty MockService for platform.
func NewMockService(platform models.Platform) *MockService {
	return &MockService{
		PlatformID:    platform,
		SearchResults: map[string][]models.Track{},
		Details:       map[string]models.Track{},
		CreatedID:     "new-playlist",
	}
}

func (m *MockService) Platform() models.Platform { return m.PlatformID }
func (m *MockService) Name() string              { return "mock " + string(m.PlatformID) }

func (m *MockService) Search(_ context.Context, _, query string, limit int) ([]models.Track, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(query)
	}
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	res := m.SearchResults[query]
	if len(res) > limit {
		res = res[:limit]
	}
	return append([]models.Track{}, res...), nil
}

func (m *MockService) TrackDetails(_ context.Context, _, id string) (*models.Track, error) {
	m.mu.Lock()
	m.DetailCalls = append(m.DetailCalls, id)
	m.mu.Unlock()

	if m.DetailsErr != nil {
		return nil, m.DetailsErr
	}
	t, ok := m.Details[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return &t, nil
}

func (m *MockService) GetPlaylist(context.Context, string, string) (*models.Playlist, error) {
	m.mu.Lock()
	m.PlaylistGets++
	m.mu.Unlock()

	if m.PlaylistErr != nil {
		return nil, m.PlaylistErr
	}
	if m.Playlist == nil {
		return nil, shared.ErrPlaylistNotFound
	}
	return m.Playlist, nil
}

func (m *MockService) CreatePlaylist(_ context.Context, _, name string, _ bool) (string, error) {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, name)
	m.mu.Unlock()

	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	return m.CreatedID, nil
}

func (m *MockService) AddTracks(_ context.Context, _, _ string, ids []string) (*services.AddResult, error) {
	if m.AddErr != nil {
		return nil, m.AddErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	res := &services.AddResult{}
	for _, id := range ids {
		if m.FailAdds[id] {
			res.Failed = append(res.Failed, id)
			continue
		}
		m.AddedTracks = append(m.AddedTracks, id)
		res.Added++
	}
	return res, nil
}

// QueryCount returns how many searches ran.
func (m *MockService) QueryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}

// CreateCount returns how many playlists were created.
func (m *MockService) CreateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CreateCalls)
}

// MockCompletion is a test double for [services.CompletionClient].
type MockCompletion struct {
	Answer string
	Err    error

	mu      sync.Mutex
	Prompts []string
}

func (m *MockCompletion) Complete(_ context.Context, _, prompt string) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()
	return m.Answer, m.Err
}

// Calls returns how many completions were requested.
func (m *MockCompletion) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// StaticTokens is a [services.TokenProvider] that always returns Token or Err.
type StaticTokens struct {
	Token string
	Err   error
}

func (s StaticTokens) AccessToken(context.Context, string) (string, error) {
	return s.Token, s.Err
}

// MemoryTokenStore is an in-memory [services.RefreshTokenStore].
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]string{}}
}

func (s *MemoryTokenStore) RefreshToken(_ context.Context, userID string, platform models.Platform) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[userID+"/"+string(platform)]
	if !ok {
		return "", shared.ErrNoRefreshToken
	}
	return tok, nil
}

func (s *MemoryTokenStore) SaveRefreshToken(_ context.Context, userID string, platform models.Platform, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID+"/"+string(platform)] = token
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
