package google

import (
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// FileTokenSource persists every new token obtained from src to a file, so a
// refresh survives the process.
type FileTokenSource struct {
	path string
	src  oauth2.TokenSource

	mu   sync.Mutex
	last string
}

// NewFileTokenSource wraps src. current is the token already stored at path.
func NewFileTokenSource(path string, current *oauth2.Token, src oauth2.TokenSource) *FileTokenSource {
	s := &FileTokenSource{path: path, src: src}
	if current != nil {
		s.last = current.AccessToken
	}
	return s
}

// Token returns the current token, saving it first when it changed.
func (s *FileTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			return nil, fmt.Errorf("saving refreshed token: %w", err)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
