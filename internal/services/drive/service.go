package drive

import (
	"context"
	"fmt"
	"net/http"
)

// Service pairs an Authenticator with a Client; it is the installer's
// remote storage collaborator.
type Service struct {
	auth   *Authenticator
	opt    ClientOptions
	client *Client

	// newHTTP is swapped in tests.
	newHTTP func(ctx context.Context) (*http.Client, error)
}

func NewService(auth *Authenticator, opt ClientOptions) *Service {
	s := &Service{auth: auth, opt: opt}
	s.newHTTP = auth.Client
	return s
}

// Authenticate signs in (or reuses a cached token, per TokenReuse) and
// prepares the client for later calls.
func (s *Service) Authenticate(ctx context.Context) error {
	hc, err := s.newHTTP(ctx)
	if err != nil {
		return err
	}
	s.client = NewClient(hc, s.opt)
	return nil
}

func (s *Service) Fetch(ctx context.Context, id, dest string, opt FetchOptions) (FetchResult, error) {
	if s.client == nil {
		return FetchResult{}, fmt.Errorf("%w: not signed in", ErrAuth)
	}
	return s.client.Fetch(ctx, id, dest, opt)
}
