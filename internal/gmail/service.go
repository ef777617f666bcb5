package gmail

import (
	"context"
	"errors"

	"github.com/mailgate/gmailapi/internal/metrics"
	"github.com/mailgate/gmailapi/internal/user"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	me = "me"

	// DefaultMaxResults applies when the caller does not ask for a size.
	DefaultMaxResults = 10
	// MaxResultsLimit caps a single listing.
	MaxResultsLimit = 100

	fetchConcurrency = 5
)

type accessTokenSource interface {
	AccessToken(ctx context.Context, u user.User) (string, error)
}

// Service reads a user's mailbox through the Gmail API.
type Service struct {
	tokens     accessTokenSource
	logger     *zap.Logger
	apiOptions []option.ClientOption
}

// NewService constructs a Service. opts are appended to every Gmail client.
func NewService(tokens accessTokenSource, logger *zap.Logger, opts ...option.ClientOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{tokens: tokens, logger: logger, apiOptions: opts}
}

// ListLabels returns every label in the mailbox.
func (s *Service) ListLabels(ctx context.Context, u user.User) ([]*gmailapi.Label, error) {
	svc, err := s.client(ctx, u)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Users.Labels.List(me).Context(ctx).Do()
	if err := s.observe("labels.list", err); err != nil {
		return nil, err
	}
	if resp.Labels == nil {
		return []*gmailapi.Label{}, nil
	}
	return resp.Labels, nil
}

// GetLabel returns one label with its counters.
func (s *Service) GetLabel(ctx context.Context, u user.User, id string) (*gmailapi.Label, error) {
	svc, err := s.client(ctx, u)
	if err != nil {
		return nil, err
	}

	label, err := svc.Users.Labels.Get(me, id).Context(ctx).Do()
	if err := s.observe("labels.get", err); err != nil {
		return nil, err
	}
	return label, nil
}

// ListMessages lists messages matching query and fetches each in full
// format. Results keep the listing order.
func (s *Service) ListMessages(ctx context.Context, u user.User, query string, maxResults int64) ([]*gmailapi.Message, error) {
	svc, err := s.client(ctx, u)
	if err != nil {
		return nil, err
	}

	call := svc.Users.Messages.List(me).MaxResults(ClampMaxResults(maxResults)).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	listing, err := call.Do()
	if err := s.observe("messages.list", err); err != nil {
		return nil, err
	}

	messages := make([]*gmailapi.Message, len(listing.Messages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, ref := range listing.Messages {
		g.Go(func() error {
			msg, err := svc.Users.Messages.Get(me, ref.Id).Format("full").Context(gctx).Do()
			if err := s.observe("messages.get", err); err != nil {
				return err
			}
			messages[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessage returns one message in full format.
func (s *Service) GetMessage(ctx context.Context, u user.User, id string) (*gmailapi.Message, error) {
	svc, err := s.client(ctx, u)
	if err != nil {
		return nil, err
	}

	msg, err := svc.Users.Messages.Get(me, id).Format("full").Context(ctx).Do()
	if err := s.observe("messages.get", err); err != nil {
		return nil, err
	}
	return msg, nil
}

// ClampMaxResults maps n into [1, MaxResultsLimit], with zero or negative
// values meaning DefaultMaxResults.
func ClampMaxResults(n int64) int64 {
	switch {
	case n <= 0:
		return DefaultMaxResults
	case n > MaxResultsLimit:
		return MaxResultsLimit
	default:
		return n
	}
}

func (s *Service) client(ctx context.Context, u user.User) (*gmailapi.Service, error) {
	token, err := s.tokens.AccessToken(ctx, u)
	if err != nil {
		return nil, err
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})),
	}, s.apiOptions...)

	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, &APIError{Op: "client", Err: err}
	}
	return svc, nil
}

// observe counts the call and wraps a failure in *APIError.
func (s *Service) observe(op string, err error) error {
	metrics.GmailCall(op, err == nil)
	if err == nil {
		return nil
	}

	apiErr := &APIError{Op: op, Err: err}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		apiErr.Status = gErr.Code
	}
	s.logger.Warn("gmail api call failed", zap.String("op", op), zap.Int("status", apiErr.Status), zap.Error(err))
	return apiErr
}
