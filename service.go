package sourcewatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Service exposes one typed method per webeye operation on top of a Client.
type Service struct {
	client *Client
}

// NewService returns a Service backed by client.
func NewService(client *Client) *Service {
	return &Service{client: client}
}

func (s *Service) Client() *Client { return s.client }

// Login exchanges credentials for an access token and stores it. The
// server reads the OAuth2 password form, so the email goes in "username".
func (s *Service) Login(ctx context.Context, email, password string) (*AccessToken, error) {
	form := NewForm("username", email, "password", password)
	tok, err := MutateAs[AccessToken](ctx, s.client, OpLoginUser, nil, WithForm(form))
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, &APIError{Kind: KindDecode, Endpoint: OpLoginUser, Err: fmt.Errorf("response has no access_token")}
	}
	if store := s.client.Tokens(); store != nil {
		if err := store.SetToken(tok.AccessToken); err != nil {
			return nil, fmt.Errorf("store token: %w", err)
		}
	}
	s.client.Invalidate(TagUser, TagSubscription)
	return &tok, nil
}

// Logout forgets the token and every cached result.
func (s *Service) Logout() error {
	if store := s.client.Tokens(); store != nil {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clear token: %w", err)
		}
	}
	s.client.Reset()
	return nil
}

func (s *Service) Register(ctx context.Context, reg UserRegistration) (*User, error) {
	args, err := toArgs(reg)
	if err != nil {
		return nil, err
	}
	u, err := MutateAs[User](ctx, s.client, OpRegisterUser, args)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Me returns the logged-in user.
func (s *Service) Me(ctx context.Context) (*User, error) {
	if err := s.requireToken(); err != nil {
		return nil, err
	}
	u, err := FetchAs[User](ctx, s.client, OpCheckUser, nil)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) BotToken(ctx context.Context) (*BotToken, error) {
	if err := s.requireToken(); err != nil {
		return nil, err
	}
	t, err := MutateAs[BotToken](ctx, s.client, OpGetBotToken, nil)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) Source(ctx context.Context, id uuid.UUID) (*Source, error) {
	src, err := FetchAs[Source](ctx, s.client, OpGetSource, Args{"uuid": id.String()})
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (s *Service) Sources(ctx context.Context, filter SourceFilter) ([]Source, error) {
	args, err := toArgs(filter)
	if err != nil {
		return nil, err
	}
	return FetchAs[[]Source](ctx, s.client, OpGetAllSources, args)
}

func (s *Service) Ddos(ctx context.Context) (*DdosStatus, error) {
	d, err := MutateAs[DdosStatus](ctx, s.client, OpGetDdos, nil)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) SocialReports(ctx context.Context, sourceID uuid.UUID) ([]SocialReport, error) {
	return FetchAs[[]SocialReport](ctx, s.client, OpGetAllSocialReports, Args{"uuid": sourceID.String()})
}

func (s *Service) Reviews(ctx context.Context, sourceID uuid.UUID) ([]Review, error) {
	return FetchAs[[]Review](ctx, s.client, OpGetAllReviews, Args{"uuid": sourceID.String()})
}

func (s *Service) PostReview(ctx context.Context, review ReviewCreate) error {
	return s.mutate(ctx, OpPostReview, review)
}

// Subscriptions lists the user's subscriptions, optionally for one source.
func (s *Service) Subscriptions(ctx context.Context, sourceID uuid.UUID) ([]Subscription, error) {
	if err := s.requireToken(); err != nil {
		return nil, err
	}
	var args Args
	if sourceID != uuid.Nil {
		args = Args{"resource_uuid": sourceID.String()}
	}
	return FetchAs[[]Subscription](ctx, s.client, OpGetSubscriptions, args)
}

func (s *Service) Subscribe(ctx context.Context, sub SubscriptionCreate) (*Subscription, error) {
	args, err := toArgs(sub)
	if err != nil {
		return nil, err
	}
	out, err := MutateAs[Subscription](ctx, s.client, OpPostSubscriptions, args)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetSubscriptionActive toggles a subscription. Only "active" is sent in
// the body; the id goes in the path.
func (s *Service) SetSubscriptionActive(ctx context.Context, id uuid.UUID, active bool) error {
	args, err := toArgs(SubscriptionPatch{Active: active})
	if err != nil {
		return err
	}
	args["uuid"] = id.String()
	_, err = s.client.Mutate(ctx, OpPatchSubscriptions, args)
	return err
}

func (s *Service) PostReport(ctx context.Context, report ReportCreate) error {
	return s.mutate(ctx, OpPostReport, report)
}

func (s *Service) Reports(ctx context.Context) ([]Report, error) {
	return FetchAs[[]Report](ctx, s.client, OpGetAllReports, nil)
}

func (s *Service) SourceReports(ctx context.Context, sourceID uuid.UUID) ([]Report, error) {
	return FetchAs[[]Report](ctx, s.client, OpGetSourceReports, Args{"uuid": sourceID.String()})
}

func (s *Service) PatchReport(ctx context.Context, id uuid.UUID, patch ReportPatch) error {
	args, err := toArgs(patch)
	if err != nil {
		return err
	}
	if args == nil {
		args = Args{}
	}
	args["uuid"] = id.String()
	_, err = s.client.Mutate(ctx, OpAdminPatchReport, args)
	return err
}

func (s *Service) DeleteReport(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.Mutate(ctx, OpAdminDeleteReport, Args{"uuid": id.String()})
	return err
}

func (s *Service) CheckResults(ctx context.Context, q CheckResultsQuery) ([]CheckResult, error) {
	args, err := toArgs(q)
	if err != nil {
		return nil, err
	}
	return FetchAs[[]CheckResult](ctx, s.client, OpGetAllCheckResults, args)
}

func (s *Service) AddSource(ctx context.Context, res ResourceCreate) (*Source, error) {
	args, err := toArgs(res)
	if err != nil {
		return nil, err
	}
	src, err := MutateAs[Source](ctx, s.client, OpAdminPostResource, args)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (s *Service) DeleteSource(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.Mutate(ctx, OpAdminDeleteResource, Args{"uuid": id.String()})
	return err
}

func (s *Service) AddNode(ctx context.Context, node ResourceNode) error {
	return s.mutate(ctx, OpAdminPostResourceNode, node)
}

func (s *Service) Nodes(ctx context.Context, sourceID uuid.UUID) ([]ResourceNode, error) {
	return FetchAs[[]ResourceNode](ctx, s.client, OpGetAllResourceNodes, Args{"uuid": sourceID.String()})
}

func (s *Service) mutate(ctx context.Context, name string, payload any) error {
	args, err := toArgs(payload)
	if err != nil {
		return err
	}
	_, err = s.client.Mutate(ctx, name, args)
	return err
}

func (s *Service) requireToken() error {
	store := s.client.Tokens()
	if store == nil {
		return ErrNotLoggedIn
	}
	tok, err := store.Token()
	if err != nil {
		return err
	}
	if tok == "" {
		return ErrNotLoggedIn
	}
	return nil
}

var nilUUID = uuid.Nil.String()

// toArgs flattens a payload struct into call arguments through its JSON
// form. Nil UUIDs are dropped so the server assigns its own.
func toArgs(v any) (Args, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	var args Args
	if err := json.Unmarshal(b, &args); err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	for k, val := range args {
		if s, ok := val.(string); ok && s == nilUUID {
			delete(args, k)
		}
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}
