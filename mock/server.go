// server.go
// ---------
// Server is an in-memory stand-in for the webeye API, routed with
// gorilla/mux on the same paths the endpoint registry declares. Tests start
// it with httptest and point a Client at it.
package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	sourcewatch "github.com/webeye/sourcewatch"
)

var signingKey = []byte("sourcewatch-mock")

type mockUser struct {
	sourcewatch.User
	password string
}

type Server struct {
	mu            sync.Mutex
	users         map[string]*mockUser // by email
	tokens        map[string]uuid.UUID // token -> user uuid
	sources       map[uuid.UUID]*sourcewatch.Source
	nodes         map[uuid.UUID][]sourcewatch.ResourceNode
	reviews       map[uuid.UUID][]sourcewatch.Review
	socials       map[uuid.UUID][]sourcewatch.SocialReport
	reports       map[uuid.UUID]*sourcewatch.Report
	subscriptions map[uuid.UUID]*sourcewatch.Subscription
	subOwners     map[uuid.UUID]uuid.UUID
	checks        map[uuid.UUID][]sourcewatch.CheckResult
	hits          map[string]int
	ddos          bool
	now           func() time.Time
}

func NewServer() *Server {
	return &Server{
		users:         make(map[string]*mockUser),
		tokens:        make(map[string]uuid.UUID),
		sources:       make(map[uuid.UUID]*sourcewatch.Source),
		nodes:         make(map[uuid.UUID][]sourcewatch.ResourceNode),
		reviews:       make(map[uuid.UUID][]sourcewatch.Review),
		socials:       make(map[uuid.UUID][]sourcewatch.SocialReport),
		reports:       make(map[uuid.UUID]*sourcewatch.Report),
		subscriptions: make(map[uuid.UUID]*sourcewatch.Subscription),
		subOwners:     make(map[uuid.UUID]uuid.UUID),
		checks:        make(map[uuid.UUID][]sourcewatch.CheckResult),
		hits:          make(map[string]int),
		now:           time.Now,
	}
}

// Handler routes the API under /api/ and the stats export outside it.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.countHits)
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/users/", s.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login/access-token", s.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/users/me", s.authed(s.me)).Methods(http.MethodGet)
	api.HandleFunc("/auth/users/me/subscriptions", s.authed(s.listSubscriptions)).Methods(http.MethodGet)
	api.HandleFunc("/auth/users/telegram/generate_token", s.authed(s.botToken)).Methods(http.MethodGet)

	api.HandleFunc("/resources/", s.listSources).Methods(http.MethodGet)
	api.HandleFunc("/resources/", s.admin(s.createSource)).Methods(http.MethodPost)
	api.HandleFunc("/resources/is_ddos", s.isDdos).Methods(http.MethodGet)
	api.HandleFunc("/resources/nodes/", s.admin(s.createNode)).Methods(http.MethodPost)
	api.HandleFunc("/resources/{uuid}", s.getSource).Methods(http.MethodGet)
	api.HandleFunc("/resources/{uuid}", s.admin(s.deleteSource)).Methods(http.MethodDelete)
	api.HandleFunc("/resources/{uuid}/nodes", s.listNodes).Methods(http.MethodGet)
	api.HandleFunc("/resources/{uuid}/reviews", s.listReviews).Methods(http.MethodGet)
	api.HandleFunc("/resources/{uuid}/social_reports", s.listSocials).Methods(http.MethodGet)
	api.HandleFunc("/resources/{uuid}/reports", s.listSourceReports).Methods(http.MethodGet)
	api.HandleFunc("/resources/{uuid}/stats/checks", s.listChecks).Methods(http.MethodGet)

	api.HandleFunc("/reviews/", s.authed(s.createReview)).Methods(http.MethodPost)
	api.HandleFunc("/subscriptions/", s.authed(s.createSubscription)).Methods(http.MethodPost)
	api.HandleFunc("/subscriptions/{uuid}", s.authed(s.patchSubscription)).Methods(http.MethodPatch)
	api.HandleFunc("/reports/", s.authed(s.createReport)).Methods(http.MethodPost)
	api.HandleFunc("/reports/", s.admin(s.listReports)).Methods(http.MethodGet)
	api.HandleFunc("/reports/{uuid}", s.admin(s.patchReport)).Methods(http.MethodPatch)
	api.HandleFunc("/reports/{uuid}", s.admin(s.deleteReport)).Methods(http.MethodDelete)

	r.HandleFunc("/resources/{uuid}/stats/export", s.export).Methods(http.MethodGet)
	return r
}

// Hits returns how many requests reached "METHOD /path" (query excluded).
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// AddUser seeds an account and returns it.
func (s *Server) AddUser(email, password string, superuser bool) sourcewatch.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &mockUser{
		User: sourcewatch.User{
			UUID:        uuid.New(),
			Email:       email,
			IsActive:    true,
			IsSuperuser: superuser,
		},
		password: password,
	}
	s.users[email] = u
	return u.User
}

// AddSource seeds a monitored source and returns it.
func (s *Server) AddSource(name string, status sourcewatch.SourceStatus) sourcewatch.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := &sourcewatch.Source{UUID: uuid.New(), Name: name, Status: status}
	s.sources[src.UUID] = src
	return *src
}

// AddCheck seeds a check result for a source.
func (s *Server) AddCheck(sourceID uuid.UUID, status sourcewatch.SourceStatus, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[sourceID] = append(s.checks[sourceID], sourcewatch.CheckResult{Status: status, CreatedAt: at})
}

func (s *Server) SetDdos(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ddos = on
}

// IssueToken returns a signed access token for user.
func (s *Server) IssueToken(user sourcewatch.User) (string, error) {
	claims := jwt.MapClaims{
		"user_uuid": user.UUID.String(),
		"exp":       s.now().Add(7 * 24 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.tokens[token] = user.UUID
	s.mu.Unlock()
	return token, nil
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var reg sourcewatch.UserRegistration
	if !decode(w, r, &reg) {
		return
	}
	if reg.Email == "" || reg.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}
	s.mu.Lock()
	_, exists := s.users[reg.Email]
	s.mu.Unlock()
	if exists {
		writeDetail(w, http.StatusBadRequest, "The user with this email already exists in the system.")
		return
	}
	u := s.AddUser(reg.Email, reg.Password, false)
	s.mu.Lock()
	s.users[reg.Email].Username = reg.Username
	u = s.users[reg.Email].User
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		writeDetail(w, http.StatusUnprocessableEntity, "form data expected")
		return
	}
	email, password := r.FormValue("username"), r.FormValue("password")
	s.mu.Lock()
	u, ok := s.users[email]
	s.mu.Unlock()
	if !ok || u.password != password {
		writeDetail(w, http.StatusBadRequest, "Incorrect email or password")
		return
	}
	token, err := s.IssueToken(u.User)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sourcewatch.AccessToken{AccessToken: token, TokenType: "bearer"})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user sourcewatch.User)

func (s *Server) currentUser(r *http.Request) (sourcewatch.User, bool) {
	token := r.Header.Get("Authorization")
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return sourcewatch.User{}, false
	}
	for _, u := range s.users {
		if u.UUID == id {
			return u.User, true
		}
	}
	return sourcewatch.User{}, false
}

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.currentUser(r)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		h(w, r, u)
	}
}

func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, u sourcewatch.User) {
		if !u.IsSuperuser {
			writeDetail(w, http.StatusForbidden, "The user doesn't have enough privileges")
			return
		}
		h(w, r)
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, u sourcewatch.User) {
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) botToken(w http.ResponseWriter, r *http.Request, u sourcewatch.User) {
	writeJSON(w, http.StatusOK, sourcewatch.BotToken{Token: strings.ReplaceAll(uuid.NewString(), "-", "")})
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	out := make([]sourcewatch.Source, 0, len(s.sources))
	for _, src := range s.sources {
		if st := q.Get("status"); st != "" && string(src.Status) != st {
			continue
		}
		if name := q.Get("name"); name != "" && !strings.Contains(strings.ToLower(src.Name), strings.ToLower(name)) {
			continue
		}
		out = append(out, *src)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if skip > len(out) {
		skip = len(out)
	}
	out = out[skip:]
	if limit < len(out) {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createSource(w http.ResponseWriter, r *http.Request) {
	var in sourcewatch.ResourceCreate
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	for _, src := range s.sources {
		if src.Name == in.Name {
			s.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "The resource with this name allready exist")
			return
		}
	}
	status := in.Status
	if status == "" {
		status = sourcewatch.SourceUnknown
	}
	src := &sourcewatch.Source{UUID: uuid.New(), Name: in.Name, Description: in.Description, Status: status}
	s.sources[src.UUID] = src
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) isDdos(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	on := s.ddos
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, sourcewatch.DdosStatus{IsDdos: on})
}

func (s *Server) createNode(w http.ResponseWriter, r *http.Request) {
	var in sourcewatch.ResourceNode
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[in.ResourceUUID]; !ok {
		writeDetail(w, http.StatusNotFound, "The resource with this id does not exist")
		return
	}
	if in.UUID == uuid.Nil {
		in.UUID = uuid.New()
	}
	s.nodes[in.ResourceUUID] = append(s.nodes[in.ResourceUUID], in)
	writeJSON(w, http.StatusCreated, in)
}

// source resolves the {uuid} route variable; it writes the error itself.
func (s *Server) source(w http.ResponseWriter, r *http.Request) (*sourcewatch.Source, bool) {
	id, err := uuid.Parse(mux.Vars(r)["uuid"])
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "value is not a valid uuid")
		return nil, false
	}
	s.mu.Lock()
	src, ok := s.sources[id]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "The resource with this id does not exist")
		return nil, false
	}
	return src, true
}

func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	src, ok := s.source(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := *src
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteSource(w http.ResponseWriter, r *http.Request) {
	src, ok := s.source(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.sources, src.UUID)
	delete(s.nodes, src.UUID)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	src, ok := s.source(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := append([]sourcewatch.ResourceNode{}, s.nodes[src.UUID]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	src, ok := s.source(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := append([]sourcewatch.Review{}, s.reviews[src.UUID]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listSocials(w http.ResponseWriter, r *http.Request) {
	src, ok := s.source(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := append([]sourcewatch.SocialReport{}, s.socials[src.UUID]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listSourceReports(w http.ResponseWriter, r *http.Request) {
	src, ok := s.source(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.reportList(func(rep *sourcewatch.Report) bool {
		return rep.ResourceUUID == src.UUID
	}))
}

func (s *Server) listChecks(w http.ResponseWriter, r *http.Request) {
	src, ok := s.source(w, r)
	if !ok {
		return
	}
	delta, err := strconv.Atoi(r.URL.Query().Get("timedelta"))
	if err != nil || delta <= 0 {
		delta = 172800
	}
	since := s.now().Add(-time.Duration(delta) * time.Second)
	s.mu.Lock()
	out := []sourcewatch.CheckResult{}
	for _, c := range s.checks[src.UUID] {
		if !c.CreatedAt.Before(since) {
			out = append(out, c)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request, u sourcewatch.User) {
	var in sourcewatch.ReviewCreate
	if !decode(w, r, &in) {
		return
	}
	if in.Rating < 1 || in.Rating > 5 {
		writeDetail(w, http.StatusUnprocessableEntity, "rating must be between 1 and 5")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[in.ResourceUUID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "The resource with this id does not exist")
		return
	}
	s.reviews[src.UUID] = append(s.reviews[src.UUID], sourcewatch.Review{
		UUID:         uuid.New(),
		ResourceUUID: src.UUID,
		Username:     u.Email,
		Rating:       in.Rating,
		Text:         in.Text,
		CreatedAt:    s.now(),
	})
	var sum int
	for _, rv := range s.reviews[src.UUID] {
		sum += rv.Rating
	}
	src.Rating = float64(sum) / float64(len(s.reviews[src.UUID]))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) listSubscriptions(w http.ResponseWriter, r *http.Request, u sourcewatch.User) {
	filter := r.URL.Query().Get("resource_uuid")
	s.mu.Lock()
	out := []sourcewatch.Subscription{}
	for id, sub := range s.subscriptions {
		if s.subOwners[id] != u.UUID {
			continue
		}
		if filter != "" && sub.ResourceUUID.String() != filter {
			continue
		}
		out = append(out, *sub)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UUID.String() < out[j].UUID.String() })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request, u sourcewatch.User) {
	var in sourcewatch.SubscriptionCreate
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[in.ResourceUUID]; !ok {
		writeDetail(w, http.StatusNotFound, "The resource with this id does not exist")
		return
	}
	sub := &sourcewatch.Subscription{UUID: uuid.New(), ResourceUUID: in.ResourceUUID, Active: in.Active}
	s.subscriptions[sub.UUID] = sub
	s.subOwners[sub.UUID] = u.UUID
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) patchSubscription(w http.ResponseWriter, r *http.Request, u sourcewatch.User) {
	id, err := uuid.Parse(mux.Vars(r)["uuid"])
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "value is not a valid uuid")
		return
	}
	var in map[string]json.RawMessage
	if !decode(w, r, &in) {
		return
	}
	if _, leaked := in["uuid"]; leaked {
		writeDetail(w, http.StatusUnprocessableEntity, "uuid is not allowed in the body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok || s.subOwners[id] != u.UUID {
		writeDetail(w, http.StatusNotFound, "Subscription not found")
		return
	}
	if raw, ok := in["active"]; ok {
		if err := json.Unmarshal(raw, &sub.Active); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "active must be a boolean")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request, u sourcewatch.User) {
	var in sourcewatch.ReportCreate
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[in.ResourceUUID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "The resource with this id does not exist")
		return
	}
	rep := &sourcewatch.Report{
		UUID:         uuid.New(),
		ResourceUUID: src.UUID,
		ResourceName: src.Name,
		Status:       in.Status,
		Text:         in.Text,
		CreatedAt:    s.now(),
	}
	s.reports[rep.UUID] = rep
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reportList(func(*sourcewatch.Report) bool { return true }))
}

func (s *Server) reportList(keep func(*sourcewatch.Report) bool) []sourcewatch.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []sourcewatch.Report{}
	for _, rep := range s.reports {
		if keep(rep) {
			out = append(out, *rep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) (*sourcewatch.Report, bool) {
	id, err := uuid.Parse(mux.Vars(r)["uuid"])
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "value is not a valid uuid")
		return nil, false
	}
	s.mu.Lock()
	rep, ok := s.reports[id]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Report not found")
		return nil, false
	}
	return rep, true
}

func (s *Server) patchReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	var in sourcewatch.ReportPatch
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	if in.Status != nil {
		rep.Status = *in.Status
	}
	if in.Text != nil {
		rep.Text = *in.Text
	}
	if in.IsModerated != nil {
		rep.IsModerated = *in.IsModerated
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.reports, rep.UUID)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	src, ok := s.source(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	fmt.Fprintln(w, "created_at,status")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.checks[src.UUID] {
		fmt.Fprintf(w, "%s,%s\n", c.CreatedAt.Format(time.RFC3339), c.Status)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
