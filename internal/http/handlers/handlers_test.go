package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

const (
	recipeID = "141add05-4415-4938-b5a1-17e0d3171aff"
	logID    = "9b2f7f8e-0d3c-4d1b-9f55-2c0b3c1f4a10"
)

//
// stubs
//

type stubRecipes struct {
	gotUser, gotTitle string
	err               error
}

func (s *stubRecipes) Create(_ context.Context, userID, title, text string, m domain.Macros) (*domain.Recipe, error) {
	s.gotUser, s.gotTitle = userID, title
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Recipe{ID: recipeID, UserID: userID, Title: title, Text: text, Macros: m, Version: 1}, nil
}

func (s *stubRecipes) Get(_ context.Context, userID, id string) (*domain.Recipe, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Recipe{ID: id, UserID: userID, Title: "Soup"}, nil
}

type stubProfiles struct {
	gotTZ *string
	err   error
}

func (s *stubProfiles) Get(_ context.Context, userID string) (*domain.Profile, error) {
	return &domain.Profile{UserID: userID}, nil
}

func (s *stubProfiles) Update(_ context.Context, userID string, tz *string, prefs string) (*domain.Profile, error) {
	s.gotTZ = tz
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Profile{UserID: userID, Timezone: tz, Preferences: prefs}, nil
}

type stubAdapt struct {
	propose   func(services.ProposeInput) (*services.ProposeResult, error)
	gotAccept services.AcceptInput
	acceptErr error
	abandoned []string
	quota     *domain.QuotaWindow
}

func (s *stubAdapt) Propose(_ context.Context, in services.ProposeInput) (*services.ProposeResult, error) {
	return s.propose(in)
}

func (s *stubAdapt) Accept(_ context.Context, in services.AcceptInput) (*domain.Recipe, error) {
	s.gotAccept = in
	if s.acceptErr != nil {
		return nil, s.acceptErr
	}
	return &domain.Recipe{ID: in.RecipeID, UserID: in.UserID, Text: in.RecipeText, Version: 2}, nil
}

func (s *stubAdapt) Abandon(_ context.Context, userID, recipeID, logID string) error {
	s.abandoned = append(s.abandoned, logID)
	if len(s.abandoned) > 1 {
		return services.ErrProposalNotFound
	}
	return nil
}

func (s *stubAdapt) QuotaStatus(_ context.Context, userID string) (*domain.QuotaWindow, error) {
	return s.quota, nil
}

//
// helpers
//

func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/recipes", h.CreateRecipe)
	r.GET("/recipes/:id", h.GetRecipe)
	r.GET("/profile", h.GetProfile)
	r.PUT("/profile", h.UpdateProfile)
	r.GET("/adaptations/quota", h.GetQuota)
	r.POST("/recipes/:id/adaptations", h.ProposeAdaptation)
	r.POST("/recipes/:id/adaptations/:logId/accept", h.AcceptAdaptation)
	r.DELETE("/recipes/:id/adaptations/:logId", h.AbandonAdaptation)
	return r
}

func do(r *gin.Engine, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", "u1")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

//
// recipes and profile
//

func TestCreateRecipe(t *testing.T) {
	rs := &stubRecipes{}
	r := newTestRouter(New(rs, &stubProfiles{}, &stubAdapt{}))

	w := do(r, http.MethodPost, "/recipes", `{"title":"Soup","text":"boil","macros":{"kcal":100}}`, nil)
	if w.Code != http.StatusCreated || rs.gotUser != "u1" {
		t.Fatalf("create = %d user=%q %s", w.Code, rs.gotUser, w.Body.String())
	}

	w = do(r, http.MethodPost, "/recipes", `{bad`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json = %d", w.Code)
	}

	rs.err = services.ErrInvalidRecipe
	w = do(r, http.MethodPost, "/recipes", `{"title":""}`, nil)
	if w.Code != http.StatusBadRequest || decodeErr(t, w).Code != ErrCodeInvalidRecipe {
		t.Fatalf("invalid = %d %s", w.Code, w.Body.String())
	}

	rs.err = &services.Error{Kind: services.KindInvalidMacros}
	w = do(r, http.MethodPost, "/recipes", `{"title":"x","text":"y","macros":{"kcal":-1}}`, nil)
	if w.Code != http.StatusBadRequest || decodeErr(t, w).Code != string(services.KindInvalidMacros) {
		t.Fatalf("macros = %d %s", w.Code, w.Body.String())
	}
}

func TestGetRecipe(t *testing.T) {
	rs := &stubRecipes{}
	r := newTestRouter(New(rs, &stubProfiles{}, &stubAdapt{}))

	if w := do(r, http.MethodGet, "/recipes/not-a-uuid", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/recipes/"+recipeID, "", nil); w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	rs.err = services.ErrRecipeNotFound
	w := do(r, http.MethodGet, "/recipes/"+recipeID, "", nil)
	if w.Code != http.StatusNotFound || decodeErr(t, w).Code != "recipe_not_found" {
		t.Fatalf("missing = %d %s", w.Code, w.Body.String())
	}
}

func TestProfileEndpoints(t *testing.T) {
	ps := &stubProfiles{}
	r := newTestRouter(New(&stubRecipes{}, ps, &stubAdapt{}))

	w := do(r, http.MethodPut, "/profile", `{"timezone":"Europe/Athens","preferences":"vegan"}`, nil)
	if w.Code != http.StatusOK || ps.gotTZ == nil || *ps.gotTZ != "Europe/Athens" {
		t.Fatalf("update = %d %s", w.Code, w.Body.String())
	}

	ps.err = errors.Join(services.ErrInvalidTimezone, errors.New(`"Mars/Base"`))
	w = do(r, http.MethodPut, "/profile", `{"timezone":"Mars/Base"}`, nil)
	if w.Code != http.StatusBadRequest || decodeErr(t, w).Code != ErrCodeInvalidTimezone {
		t.Fatalf("invalid tz = %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/profile", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
}

//
// adaptations
//

func completed() *services.ProposeResult {
	return &services.ProposeResult{Outcome: domain.Outcome{
		Status: domain.OutcomeCompleted,
		LogID:  logID,
		Proposal: &domain.AdaptationProposal{
			LogID: logID, RecipeID: recipeID, Goal: domain.GoalReduceCalories,
			ProposedMacros: domain.Macros{Kcal: 900},
		},
	}}
}

func TestProposeAdaptation_CompletedAndReplay(t *testing.T) {
	var got []services.ProposeInput
	as := &stubAdapt{propose: func(in services.ProposeInput) (*services.ProposeResult, error) {
		got = append(got, in)
		res := completed()
		res.Replayed = len(got) > 1
		return res, nil
	}}
	r := newTestRouter(New(&stubRecipes{}, &stubProfiles{}, as))
	body := `{"goal":"reduce_calories","notes":"  spicy "}`
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "k-1"}

	first := do(r, http.MethodPost, "/recipes/"+recipeID+"/adaptations", body, hdr)
	if first.Code != http.StatusOK || first.Header().Get(middleware.HeaderIdempotencyReplayed) != "" {
		t.Fatalf("first = %d %v", first.Code, first.Header())
	}
	second := do(r, http.MethodPost, "/recipes/"+recipeID+"/adaptations", body, hdr)
	if second.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("replay header missing: %v", second.Header())
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}

	in := got[0]
	if in.UserID != "u1" || in.RecipeID != recipeID || in.Goal != domain.GoalReduceCalories ||
		in.Notes != "spicy" || in.IdempotencyKey != "k-1" {
		t.Fatalf("input = %+v", in)
	}
	var out domain.Outcome
	if err := json.Unmarshal(first.Body.Bytes(), &out); err != nil || out.Proposal == nil || out.Proposal.ProposedMacros.Kcal != 900 {
		t.Fatalf("outcome = %+v err=%v", out, err)
	}
}

func TestProposeAdaptation_PendingIs202(t *testing.T) {
	as := &stubAdapt{propose: func(services.ProposeInput) (*services.ProposeResult, error) {
		return &services.ProposeResult{Outcome: domain.Outcome{Status: domain.OutcomePending, LogID: logID}}, nil
	}}
	r := newTestRouter(New(&stubRecipes{}, &stubProfiles{}, as))
	w := do(r, http.MethodPost, "/recipes/"+recipeID+"/adaptations", `{"goal":"reduce_fat"}`, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("pending = %d", w.Code)
	}
}

func TestProposeAdaptation_Errors(t *testing.T) {
	var next error
	calls := 0
	as := &stubAdapt{propose: func(services.ProposeInput) (*services.ProposeResult, error) {
		calls++
		return nil, next
	}}
	r := newTestRouter(New(&stubRecipes{}, &stubProfiles{}, as))
	path := "/recipes/" + recipeID + "/adaptations"

	w := do(r, http.MethodPost, path, `{"goal":"reduce_fat"}`, map[string]string{middleware.HeaderIdempotencyKey: "bad key!"})
	if w.Code != http.StatusBadRequest || calls != 0 {
		t.Fatalf("invalid key = %d calls=%d", w.Code, calls)
	}

	next = services.ErrAdaptationInProgress
	if w := do(r, http.MethodPost, path, `{"goal":"reduce_fat"}`, nil); w.Code != http.StatusConflict {
		t.Fatalf("in progress = %d", w.Code)
	}

	end := time.Now().Add(time.Hour).UTC()
	next = &services.Error{Kind: services.KindQuotaExceeded, Window: &domain.QuotaWindow{Limit: 3, Used: 3, WindowEnd: end}}
	w = do(r, http.MethodPost, path, `{"goal":"reduce_fat"}`, nil)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("quota = %d %v", w.Code, w.Header())
	}

	next = &services.Error{Kind: services.KindInvalidGoal}
	if w := do(r, http.MethodPost, path, `{"goal":"more_bacon"}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("goal = %d", w.Code)
	}
}

func TestAcceptAdaptation(t *testing.T) {
	as := &stubAdapt{}
	r := newTestRouter(New(&stubRecipes{}, &stubProfiles{}, as))
	path := "/recipes/" + recipeID + "/adaptations/" + logID + "/accept"

	w := do(r, http.MethodPost, path, `{"recipe_text":" edited ","macros":{"kcal":850}}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("accept = %d %s", w.Code, w.Body.String())
	}
	if as.gotAccept.RecipeText != "edited" || as.gotAccept.Macros == nil || as.gotAccept.Macros.Kcal != 850 ||
		as.gotAccept.LogID != logID || as.gotAccept.UserID != "u1" {
		t.Fatalf("accept input = %+v", as.gotAccept)
	}

	// An empty body accepts the proposal as generated.
	w = do(r, http.MethodPost, path, "", nil)
	if w.Code != http.StatusOK || as.gotAccept.Macros != nil || as.gotAccept.RecipeText != "" {
		t.Fatalf("empty body = %d %+v", w.Code, as.gotAccept)
	}

	as.acceptErr = services.ErrProposalNotFound
	if w := do(r, http.MethodPost, path, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("second accept = %d", w.Code)
	}

	if w := do(r, http.MethodPost, "/recipes/"+recipeID+"/adaptations/nope/accept", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad log id = %d", w.Code)
	}
}

func TestAbandonAdaptation(t *testing.T) {
	as := &stubAdapt{}
	r := newTestRouter(New(&stubRecipes{}, &stubProfiles{}, as))
	path := "/recipes/" + recipeID + "/adaptations/" + logID

	if w := do(r, http.MethodDelete, path, "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("abandon = %d", w.Code)
	}
	if w := do(r, http.MethodDelete, path, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("second abandon = %d", w.Code)
	}
}

func TestGetQuota(t *testing.T) {
	as := &stubAdapt{quota: &domain.QuotaWindow{Limit: 3, Used: 1, Remaining: 2, Timezone: "UTC"}}
	r := newTestRouter(New(&stubRecipes{}, &stubProfiles{}, as))

	w := do(r, http.MethodGet, "/adaptations/quota", "", nil)
	var q domain.QuotaWindow
	if err := json.Unmarshal(w.Body.Bytes(), &q); err != nil || w.Code != http.StatusOK || q.Remaining != 2 {
		t.Fatalf("quota = %d %+v err=%v", w.Code, q, err)
	}
}
