package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lastofguss/tapd/internal/adapters/http/api"
	service "github.com/lastofguss/tapd/internal/app"
	"github.com/lastofguss/tapd/internal/auth"
	"github.com/lastofguss/tapd/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// stubService is a canned Dependencies implementation. Each field, when set,
// overrides the default response for that operation.
type stubService struct {
	authErr  error
	tapErr   error
	tap      service.TapResult
	score    int64
	rounds   []service.RoundInfo
	round    service.RoundInfo
	roundErr error
	created  model.Round

	lastTapUserID  int64
	lastTapRoundID int64
	lastSuppress   bool
}

func (s *stubService) Authenticate(_ context.Context, username, _ string) (service.AuthResult, error) {
	if s.authErr != nil {
		return service.AuthResult{}, s.authErr
	}
	return service.AuthResult{Token: "stub-token", User: model.User{ID: 1, Username: username}}, nil
}

func (s *stubService) Tap(_ context.Context, userID, roundID int64, suppress bool) (service.TapResult, error) {
	s.lastTapUserID = userID
	s.lastTapRoundID = roundID
	s.lastSuppress = suppress
	if s.tapErr != nil {
		return service.TapResult{}, s.tapErr
	}
	return s.tap, nil
}

func (s *stubService) UserScore(_ context.Context, _, _ int64) (int64, error) {
	return s.score, nil
}

func (s *stubService) Rounds(_ context.Context) ([]service.RoundInfo, error) {
	return s.rounds, nil
}

func (s *stubService) Round(_ context.Context, _ int64) (service.RoundInfo, error) {
	if s.roundErr != nil {
		return service.RoundInfo{}, s.roundErr
	}
	return s.round, nil
}

func (s *stubService) CreateRound(_ context.Context) (model.Round, error) {
	return s.created, nil
}

func (s *stubService) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

var testTokens = auth.NewProvider("test-secret")

func bearerFor(t *testing.T, claims auth.Claims) string {
	t.Helper()
	token, err := testTokens.GenerateToken(claims, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func doRequest(router http.Handler, method, path, authz string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthEndpoint(t *testing.T) {
	Convey("Given the auth endpoint", t, func() {
		stub := &stubService{}
		router := api.NewServer(stub, stub, testTokens).Router()

		Convey("When valid credentials are posted", func() {
			rec := doRequest(router, http.MethodPost, "/auth",
				"", map[string]string{"username": "alice", "password": "pw"})

			Convey("Then a token is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					AccessToken string `json:"access_token"`
					Username    string `json:"username"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.AccessToken, ShouldEqual, "stub-token")
				So(resp.Username, ShouldEqual, "alice")
			})
		})

		Convey("When the username is blank", func() {
			rec := doRequest(router, http.MethodPost, "/auth",
				"", map[string]string{"username": "  ", "password": "pw"})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body is not JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/auth", bytes.NewBufferString("{nope"))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the password is wrong", func() {
			stub.authErr = service.ErrInvalidCredentials
			rec := doRequest(router, http.MethodPost, "/auth",
				"", map[string]string{"username": "alice", "password": "bad"})
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestTapEndpoint(t *testing.T) {
	Convey("Given the tap endpoint", t, func() {
		stub := &stubService{tap: service.TapResult{Count: 11, Score: 21}}
		router := api.NewServer(stub, stub, testTokens).Router()
		authz := bearerFor(t, auth.Claims{UserID: 42, Username: "alice"})

		Convey("When an authenticated user taps an active round", func() {
			rec := doRequest(router, http.MethodPut, "/tap", authz, map[string]int64{"round_id": 7})

			Convey("Then the post-increment state comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Count int64 `json:"count"`
					Score int64 `json:"score"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Count, ShouldEqual, 11)
				So(resp.Score, ShouldEqual, 21)
			})

			Convey("And the claims drive the service call", func() {
				So(stub.lastTapUserID, ShouldEqual, 42)
				So(stub.lastTapRoundID, ShouldEqual, 7)
				So(stub.lastSuppress, ShouldBeFalse)
			})
		})

		Convey("When the caller is the suppressed account", func() {
			muted := bearerFor(t, auth.Claims{UserID: 9, Username: "Никита", Suppressed: true})
			rec := doRequest(router, http.MethodPut, "/tap", muted, map[string]int64{"round_id": 7})

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(stub.lastSuppress, ShouldBeTrue)
		})

		Convey("When there is no bearer token", func() {
			rec := doRequest(router, http.MethodPut, "/tap", "", map[string]int64{"round_id": 7})
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When the token is signed with another secret", func() {
			forged, err := auth.NewProvider("wrong").GenerateToken(auth.Claims{UserID: 1}, time.Hour)
			So(err, ShouldBeNil)
			rec := doRequest(router, http.MethodPut, "/tap", "Bearer "+forged, map[string]int64{"round_id": 7})
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When the round id is missing", func() {
			rec := doRequest(router, http.MethodPut, "/tap", authz, map[string]int64{})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the round does not exist", func() {
			stub.tapErr = service.ErrRoundNotFound
			rec := doRequest(router, http.MethodPut, "/tap", authz, map[string]int64{"round_id": 404})
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the round is outside its window", func() {
			stub.tapErr = service.ErrRoundNotActive
			rec := doRequest(router, http.MethodPut, "/tap", authz, map[string]int64{"round_id": 7})
			So(rec.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When the score is fetched", func() {
			stub.score = 32
			rec := doRequest(router, http.MethodGet, "/tap/score/7", authz, nil)

			So(rec.Code, ShouldEqual, http.StatusOK)
			var resp struct {
				Score int64 `json:"score"`
			}
			So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Score, ShouldEqual, 32)
		})

		Convey("When the score path is not a number", func() {
			rec := doRequest(router, http.MethodGet, "/tap/score/abc", authz, nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRoundEndpoints(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	round := model.Round{ID: 1, StartTime: start, EndTime: start.Add(time.Minute)}

	Convey("Given the round endpoints", t, func() {
		stub := &stubService{
			rounds: []service.RoundInfo{
				{Round: round, Status: "active", Leader: "alice", HasLeader: true},
				{Round: model.Round{ID: 2, StartTime: start, EndTime: start.Add(time.Minute)}, Status: "finished"},
			},
			round:   service.RoundInfo{Round: round, Status: "active", Leader: "alice", HasLeader: true},
			created: round,
		}
		router := api.NewServer(stub, stub, testTokens).Router()
		player := bearerFor(t, auth.Claims{UserID: 42, Username: "alice"})
		admin := bearerFor(t, auth.Claims{UserID: 1, Username: "admin", Admin: true})

		Convey("When the list is fetched", func() {
			rec := doRequest(router, http.MethodGet, "/rounds", player, nil)

			Convey("Then leaders serialize as string or null", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp []struct {
					ID     int64   `json:"id"`
					Status string  `json:"status"`
					Leader *string `json:"leader"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(len(resp), ShouldEqual, 2)
				So(resp[0].Leader, ShouldNotBeNil)
				So(*resp[0].Leader, ShouldEqual, "alice")
				So(resp[1].Leader, ShouldBeNil)
			})
		})

		Convey("When one round is fetched", func() {
			stub.score = 21
			rec := doRequest(router, http.MethodGet, "/rounds/1", player, nil)

			Convey("Then the caller's score rides along", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					ID      int64  `json:"id"`
					Status  string `json:"status"`
					MyScore *int64 `json:"my_score"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.ID, ShouldEqual, 1)
				So(resp.MyScore, ShouldNotBeNil)
				So(*resp.MyScore, ShouldEqual, 21)
			})
		})

		Convey("When an unknown round is fetched", func() {
			stub.roundErr = service.ErrRoundNotFound
			rec := doRequest(router, http.MethodGet, "/rounds/404", player, nil)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When a non-admin creates a round", func() {
			rec := doRequest(router, http.MethodPost, "/rounds", player, nil)
			So(rec.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("When the admin creates a round", func() {
			rec := doRequest(router, http.MethodPost, "/rounds", admin, nil)

			So(rec.Code, ShouldEqual, http.StatusCreated)
			var resp struct {
				ID int64 `json:"id"`
			}
			So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.ID, ShouldEqual, 1)
		})

		Convey("When stats are fetched without a token", func() {
			rec := doRequest(router, http.MethodGet, "/stats", "", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})
}
