package gunner_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/recsyscourse/requestor/internal/gunner"
	"github.com/recsyscourse/requestor/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

const testRecoSize = 3

// fakeEndpoint is a team recommender stub for driving the poller.
type fakeEndpoint struct {
	mu           sync.Mutex
	healthHits   int
	healthStatus int
	token        string
	// perUser overrides the default valid answer for specific users.
	perUser map[int64]func(attempt int, w http.ResponseWriter)
	// attempts tracks per-user request counts.
	attempts map[int64]int
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{
		healthStatus: http.StatusOK,
		perUser:      make(map[int64]func(attempt int, w http.ResponseWriter)),
		attempts:     make(map[int64]int),
	}
}

func (f *fakeEndpoint) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if r.URL.Path == "/health" {
			f.mu.Lock()
			f.healthHits++
			status := f.healthStatus
			f.mu.Unlock()
			w.WriteHeader(status)
			return
		}

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		userID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		f.mu.Lock()
		f.attempts[userID]++
		attempt := f.attempts[userID]
		custom := f.perUser[userID]
		f.mu.Unlock()

		if custom != nil {
			custom(attempt, w)
			return
		}

		items := []int64{userID*10 + 1, userID*10 + 2, userID*10 + 3}
		_ = json.NewEncoder(w).Encode(gunner.RecoResponse{UserID: userID, Items: items})
	})
}

func userIDs(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids
}

func TestGetRecos(t *testing.T) {
	Convey("Given a healthy endpoint that always answers 200", t, func() {
		endpoint := newFakeEndpoint()
		srv := httptest.NewServer(endpoint.handler())
		defer srv.Close()

		svc := gunner.New(
			gunner.WithRecoSize(testRecoSize),
			gunner.WithBatchSize(10),
			gunner.WithMaxAttempts(3),
		)

		Convey("When polling 10 users with batch size 10", func() {
			recos, err := svc.GetRecos(context.Background(), srv.URL, "model_1", userIDs(10), "", nil)

			Convey("Then it should return exactly 10 responses", func() {
				So(err, ShouldBeNil)
				So(len(recos), ShouldEqual, 10)
			})

			Convey("Then it should issue exactly one health check", func() {
				So(endpoint.healthHits, ShouldEqual, 1)
			})

			Convey("Then every user should have been requested exactly once", func() {
				for _, id := range userIDs(10) {
					So(endpoint.attempts[id], ShouldEqual, 1)
				}
			})
		})

		Convey("When polling across several batches", func() {
			svc := gunner.New(
				gunner.WithRecoSize(testRecoSize),
				gunner.WithBatchSize(3),
				gunner.WithMaxAttempts(3),
			)
			recos, err := svc.GetRecos(context.Background(), srv.URL, "model_1", userIDs(10), "", nil)

			Convey("Then all users should still resolve exactly once", func() {
				So(err, ShouldBeNil)
				So(len(recos), ShouldEqual, 10)
				So(endpoint.healthHits, ShouldEqual, 1)
			})
		})
	})

	Convey("Given an endpoint requiring a bearer token", t, func() {
		endpoint := newFakeEndpoint()
		endpoint.token = "secret"
		srv := httptest.NewServer(endpoint.handler())
		defer srv.Close()

		svc := gunner.New(gunner.WithRecoSize(testRecoSize))

		Convey("When polling with the right token", func() {
			recos, err := svc.GetRecos(context.Background(), srv.URL, "m", userIDs(2), "secret", nil)

			Convey("Then the run should succeed", func() {
				So(err, ShouldBeNil)
				So(len(recos), ShouldEqual, 2)
			})
		})

		Convey("When polling with a wrong token", func() {
			_, err := svc.GetRecos(context.Background(), srv.URL, "m", userIDs(2), "wrong", nil)

			Convey("Then the run should fail on the health gate with the auth error", func() {
				So(errors.Is(err, gunner.ErrAuthorization), ShouldBeTrue)
			})
		})
	})

	Convey("Given an endpoint whose health check returns 500", t, func() {
		endpoint := newFakeEndpoint()
		endpoint.healthStatus = http.StatusInternalServerError
		srv := httptest.NewServer(endpoint.handler())
		defer srv.Close()

		svc := gunner.New(gunner.WithRecoSize(testRecoSize))

		Convey("When polling", func() {
			_, err := svc.GetRecos(context.Background(), srv.URL, "m", userIDs(2), "", nil)

			Convey("Then the run should fail with the non-ok error before any user polling", func() {
				So(errors.Is(err, gunner.ErrResponseNotOK), ShouldBeTrue)
				So(len(endpoint.attempts), ShouldEqual, 0)
			})
		})
	})

	Convey("Given one user that always answers 503", t, func() {
		endpoint := newFakeEndpoint()
		endpoint.perUser[2] = func(_ int, w http.ResponseWriter) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		srv := httptest.NewServer(endpoint.handler())
		defer srv.Close()

		svc := gunner.New(
			gunner.WithRecoSize(testRecoSize),
			gunner.WithMaxAttempts(3),
		)

		Convey("When polling", func() {
			recos, err := svc.GetRecos(context.Background(), srv.URL, "m", userIDs(3), "", nil)

			Convey("Then the run should abort with the request limit error and no partial results", func() {
				So(errors.Is(err, gunner.ErrRequestLimitByUser), ShouldBeTrue)
				So(recos, ShouldBeNil)

				var limitErr *gunner.RequestLimitError
				So(errors.As(err, &limitErr), ShouldBeTrue)
				So(limitErr.UserID, ShouldEqual, 2)
				So(limitErr.LastStatus, ShouldEqual, http.StatusServiceUnavailable)
			})

			Convey("Then the failing user should have seen exactly the retry budget", func() {
				So(endpoint.attempts[2], ShouldEqual, 3)
			})
		})
	})

	Convey("Given one user that recovers after two failures", t, func() {
		endpoint := newFakeEndpoint()
		endpoint.perUser[1] = func(attempt int, w http.ResponseWriter) {
			if attempt < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_ = json.NewEncoder(w).Encode(gunner.RecoResponse{UserID: 1, Items: []int64{5, 6, 7}})
		}
		srv := httptest.NewServer(endpoint.handler())
		defer srv.Close()

		svc := gunner.New(
			gunner.WithRecoSize(testRecoSize),
			gunner.WithMaxAttempts(3),
		)

		Convey("When polling", func() {
			recos, err := svc.GetRecos(context.Background(), srv.URL, "m", userIDs(2), "", nil)

			Convey("Then the run should succeed with one response per user", func() {
				So(err, ShouldBeNil)
				So(len(recos), ShouldEqual, 2)
				So(endpoint.attempts[1], ShouldEqual, 3)
				So(endpoint.attempts[2], ShouldEqual, 1)
			})
		})
	})

	Convey("Given a user that returns a wrong-size recommendation list", t, func() {
		endpoint := newFakeEndpoint()
		endpoint.perUser[1] = func(_ int, w http.ResponseWriter) {
			_ = json.NewEncoder(w).Encode(gunner.RecoResponse{UserID: 1, Items: []int64{5}})
		}
		srv := httptest.NewServer(endpoint.handler())
		defer srv.Close()

		svc := gunner.New(gunner.WithRecoSize(testRecoSize))

		Convey("When polling", func() {
			_, err := svc.GetRecos(context.Background(), srv.URL, "m", userIDs(1), "", nil)

			Convey("Then the run should fail fatally without retrying", func() {
				So(errors.Is(err, gunner.ErrRecommendationsLimitSize), ShouldBeTrue)
				So(endpoint.attempts[1], ShouldEqual, 1)
			})
		})
	})

	Convey("Given a user that returns duplicate items", t, func() {
		endpoint := newFakeEndpoint()
		endpoint.perUser[1] = func(_ int, w http.ResponseWriter) {
			_ = json.NewEncoder(w).Encode(gunner.RecoResponse{UserID: 1, Items: []int64{5, 5, 6}})
		}
		srv := httptest.NewServer(endpoint.handler())
		defer srv.Close()

		svc := gunner.New(gunner.WithRecoSize(testRecoSize))

		Convey("When polling", func() {
			_, err := svc.GetRecos(context.Background(), srv.URL, "m", userIDs(1), "", nil)

			Convey("Then the run should fail with the duplicates error", func() {
				So(errors.Is(err, gunner.ErrDuplicatedRecommendations), ShouldBeTrue)
			})
		})
	})

	Convey("Given a user that returns an oversized body", t, func() {
		endpoint := newFakeEndpoint()
		endpoint.perUser[1] = func(_ int, w http.ResponseWriter) {
			fmt.Fprintf(w, `{"user_id": 1, "items": [%s]}`, strings.Repeat("1,", 5000)+"2")
		}
		srv := httptest.NewServer(endpoint.handler())
		defer srv.Close()

		svc := gunner.New(
			gunner.WithRecoSize(testRecoSize),
			gunner.WithMaxRespBytes(256),
		)

		Convey("When polling", func() {
			_, err := svc.GetRecos(context.Background(), srv.URL, "m", userIDs(1), "", nil)

			Convey("Then the run should fail with the huge response error", func() {
				So(errors.Is(err, gunner.ErrHugeResponseSize), ShouldBeTrue)
			})
		})
	})

	Convey("Given an endpoint slower than the run deadline", t, func() {
		endpoint := newFakeEndpoint()
		slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.WriteHeader(http.StatusOK)
				return
			}
			time.Sleep(500 * time.Millisecond)
			endpoint.handler().ServeHTTP(w, r)
		})
		srv := httptest.NewServer(slow)
		defer srv.Close()

		svc := gunner.New(
			gunner.WithRecoSize(testRecoSize),
			gunner.WithTimeout(100*time.Millisecond),
		)

		Convey("When polling", func() {
			recos, err := svc.GetRecos(context.Background(), srv.URL, "m", userIDs(2), "", nil)

			Convey("Then the run should fail with the timeout error and discard progress", func() {
				So(errors.Is(err, gunner.ErrRequestTimeout), ShouldBeTrue)
				So(recos, ShouldBeNil)
			})
		})
	})
}

type countingNotifier struct {
	calls atomic.Int64
	fail  bool
}

func (n *countingNotifier) Notify(_ context.Context, _ string) error {
	n.calls.Add(1)
	if n.fail {
		return errors.New("notify failed")
	}
	return nil
}

func TestProgressNotification(t *testing.T) {
	Convey("Given 10 users polled in batches of 2", t, func() {
		endpoint := newFakeEndpoint()
		srv := httptest.NewServer(endpoint.handler())
		defer srv.Close()

		svc := gunner.New(
			gunner.WithRecoSize(testRecoSize),
			gunner.WithBatchSize(2),
			gunner.WithProgressPeriod(0.4),
		)

		Convey("When polling with a notifier", func() {
			notifier := &countingNotifier{}
			recos, err := svc.GetRecos(context.Background(), srv.URL, "m", userIDs(10), "", notifier)

			Convey("Then progress should be reported at each period crossing", func() {
				So(err, ShouldBeNil)
				So(len(recos), ShouldEqual, 10)
				// 5 batches, period 0.4: crossings at 2/5 and 4/5.
				So(notifier.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the notifier keeps failing", func() {
			notifier := &countingNotifier{fail: true}
			recos, err := svc.GetRecos(context.Background(), srv.URL, "m", userIDs(10), "", notifier)

			Convey("Then polling should not be affected", func() {
				So(err, ShouldBeNil)
				So(len(recos), ShouldEqual, 10)
				So(notifier.calls.Load(), ShouldBeGreaterThan, 0)
			})
		})
	})
}
