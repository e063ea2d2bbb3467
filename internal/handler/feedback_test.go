package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bluefermion/marketfeedback/internal/apiclient"
	"github.com/bluefermion/marketfeedback/internal/feedback"
	"github.com/bluefermion/marketfeedback/internal/handler"
	"github.com/bluefermion/marketfeedback/internal/model"
	"github.com/bluefermion/marketfeedback/internal/repository"
)

type downStore struct{ handler.Store }

func (downStore) Ping(context.Context) error { return errors.New("disk gone") }

func do(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		Expect(json.NewEncoder(&buf).Encode(b)).To(Succeed())
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var out T
	Expect(json.Unmarshal(w.Body.Bytes(), &out)).To(Succeed())
	return out
}

var _ = Describe("FeedbackHandler", func() {
	var (
		router *gin.Engine
		repo   *repository.SQLiteRepository
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		var err error
		repo, err = repository.NewSQLiteRepository(":memory:")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(repo.Close)
		router = handler.NewRouter(handler.NewFeedbackHandler(repo, nil), nil)
	})

	create := func(body any) *model.Feedback {
		w := do(router, http.MethodPost, "/feedback", body)
		Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
		return decode[model.FeedbackResponse](w).Data
	}

	Describe("POST /feedback", func() {
		It("stores a canonical submission and wraps it in data", func() {
			w := do(router, http.MethodPost, "/feedback", map[string]any{
				"rating":        4,
				"comment":       "Great service",
				"feedback_type": "performance",
				"subject":       "Performance feedback",
				"priority":      "medium",
				"status":        "pending",
				"user_id":       "f-12",
				"user_type":     "farmer",
				"order_id":      "ord-9",
			})
			Expect(w.Code).To(Equal(http.StatusCreated))

			resp := decode[map[string]any](w)
			data := resp["data"].(map[string]any)
			Expect(data["id"]).To(BeNumerically(">", 0))
			Expect(data["feedback_type"]).To(Equal("performance"))
			Expect(data["user_type"]).To(Equal("farmer"))
			Expect(data["meta"]).To(Equal(map[string]any{"order_id": "ord-9"}))
		})

		It("applies defaults for a minimal body", func() {
			f := create(map[string]any{"rating": 5})
			Expect(f.FeedbackType).To(Equal(model.FeedbackTypeUserExperience))
			Expect(f.Priority).To(Equal(model.DefaultPriority))
			Expect(f.Status).To(Equal(model.DefaultStatus))
			Expect(f.UserType).To(Equal(model.UserTypeAnonymous))
			Expect(f.Meta).To(BeNil())
		})

		It("accepts legacy alias fields", func() {
			f := create(map[string]any{
				"rating":       3,
				"message":      "ok",
				"feedbackType": "product-service",
			})
			Expect(f.Comment).To(Equal("ok"))
			Expect(f.FeedbackType).To(Equal(model.FeedbackTypeProductService))

			f = create(map[string]any{"rating": 3, "category": "transactional"})
			Expect(f.FeedbackType).To(Equal(model.FeedbackTypeTransactional))
		})

		It("prefers canonical fields over aliases", func() {
			f := create(map[string]any{
				"rating":        2,
				"comment":       "canonical",
				"message":       "legacy",
				"feedback_type": "performance",
				"type":          "transactional",
			})
			Expect(f.Comment).To(Equal("canonical"))
			Expect(f.FeedbackType).To(Equal(model.FeedbackTypePerformance))
		})

		It("answers 422 with field messages when rating is missing", func() {
			w := do(router, http.MethodPost, "/feedback", map[string]any{"comment": "no stars"})
			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))

			resp := decode[model.ErrorResponse](w)
			Expect(resp.Error).To(Equal("VALIDATION_ERROR"))
			Expect(resp.Fields).To(HaveKeyWithValue("rating", []string{"rating is required"}))
			Expect(resp.Message).To(Equal("rating is required"))
		})

		It("reports every invalid field", func() {
			w := do(router, http.MethodPost, "/feedback", map[string]any{
				"rating":        9,
				"feedback_type": "billing",
				"priority":      "critical",
				"comment":       strings.Repeat("x", 1001),
			})
			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))

			resp := decode[model.ErrorResponse](w)
			Expect(resp.Fields).To(HaveKey("rating"))
			Expect(resp.Fields).To(HaveKey("feedback_type"))
			Expect(resp.Fields).To(HaveKey("priority"))
			Expect(resp.Fields["comment"]).To(ConsistOf("comment must be at most 1000 characters"))
			Expect(resp.Message).To(Equal("comment must be at most 1000 characters"))
		})

		It("rejects an unknown legacy type", func() {
			w := do(router, http.MethodPost, "/feedback", map[string]any{"rating": 3, "type": "billing"})
			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
			Expect(decode[model.ErrorResponse](w).Fields).To(HaveKey("feedback_type"))
		})

		It("answers 422 for a wrongly typed field", func() {
			w := do(router, http.MethodPost, "/feedback", `{"rating":"five"}`)
			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
			Expect(decode[model.ErrorResponse](w).Fields).To(HaveKey("rating"))
		})

		It("answers 400 for malformed JSON", func() {
			w := do(router, http.MethodPost, "/feedback", `{"rating":`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode[model.ErrorResponse](w).Error).To(Equal("INVALID_JSON"))
		})
	})

	Describe("PUT /feedback/:id", func() {
		It("replaces the record", func() {
			orig := create(map[string]any{"rating": 2, "comment": "late", "feedback_type": "transactional"})

			w := do(router, http.MethodPut, "/feedback/"+itoa(orig.ID), map[string]any{
				"rating": 4, "comment": "sorted out", "feedback_type": "transactional",
			})
			Expect(w.Code).To(Equal(http.StatusOK))
			upd := decode[model.FeedbackResponse](w).Data
			Expect(upd.ID).To(Equal(orig.ID))
			Expect(upd.Rating).To(Equal(4))
			Expect(upd.Comment).To(Equal("sorted out"))
			Expect(upd.CreatedAt.Equal(orig.CreatedAt)).To(BeTrue())
		})

		It("answers 404 for an unknown id", func() {
			w := do(router, http.MethodPut, "/feedback/999", map[string]any{"rating": 4})
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("answers 400 for a non-numeric id", func() {
			w := do(router, http.MethodPut, "/feedback/abc", map[string]any{"rating": 4})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("validates the body", func() {
			orig := create(map[string]any{"rating": 2})
			w := do(router, http.MethodPut, "/feedback/"+itoa(orig.ID), map[string]any{"rating": 0})
			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		})
	})

	Describe("GET /feedback", func() {
		BeforeEach(func() {
			create(map[string]any{"rating": 1, "feedback_type": "performance", "user_type": "driver", "user_id": "d-1"})
			create(map[string]any{"rating": 2, "feedback_type": "performance", "user_type": "farmer"})
			create(map[string]any{"rating": 3, "feedback_type": "transactional", "user_type": "driver", "user_id": "d-1"})
		})

		It("lists newest first", func() {
			w := do(router, http.MethodGet, "/feedback", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode[model.FeedbackListResponse](w)
			Expect(resp.Data).To(HaveLen(3))
			Expect(resp.Data[0].Rating).To(Equal(3))
			Expect(resp.Limit).To(Equal(repository.DefaultListLimit))
		})

		It("filters by type spelling and role", func() {
			w := do(router, http.MethodGet, "/feedback?feedback_type=performance&user_type=driver", nil)
			resp := decode[model.FeedbackListResponse](w)
			Expect(resp.Data).To(HaveLen(1))
			Expect(resp.Data[0].Rating).To(Equal(1))

			w = do(router, http.MethodGet, "/feedback?user_id=d-1&limit=1&offset=1", nil)
			resp = decode[model.FeedbackListResponse](w)
			Expect(resp.Data).To(HaveLen(1))
			Expect(resp.Data[0].Rating).To(Equal(1))
			Expect(resp.Offset).To(Equal(1))
		})

		It("rejects bad query values", func() {
			Expect(do(router, http.MethodGet, "/feedback?limit=many", nil).Code).To(Equal(http.StatusBadRequest))
			Expect(do(router, http.MethodGet, "/feedback?feedback_type=billing", nil).Code).To(Equal(http.StatusBadRequest))
		})

		It("returns one record by id", func() {
			f := create(map[string]any{"rating": 5, "comment": "fresh eggs"})
			w := do(router, http.MethodGet, "/feedback/"+itoa(f.ID), nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode[model.FeedbackResponse](w).Data.Comment).To(Equal("fresh eggs"))

			Expect(do(router, http.MethodGet, "/feedback/4242", nil).Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("infrastructure", func() {
		It("reports health", func() {
			w := do(router, http.MethodGet, "/health", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode[map[string]string](w)).To(HaveKeyWithValue("status", "ok"))
		})

		It("reports an unreachable store", func() {
			down := handler.NewRouter(handler.NewFeedbackHandler(downStore{Store: repo}, nil), nil)
			Expect(do(down, http.MethodGet, "/health", nil).Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("echoes or assigns a request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set(apiclient.RequestIDHeader, "req-1")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			Expect(w.Header().Get(apiclient.RequestIDHeader)).To(Equal("req-1"))

			w = do(router, http.MethodGet, "/health", nil)
			Expect(w.Header().Get(apiclient.RequestIDHeader)).NotTo(BeEmpty())
		})

		It("recovers panics into a JSON error with an id", func() {
			router.GET("/boom", func(*gin.Context) { panic("kaboom") })
			w := do(router, http.MethodGet, "/boom", nil)
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			resp := decode[model.ErrorResponse](w)
			Expect(resp.Error).To(Equal("INTERNAL_ERROR"))
			Expect(resp.ErrorID).To(HavePrefix("ERR-"))
		})

		It("answers unknown routes in the error shape", func() {
			w := do(router, http.MethodGet, "/api/v1/feedback", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decode[model.ErrorResponse](w).Error).To(Equal("NOT_FOUND"))
		})
	})

	Describe("with the dialog client", func() {
		var (
			srv     *httptest.Server
			machine *feedback.Machine
		)

		BeforeEach(func() {
			srv = httptest.NewServer(router)
			DeferCleanup(srv.Close)

			client, err := apiclient.New(apiclient.Config{BaseURL: srv.URL, Prefix: "/api/v1"})
			Expect(err).NotTo(HaveOccurred())

			cfg := feedback.DefaultConfig()
			cfg.ResetDelay = 0
			cfg.Identity = feedback.StaticIdentity(feedback.Identity{UserID: "c-3", Role: "consumer"})
			machine = feedback.New(client, cfg)
		})

		It("submits, edits and updates the same record", func() {
			machine.Open(feedback.Options{Meta: map[string]any{"type": "performance", "order_id": "ord-1"}})
			Expect(machine.SetRating(2)).To(Succeed())
			Expect(machine.SetComment("slow pages")).To(Succeed())
			Expect(machine.Submit(context.Background())).To(Succeed())

			snap := machine.Snapshot()
			Expect(snap.State).To(Equal(feedback.StateSuccess))
			id := snap.LastSubmittedID
			Expect(id).NotTo(BeEmpty())

			Expect(machine.StartEdit()).To(Succeed())
			Expect(machine.SetRating(4)).To(Succeed())
			Expect(machine.Submit(context.Background())).To(Succeed())
			Expect(machine.Snapshot().LastSubmittedID).To(Equal(id))

			stored, err := repo.List(context.Background(), repository.ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(1))
			Expect(stored[0].Rating).To(Equal(4))
			Expect(stored[0].FeedbackType).To(Equal(model.FeedbackTypePerformance))
			Expect(stored[0].UserType).To(Equal(model.UserTypeConsumer))
			Expect(stored[0].UserID).To(Equal("c-3"))
			Expect(stored[0].Meta).To(HaveKeyWithValue("order_id", "ord-1"))
		})

		It("shows the backend's field message and stays editable", func() {
			machine.Open(feedback.Options{Meta: map[string]any{"priority": "critical"}})
			Expect(machine.SetRating(3)).To(Succeed())

			err := machine.Submit(context.Background())
			Expect(err).To(HaveOccurred())
			Expect(apiclient.StatusOf(err)).To(Equal(http.StatusUnprocessableEntity))

			snap := machine.Snapshot()
			Expect(snap.State).To(Equal(feedback.StateEditing))
			Expect(snap.Error).To(Equal("priority must be one of: low medium high urgent"))
		})
	})
})

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
