package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/app/models/dto"
	"github.com/yigit/slotbook/internal/pkg/apperrors"
	"github.com/yigit/slotbook/internal/pkg/auth"
	"github.com/yigit/slotbook/internal/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validation.RegisterGinValidators(); err != nil {
		panic(err)
	}
}

// --- Mock services ---

type mockBookingService struct {
	replaceFn func(ctx context.Context, studentID int64, slotIDs []int64) ([]*models.Booking, error)
	cancelFn  func(ctx context.Context, bookingID int64) error
	deleteFn  func(ctx context.Context, studentID int64) error
	listFn    func(ctx context.Context) ([]*models.Booking, error)
}

func (m *mockBookingService) ReplaceBookings(ctx context.Context, studentID int64, slotIDs []int64) ([]*models.Booking, error) {
	return m.replaceFn(ctx, studentID, slotIDs)
}
func (m *mockBookingService) CancelBooking(ctx context.Context, bookingID int64) error {
	return m.cancelFn(ctx, bookingID)
}
func (m *mockBookingService) DeleteStudent(ctx context.Context, studentID int64) error {
	return m.deleteFn(ctx, studentID)
}
func (m *mockBookingService) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	return m.listFn(ctx)
}

type mockStudentService struct {
	createFn    func(ctx context.Context, req dto.CreateStudentRequest) (*models.Student, error)
	listFn      func(ctx context.Context) ([]*models.Student, error)
	getFn       func(ctx context.Context, id int64) (*models.Student, error)
	getByLinkFn func(ctx context.Context, link string) (*models.Student, error)
	updateFn    func(ctx context.Context, id int64, req dto.UpdateStudentRequest) (*models.Student, error)
	deleteFn    func(ctx context.Context, id int64) error
}

func (m *mockStudentService) CreateStudent(ctx context.Context, req dto.CreateStudentRequest) (*models.Student, error) {
	return m.createFn(ctx, req)
}
func (m *mockStudentService) ListStudents(ctx context.Context) ([]*models.Student, error) {
	return m.listFn(ctx)
}
func (m *mockStudentService) GetStudent(ctx context.Context, id int64) (*models.Student, error) {
	return m.getFn(ctx, id)
}
func (m *mockStudentService) GetStudentByLink(ctx context.Context, link string) (*models.Student, error) {
	return m.getByLinkFn(ctx, link)
}
func (m *mockStudentService) UpdateStudent(ctx context.Context, id int64, req dto.UpdateStudentRequest) (*models.Student, error) {
	return m.updateFn(ctx, id, req)
}
func (m *mockStudentService) DeleteStudent(ctx context.Context, id int64) error {
	return m.deleteFn(ctx, id)
}

type mockSlotService struct {
	freeFn func(ctx context.Context) ([]*models.Slot, error)
	allFn  func(ctx context.Context) ([]*models.Slot, error)
}

func (m *mockSlotService) ListFreeSlots(ctx context.Context) ([]*models.Slot, error) {
	return m.freeFn(ctx)
}
func (m *mockSlotService) ListAllSlots(ctx context.Context) ([]*models.Slot, error) {
	return m.allFn(ctx)
}
func (m *mockSlotService) Snapshot(ctx context.Context) ([]*models.Slot, error) {
	return m.freeFn(ctx)
}

type mockAuthService struct {
	loginFn    func(ctx context.Context, username, password string) (string, time.Time, error)
	validateFn func(token string) (*auth.Claims, error)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	return m.loginFn(ctx, username, password)
}
func (m *mockAuthService) ValidateSession(token string) (*auth.Claims, error) {
	return m.validateFn(token)
}

// --- helpers ---

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object: %s", w.Body.String())
	return errObj["code"].(string)
}

// --- BookingController ---

func TestBookingController_ReplaceBookings(t *testing.T) {
	svc := &mockBookingService{}
	ctrl := NewBookingController(svc)
	r := gin.New()
	r.POST("/bookings", ctrl.ReplaceBookings)

	t.Run("success", func(t *testing.T) {
		svc.replaceFn = func(_ context.Context, studentID int64, slotIDs []int64) ([]*models.Booking, error) {
			assert.Equal(t, int64(3), studentID)
			assert.Equal(t, []int64{5, 6}, slotIDs)
			return []*models.Booking{
				{ID: 1, StudentID: 3, SlotID: 5, Slot: &models.Slot{ID: 5, Day: models.DayMonday, Hour: "10:00", IsBooked: true}},
				{ID: 2, StudentID: 3, SlotID: 6, Slot: &models.Slot{ID: 6, Day: models.DayMonday, Hour: "11:00", IsBooked: true}},
			}, nil
		}

		w := serve(r, http.MethodPost, "/bookings", `{"studentId":3,"slotIds":[5,6]}`)
		assert.Equal(t, http.StatusOK, w.Code)

		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		data := body["data"].([]interface{})
		require.Len(t, data, 2)
		slot := data[0].(map[string]interface{})["slot"].(map[string]interface{})
		assert.Equal(t, "Monday", slot["day"])
	})

	t.Run("empty selection is rejected before the service", func(t *testing.T) {
		svc.replaceFn = func(context.Context, int64, []int64) ([]*models.Booking, error) {
			t.Fatal("service must not be called")
			return nil, nil
		}
		w := serve(r, http.MethodPost, "/bookings", `{"studentId":3,"slotIds":[]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VAL_001", errorCode(t, w))
	})

	errorCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"quota", apperrors.NewQuotaExceededError(2), http.StatusBadRequest, "BOOK_001"},
		{"conflict", apperrors.ErrSlotTaken, http.StatusBadRequest, "RES_004"},
		{"student missing", apperrors.ErrStudentNotFound, http.StatusNotFound, "RES_001"},
		{"storage", apperrors.NewInternalError("failed to save bookings", nil), http.StatusInternalServerError, "SRV_001"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			svc.replaceFn = func(context.Context, int64, []int64) ([]*models.Booking, error) {
				return nil, tc.err
			}
			w := serve(r, http.MethodPost, "/bookings", `{"studentId":3,"slotIds":[5]}`)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, errorCode(t, w))
		})
	}
}

func TestBookingController_CancelAndList(t *testing.T) {
	svc := &mockBookingService{
		cancelFn: func(_ context.Context, id int64) error {
			if id == 9 {
				return apperrors.ErrBookingNotFound
			}
			return nil
		},
		listFn: func(context.Context) ([]*models.Booking, error) {
			return []*models.Booking{{ID: 4, StudentID: 1, SlotID: 2, Student: &models.Student{ID: 1, FirstName: "Ada", LastName: "Lovelace"}}}, nil
		},
	}
	ctrl := NewBookingController(svc)
	r := gin.New()
	r.GET("/bookings", ctrl.ListBookings)
	r.DELETE("/bookings/:id", ctrl.CancelBooking)

	w := serve(r, http.MethodDelete, "/bookings/4", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = serve(r, http.MethodDelete, "/bookings/9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "booking does not exist", decode(t, w)["error"].(map[string]interface{})["message"])

	w = serve(r, http.MethodDelete, "/bookings/x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodGet, "/bookings", "")
	assert.Equal(t, http.StatusOK, w.Code)
	booking := decode(t, w)["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Ada", booking["student"].(map[string]interface{})["firstName"])
}

// --- StudentController ---

func TestStudentController(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ada := &models.Student{
		ID: 1, FirstName: "Ada", LastName: "Lovelace", MaxSlots: 2, UniqueLink: "alovelace-1a2b", CreatedAt: created,
		Bookings: []*models.Booking{{ID: 7, StudentID: 1, SlotID: 3}},
	}
	svc := &mockStudentService{
		createFn: func(_ context.Context, req dto.CreateStudentRequest) (*models.Student, error) {
			assert.Equal(t, 2, req.MaxSlots)
			return ada, nil
		},
		listFn: func(context.Context) ([]*models.Student, error) { return []*models.Student{ada}, nil },
		getFn: func(_ context.Context, id int64) (*models.Student, error) {
			if id != 1 {
				return nil, apperrors.ErrStudentNotFound
			}
			return ada, nil
		},
		getByLinkFn: func(_ context.Context, link string) (*models.Student, error) {
			if link != ada.UniqueLink {
				return nil, apperrors.ErrStudentNotFound
			}
			return ada, nil
		},
		updateFn: func(_ context.Context, id int64, req dto.UpdateStudentRequest) (*models.Student, error) {
			require.NotNil(t, req.MaxSlots)
			if *req.MaxSlots < 1 {
				return nil, apperrors.NewValidationError("bad")
			}
			return nil, apperrors.NewConflictError("student currently holds 1 slots")
		},
		deleteFn: func(context.Context, int64) error { return nil },
	}
	ctrl := NewStudentController(svc)
	r := gin.New()
	r.POST("/students", ctrl.CreateStudent)
	r.GET("/students", ctrl.ListStudents)
	r.GET("/students/:id", ctrl.GetStudent)
	r.GET("/students/link/:link", ctrl.GetStudentByLink)
	r.PATCH("/students/:id", ctrl.UpdateStudent)
	r.DELETE("/students/:id", ctrl.DeleteStudent)

	t.Run("create", func(t *testing.T) {
		w := serve(r, http.MethodPost, "/students", `{"firstName":"Ada","lastName":"Lovelace","maxSlots":2}`)
		assert.Equal(t, http.StatusCreated, w.Code)
		data := decode(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "alovelace-1a2b", data["uniqueLink"])
		assert.Equal(t, float64(1), data["bookingsCount"])
	})

	t.Run("create without quota", func(t *testing.T) {
		w := serve(r, http.MethodPost, "/students", `{"firstName":"Ada","lastName":"Lovelace"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/students", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w)["data"], 1)
	})

	t.Run("get", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/students/1", "").Code)
		assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/students/2", "").Code)
	})

	t.Run("get by link", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/students/link/alovelace-1a2b", "").Code)
		assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/students/link/unknown", "").Code)
	})

	t.Run("update below held count", func(t *testing.T) {
		w := serve(r, http.MethodPatch, "/students/1", `{"maxSlots":1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "RES_004", errorCode(t, w))
	})

	t.Run("delete", func(t *testing.T) {
		w := serve(r, http.MethodDelete, "/students/1", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

// --- SlotController ---

func TestSlotController(t *testing.T) {
	svc := &mockSlotService{
		freeFn: func(context.Context) ([]*models.Slot, error) {
			return []*models.Slot{{ID: 1, Day: models.DayMonday, Hour: "08:00"}}, nil
		},
		allFn: func(context.Context) ([]*models.Slot, error) {
			return nil, apperrors.NewInternalError("failed to load slots", nil)
		},
	}
	ctrl := NewSlotController(svc)
	r := gin.New()
	r.GET("/slots", ctrl.ListFreeSlots)
	r.GET("/slots/all", ctrl.ListAllSlots)

	w := serve(r, http.MethodGet, "/slots", "")
	assert.Equal(t, http.StatusOK, w.Code)
	slot := decode(t, w)["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "08:00", slot["hour"])
	assert.Equal(t, false, slot["isBooked"])

	w = serve(r, http.MethodGet, "/slots/all", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SRV_001", errorCode(t, w))
}

// --- AuthController ---

func TestAuthController_LoginLogout(t *testing.T) {
	expires := time.Now().Add(7 * 24 * time.Hour)
	svc := &mockAuthService{
		loginFn: func(_ context.Context, username, password string) (string, time.Time, error) {
			if username == "admin" && password == "admin123" {
				return "signed-token", expires, nil
			}
			return "", time.Time{}, &apperrors.CustomError{Err: apperrors.ErrInvalidCredentials, Message: "invalid username or password"}
		},
	}
	ctrl := NewAuthController(svc, CookieConfig{Secure: true}, zerolog.Nop())
	r := gin.New()
	r.POST("/auth/login", ctrl.Login)
	r.POST("/auth/logout", ctrl.Logout)

	w := serve(r, http.MethodPost, "/auth/login", `{"username":"admin","password":"admin123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, auth.SessionCookieName, cookie.Name)
	assert.Equal(t, "signed-token", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.InDelta(t, 7*24*3600, cookie.MaxAge, 5)

	w = serve(r, http.MethodPost, "/auth/login", `{"username":"admin","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", errorCode(t, w))
	assert.Empty(t, w.Result().Cookies())

	w = serve(r, http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, w.Result().Cookies(), 1)
	assert.Equal(t, "", w.Result().Cookies()[0].Value)
	assert.Negative(t, w.Result().Cookies()[0].MaxAge)
}
