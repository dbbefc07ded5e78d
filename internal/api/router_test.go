package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"parkingspace/internal/domain"
	"parkingspace/internal/events"
	"parkingspace/internal/realtime"
	"parkingspace/internal/repository/inmemory"
	"parkingspace/internal/service"
)

type apiEnv struct {
	t        *testing.T
	router   *gin.Engine
	auth     *service.AuthService
	receipts *service.ReceiptService
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := inmemory.NewStore()
	store.SeedPricing(10, 20)

	hub := realtime.NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	receipts := service.NewReceiptService("receipt-key", time.UTC)
	authService := service.NewAuthService(store.Users(), "test-secret", time.Hour, logger)
	notificationService := service.NewNotificationService(store.Notifications(), store.Users(), hub, logger)
	svc := Services{
		Auth: authService,
		Parking: service.NewParkingService(store.Slots(), store.Vehicles(), store.Bookings(), store.Pricing(),
			store.Payments(), store.BookingEvents(), notificationService, events.NopPublisher{}, logger),
		Pricing:      service.NewPricingService(store.Pricing(), logger),
		Comments:     service.NewCommentService(store.Comments(), store.Bookings(), logger),
		Reports:      service.NewReportService(store.Bookings(), store.Slots(), store.Payments(), time.UTC, logger),
		Payments:     service.NewPaymentService(store.Payments(), store.Bookings(), store.Pricing(), nil, logger),
		Notification: notificationService,
		LPR:          service.NewLPRService(nil, logger),
		Receipts:     receipts,
	}
	return &apiEnv{
		t:        t,
		router:   SetupRouter(svc, hub, RouterOptions{AllowedOrigins: []string{"*"}}, logger),
		auth:     authService,
		receipts: receipts,
	}
}

func (e *apiEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) login(username, password string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var resp domain.AuthResponseDTO
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func (e *apiEnv) registerAndLogin(username string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/auth/register", "", gin.H{"username": username, "name": username, "password": "secret123"})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	var resp domain.AuthResponseDTO
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(e.t, resp.Token)
	require.Equal(e.t, domain.RoleUser, resp.Role)
	return resp.Token
}

func (e *apiEnv) staffToken() string {
	e.t.Helper()
	require.NoError(e.t, e.auth.EnsureUser(context.Background(), "attendant", "staffpass", domain.RoleStaff))
	return e.login("attendant", "staffpass")
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAuthRequired(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(http.MethodGet, "/api/v1/slots", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/v1/slots", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRegisterDuplicateAndBadLogin(t *testing.T) {
	env := newAPIEnv(t)
	env.registerAndLogin("alice")
	env.login("alice", "secret123")

	w := env.do(http.MethodPost, "/auth/register", "", gin.H{"username": "alice", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotContains(t, w.Body.String(), "token")

	w = env.do(http.MethodPost, "/auth/login", "", gin.H{"username": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/auth/register", "", gin.H{"username": "al"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSlotAdministrationIsStaffOnly(t *testing.T) {
	env := newAPIEnv(t)
	user := env.registerAndLogin("alice")
	staff := env.staffToken()

	w := env.do(http.MethodPost, "/api/v1/slots", user, gin.H{"slot_name": "A1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/api/v1/slots", staff, gin.H{"slot_name": "A1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	slot := decode[domain.ParkingSlot](t, w)
	assert.True(t, slot.IsAvailable)

	w = env.do(http.MethodPost, "/api/v1/slots", staff, gin.H{"slot_name": "A1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodGet, "/api/v1/slots", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	slots := decode[[]map[string]interface{}](t, w)
	require.Len(t, slots, 1)
	assert.Equal(t, "A1", slots[0]["slot_name"])
	assert.NotContains(t, slots[0], "v_type", "vehicle types are staff-only")

	w = env.do(http.MethodGet, "/api/v1/slots", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	staffSlots := decode[[]map[string]interface{}](t, w)
	require.Contains(t, staffSlots[0], "v_type")
	assert.Nil(t, staffSlots[0]["v_type"], "free slot")
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	alice := env.registerAndLogin("alice")
	bob := env.registerAndLogin("bob")
	staff := env.staffToken()

	w := env.do(http.MethodPost, "/api/v1/slots", staff, gin.H{"slot_name": "A1"})
	require.Equal(t, http.StatusCreated, w.Code)
	slot := decode[domain.ParkingSlot](t, w)

	book := gin.H{"parking_space": slot.ID, "vehicle_type": "two", "vehicle_number": "KA01AB1234"}
	w = env.do(http.MethodPost, "/api/v1/bookings", alice, book)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode[map[string]interface{}](t, w)
	bookingID := int(booking["id"].(float64))
	assert.Equal(t, "active", booking["state"])
	assert.Equal(t, true, booking["parking_status"])
	assert.InDelta(t, 10.0, booking["price"], 1e-9)

	w = env.do(http.MethodPost, "/api/v1/bookings", bob, gin.H{"parking_space": slot.ID, "vehicle_type": "four", "vehicle_number": "KA02CD5678"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "occupied slot")

	w = env.do(http.MethodPost, "/api/v1/bookings", bob, gin.H{"parking_space": slot.ID, "vehicle_type": "three", "vehicle_number": "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "vehicle type outside two/four")

	w = env.do(http.MethodGet, "/api/v1/bookings/checkout-queue", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/api/v1/bookings/current", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, w), 1)

	w = env.do(http.MethodPost, "/api/v1/bookings/checkout", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "bob has nothing to check out")

	w = env.do(http.MethodPost, "/api/v1/bookings/checkout", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "checkout_requested", decode[map[string]interface{}](t, w)["state"])

	w = env.do(http.MethodGet, "/api/v1/bookings/checkout-queue", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	queue := decode[[]map[string]interface{}](t, w)
	require.Len(t, queue, 1)
	assert.Nil(t, queue[0]["payment"])

	w = env.do(http.MethodPost, "/api/v1/payments", alice, gin.H{"booking_id": bookingID, "payment_method": "upi"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = env.do(http.MethodPost, "/api/v1/payments", alice, gin.H{"booking_id": bookingID, "payment_method": "upi"})
	assert.Equal(t, http.StatusConflict, w.Code)

	accept := "/api/v1/bookings/" + itoa(bookingID) + "/accept-checkout"
	w = env.do(http.MethodPost, accept, alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, accept, staff, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	closed := decode[map[string]interface{}](t, w)
	assert.Equal(t, "closed", closed["state"])
	assert.Equal(t, "upi", closed["payment"])

	w = env.do(http.MethodPost, accept, staff, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "second accept")

	w = env.do(http.MethodPost, "/api/v1/bookings/999/accept-checkout", staff, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/v1/bookings/history", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, w), 1)

	w = env.do(http.MethodGet, "/api/v1/bookings/"+itoa(bookingID), bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/api/v1/bookings/"+itoa(bookingID)+"/receipt", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = env.do(http.MethodGet, "/api/v1/slots", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[[]map[string]interface{}](t, w)[0]["status"], "slot is free again")

	w = env.do(http.MethodGet, "/api/v1/notifications", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes := decode[[]domain.Notification](t, w)
	assert.Len(t, notes, 2)
}

func TestPricingAndDashboard(t *testing.T) {
	env := newAPIEnv(t)
	user := env.registerAndLogin("alice")
	staff := env.staffToken()

	w := env.do(http.MethodPost, "/api/v1/pricing", user, gin.H{"two": 5, "four": 15})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/api/v1/pricing", staff, gin.H{"two": 5, "four": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/pricing", staff, gin.H{"two": 10000, "four": 15})
	assert.Equal(t, http.StatusBadRequest, w.Code, "rate beyond the stored precision")

	w = env.do(http.MethodPost, "/api/v1/pricing", staff, gin.H{"two": 5, "four": 15})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/pricing", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	table := decode[domain.PricingTable](t, w)
	assert.InDelta(t, 5.0, table.TwoWheelerRate, 1e-9)
	assert.InDelta(t, 15.0, table.FourWheelerRate, 1e-9)

	w = env.do(http.MethodGet, "/api/v1/dashboard/availability", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/api/v1/dashboard/revenue", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	revenue := decode[domain.RevenueSummary](t, w)
	assert.Zero(t, revenue.Daily)
	assert.Zero(t, revenue.Monthly)
}

func TestCommentThreadOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	alice := env.registerAndLogin("alice")
	staff := env.staffToken()

	w := env.do(http.MethodPost, "/api/v1/slots", staff, gin.H{"slot_name": "B1"})
	require.Equal(t, http.StatusCreated, w.Code)
	slot := decode[domain.ParkingSlot](t, w)
	w = env.do(http.MethodPost, "/api/v1/bookings", alice, gin.H{"parking_space": slot.ID, "vehicle_type": "four", "vehicle_number": "DL3C1234"})
	require.Equal(t, http.StatusCreated, w.Code)
	bookingID := int(decode[map[string]interface{}](t, w)["id"].(float64))

	w = env.do(http.MethodPost, "/api/v1/comments", alice, gin.H{"id": bookingID, "comment": "Is the gate open?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	comment := decode[domain.Comment](t, w)

	w = env.do(http.MethodPost, "/api/v1/comments/"+itoa(comment.ID)+"/replies", staff, gin.H{"comment": "Yes"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/comments", staff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "staff must name a booking")

	w = env.do(http.MethodGet, "/api/v1/comments?booking_id=abc", staff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/comments?booking_id="+itoa(bookingID), staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	thread := decode[[]domain.Comment](t, w)
	require.Len(t, thread, 1)
	require.Len(t, thread[0].Replies, 1)
	assert.Equal(t, "Yes", thread[0].Replies[0].Text)

	w = env.do(http.MethodGet, "/api/v1/comments", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Comment](t, w), 1)
}

func TestPlateRecognitionUnavailable(t *testing.T) {
	env := newAPIEnv(t)
	user := env.registerAndLogin("alice")

	w := env.do(http.MethodPost, "/api/v1/lpr/recognize", user, gin.H{"image_base64": "not base64!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/lpr/recognize", user, gin.H{"image_base64": "aGVsbG8="})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReceiptVerification(t *testing.T) {
	env := newAPIEnv(t)
	user := env.registerAndLogin("alice")
	staff := env.staffToken()

	payload := env.receipts.QRPayload(&domain.Booking{
		ID:           17,
		Slot:         domain.ParkingSlot{Name: "C4"},
		Vehicle:      domain.Vehicle{Number: "MH12AB1234"},
		CheckoutTime: null.TimeFrom(time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)),
	})

	w := env.do(http.MethodPost, "/api/v1/receipts/verify", user, gin.H{"payload": payload})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/api/v1/receipts/verify", staff, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/receipts/verify", staff, gin.H{"payload": payload})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.ReceiptVerification{Valid: true, BookingID: 17}, decode[domain.ReceiptVerification](t, w))

	forged := service.NewReceiptService("other-key", time.UTC).QRPayload(&domain.Booking{ID: 17})
	w = env.do(http.MethodPost, "/api/v1/receipts/verify", staff, gin.H{"payload": forged})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[map[string]interface{}](t, w)
	assert.Equal(t, false, result["valid"])
	assert.NotContains(t, result, "booking_id")
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
