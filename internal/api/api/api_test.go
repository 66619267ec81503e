package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventTickets/internal/dto"
	"eventTickets/internal/identity"
	"eventTickets/internal/inventory"
	"eventTickets/internal/issuer"
	"eventTickets/internal/redemption"
	"eventTickets/internal/repo"
	"eventTickets/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type published struct {
	key  string
	body dto.TicketNotification
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(_ context.Context, key string, body []byte) error {
	var n dto.TicketNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{key: key, body: n})
	return nil
}

func (f *fakePublisher) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.msgs))
	for _, m := range f.msgs {
		keys = append(keys, m.key)
	}
	return keys
}

type testEnv struct {
	t      *testing.T
	router *gin.Engine
	repo   repo.Repository
	pub    *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := zerolog.Nop()
	log := &l

	r := repo.NewMemoryRepository()
	inv := inventory.New(log)
	provider := identity.NewProvider(r, log, "0123456789abcdef-test", time.Hour)
	pub := &fakePublisher{}
	svc := service.NewService(r, log, pub, provider,
		issuer.New(r, inv, log, issuer.Options{MaxQuantity: 5}),
		redemption.NewScanner(r, inv, log),
	)

	router := gin.New()
	mountRoutes(router, &Routers{Service: svc, Verifier: provider, Log: log})
	return &testEnv{t: t, router: router, repo: r, pub: pub}
}

type envelope struct {
	Status string          `json:"status"`
	Error  *dto.Error      `json:"error"`
	Data   json.RawMessage `json:"data"`
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) (T, envelope) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	var data T
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return data, env
}

func (e *testEnv) signUp(email, role string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "password123", "name": "User " + role, "role": role,
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	auth, _ := decode[struct {
		Token string `json:"token"`
	}](e.t, w)
	return auth.Token
}

func (e *testEnv) createEvent(token string, capacity int) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/events", token, map[string]any{
		"title": "Go Meetup", "date": "2026-11-20", "time": "18:30",
		"location": "Hub", "price": 50, "capacity": capacity,
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	event, _ := decode[dto.EventResponse](e.t, w)
	return event.ID
}

func TestRegisterScanFlow(t *testing.T) {
	env := newTestEnv(t)
	organizer := env.signUp("org@example.com", "organizer")
	attendee := env.signUp("ann@example.com", "attendee")
	eventID := env.createEvent(organizer, 10)

	w := env.do(http.MethodPost, "/events/"+eventID+"/register", attendee, map[string]int{"quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"total_amount":100.00`)
	order, _ := decode[dto.OrderResponse](t, w)
	require.Len(t, order.Tickets, 2)
	assert.NotEqual(t, order.Tickets[0].Code, order.Tickets[1].Code)

	w = env.do(http.MethodGet, "/events/"+eventID, "", nil)
	event, _ := decode[dto.EventResponse](t, w)
	assert.Equal(t, 8, event.AvailableTickets)

	code := order.Tickets[0].Code
	w = env.do(http.MethodPost, "/tickets/scan", organizer, map[string]string{"code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var scan dto.ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scan))
	assert.True(t, scan.Success)
	require.NotNil(t, scan.Ticket)
	assert.Equal(t, "used", string(scan.Ticket.Status))
	assert.NotNil(t, scan.Ticket.CheckInDate)

	w = env.do(http.MethodPost, "/tickets/scan", organizer, map[string]string{"code": code})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scan))
	assert.False(t, scan.Success)
	assert.Equal(t, "Ticket already used", scan.Message)

	w = env.do(http.MethodPost, "/tickets/scan", organizer, map[string]string{"code": "no-such-code"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scan))
	assert.False(t, scan.Success)

	assert.Equal(t, []string{dto.KeyOrderCompleted, dto.KeyTicketRedeemed}, env.pub.keys())
}

func TestRegister_DefaultsToOneTicket(t *testing.T) {
	env := newTestEnv(t)
	organizer := env.signUp("org@example.com", "organizer")
	attendee := env.signUp("ann@example.com", "attendee")
	eventID := env.createEvent(organizer, 3)

	w := env.do(http.MethodPost, "/events/"+eventID+"/register", attendee, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order, _ := decode[dto.OrderResponse](t, w)
	assert.Equal(t, 1, order.Quantity)
	assert.Len(t, order.Tickets, 1)
}

func TestRegister_Errors(t *testing.T) {
	env := newTestEnv(t)
	organizer := env.signUp("org@example.com", "organizer")
	attendee := env.signUp("ann@example.com", "attendee")
	eventID := env.createEvent(organizer, 3)

	tests := []struct {
		name       string
		path       string
		token      string
		quantity   int
		wantStatus int
		wantCode   string
	}{
		{"no token", "/events/" + eventID + "/register", "", 1, http.StatusUnauthorized, dto.Unauthorized},
		{"unknown event", "/events/missing/register", attendee, 1, http.StatusNotFound, dto.EventNotFound},
		{"not enough tickets", "/events/" + eventID + "/register", attendee, 4, http.StatusBadRequest, dto.InsufficientTickets},
		{"zero quantity", "/events/" + eventID + "/register", attendee, 0, http.StatusBadRequest, dto.InvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, tt.path, tt.token, map[string]int{"quantity": tt.quantity})
			assert.Equal(t, tt.wantStatus, w.Code)
			_, body := decode[any](t, w)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}

	w := env.do(http.MethodGet, "/events/"+eventID, "", nil)
	event, _ := decode[dto.EventResponse](t, w)
	assert.Equal(t, 3, event.AvailableTickets)
}

func TestScan_RequiresOrganizer(t *testing.T) {
	env := newTestEnv(t)
	attendee := env.signUp("ann@example.com", "attendee")

	w := env.do(http.MethodPost, "/tickets/scan", attendee, map[string]string{"code": "abc"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/tickets/scan", "", map[string]string{"code": "abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTicketsOrdersAndCancel(t *testing.T) {
	env := newTestEnv(t)
	organizer := env.signUp("org@example.com", "organizer")
	attendee := env.signUp("ann@example.com", "attendee")
	stranger := env.signUp("bob@example.com", "attendee")
	eventID := env.createEvent(organizer, 5)

	w := env.do(http.MethodPost, "/events/"+eventID+"/register", attendee, map[string]int{"quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code)
	order, _ := decode[dto.OrderResponse](t, w)

	w = env.do(http.MethodGet, "/tickets", attendee, nil)
	tickets, _ := decode[[]dto.TicketResponse](t, w)
	assert.Len(t, tickets, 2)

	w = env.do(http.MethodGet, "/tickets", stranger, nil)
	tickets, _ = decode[[]dto.TicketResponse](t, w)
	assert.Empty(t, tickets)

	ticketID := order.Tickets[0].ID
	w = env.do(http.MethodPost, "/tickets/"+ticketID+"/cancel", stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/tickets/"+ticketID+"/cancel", attendee, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cancelled, _ := decode[dto.TicketResponse](t, w)
	assert.Equal(t, "cancelled", string(cancelled.Status))

	w = env.do(http.MethodPost, "/tickets/"+ticketID+"/cancel", attendee, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/events/"+eventID, "", nil)
	event, _ := decode[dto.EventResponse](t, w)
	assert.Equal(t, 4, event.AvailableTickets)

	w = env.do(http.MethodGet, "/orders", attendee, nil)
	orders, _ := decode[[]dto.OrderResponse](t, w)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	w = env.do(http.MethodGet, "/orders/"+order.ID, attendee, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, "/orders/"+order.ID, stranger, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Contains(t, env.pub.keys(), dto.KeyTicketCancelled)
}

func TestEventManagement(t *testing.T) {
	env := newTestEnv(t)
	organizer := env.signUp("org@example.com", "organizer")
	other := env.signUp("other@example.com", "organizer")
	attendee := env.signUp("ann@example.com", "attendee")

	w := env.do(http.MethodPost, "/events", attendee, map[string]any{
		"title": "Nope", "date": "2026-11-20", "location": "Hub", "price": 1, "capacity": 1,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/events", organizer, map[string]any{
		"title": "Bad date", "date": "20.11.2026", "location": "Hub", "price": 1, "capacity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "FIELD_BADFORMAT")
	assert.Contains(t, w.Body.String(), "Invalid format: date")

	eventID := env.createEvent(organizer, 4)
	w = env.do(http.MethodPost, "/events/"+eventID+"/register", attendee, map[string]int{"quantity": 3})
	require.Equal(t, http.StatusCreated, w.Code)

	update := map[string]any{
		"title": "Go Meetup XL", "date": "2026-11-21", "location": "Hall", "price": 60, "capacity": 10,
	}
	w = env.do(http.MethodPut, "/events/"+eventID, other, update)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPut, "/events/"+eventID, organizer, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	event, _ := decode[dto.EventResponse](t, w)
	assert.Equal(t, 10, event.Capacity)
	assert.Equal(t, 7, event.AvailableTickets)

	update["capacity"] = 2
	w = env.do(http.MethodPut, "/events/"+eventID, organizer, update)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/events/organizer", organizer, nil)
	mine, _ := decode[[]dto.EventResponse](t, w)
	require.Len(t, mine, 1)
	w = env.do(http.MethodGet, "/events/organizer", other, nil)
	theirs, _ := decode[[]dto.EventResponse](t, w)
	assert.Empty(t, theirs)

	w = env.do(http.MethodDelete, "/events/"+eventID, organizer, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, "/events/"+eventID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/tickets", attendee, nil)
	tickets, _ := decode[[]dto.TicketResponse](t, w)
	require.Len(t, tickets, 3)
	assert.Equal(t, "Go Meetup", tickets[0].Event.Title, "tickets keep the purchase-time snapshot")
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp("ann@example.com", "attendee")

	w := env.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ann@example.com", "password": "password123", "name": "Again",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "long@example.com", "password": strings.Repeat("é", 72), "name": "Long",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "FIELD_INCORRECT")

	w = env.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ann@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ann@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ann@example.com")
	assert.NotContains(t, w.Body.String(), "password")

	w = env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request_duration_seconds")
}
