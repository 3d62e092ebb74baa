package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/supermartsg/checkout/internal/session"
)

func TestDecodeForm_JSON(t *testing.T) {
	body := `{"fullName":"Alice Tan","email":"alice@example.com","address":"1 Orchard Rd",
		"paymentMethod":"card","cardNumber":"4111111111111111","cardExpiry":"12/27",
		"cardCvv":"123","saveCard":true,"savedPaymentMethod":3}`
	r := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	form, err := decodeForm(r)

	require.NoError(t, err)
	require.Equal(t, "Alice Tan", form.FullName)
	require.Equal(t, "card", form.PaymentMethod)
	require.Equal(t, "123", form.CardCVV)
	require.True(t, form.SaveCard)
	require.Equal(t, int64(3), form.SavedPaymentMethod)
}

func TestDecodeForm_URLEncoded(t *testing.T) {
	values := url.Values{
		"fullName":           {"Alice Tan"},
		"email":              {"alice@example.com"},
		"address":            {"1 Orchard Rd"},
		"paymentMethod":      {"wallet"},
		"saveCard":           {"on"},
		"savedPaymentMethod": {"5"},
	}
	r := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := decodeForm(r)

	require.NoError(t, err)
	require.Equal(t, "Alice Tan", form.FullName)
	require.Equal(t, "wallet", form.PaymentMethod)
	require.True(t, form.SaveCard)
	require.Equal(t, int64(5), form.SavedPaymentMethod)
}

func TestDecodeForm_InvalidJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader("{not json"))
	r.Header.Set("Content-Type", "application/json")

	_, err := decodeForm(r)
	require.Error(t, err)
}

func TestWithSession_SetsCookieAndLoadsSession(t *testing.T) {
	store := session.NewMemoryStore()

	var got *session.Session
	handler := WithSession(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = sessionFrom(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout", nil))

	require.NotNil(t, got)
	require.NotEmpty(t, got.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, sessionCookie, cookies[0].Name)
	require.Equal(t, got.ID, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
}

func TestWithSession_ReusesExistingCookie(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(t.Context(), &session.Session{
		ID:   "known-id",
		User: &session.User{ID: 7},
	}))

	var got *session.Session
	handler := WithSession(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = sessionFrom(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/checkout", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookie, Value: "known-id"})
	handler.ServeHTTP(httptest.NewRecorder(), r)

	require.Equal(t, "known-id", got.ID)
	require.Equal(t, int64(7), got.UserID())
}

func TestWriteError_Shape(t *testing.T) {
	rec := httptest.NewRecorder()

	writeError(rec, http.StatusBadRequest, "invalid_request", "missing field")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"error":"invalid_request","message":"missing field"}`, rec.Body.String())
}
