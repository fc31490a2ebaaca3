package onesignal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordtolk/booking-api/internal/core"
	"github.com/nordtolk/booking-api/internal/domain/model"
	apperrors "github.com/nordtolk/booking-api/internal/errors"
)

func testNotification() core.PushNotification {
	return core.PushNotification{
		Recipients: []model.NotificationTarget{
			{UserID: "tr-1", PushTag: "Tolk1@X.se"},
			{UserID: "tr-2", PushTag: "tolk2@x.se"},
		},
		Title:   "NordTolk",
		Message: "Ny bokning för ryska tolk 30min 2026-03-12 10:30:00",
		Data:    map[string]string{"notification_type": "suitable_job", "job_id": "job-1"},
	}
}

func TestSendBatchPayload(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Basic rest-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Options{AppID: "app-1", RESTKey: "rest-key", Endpoint: srv.URL})
	require.NoError(t, client.SendBatch(context.Background(), testNotification()))

	assert.Equal(t, "app-1", got.AppID)
	require.Len(t, got.Filters, 3)
	assert.Equal(t, tagFilter{Key: "email", Relation: "=", Value: "tolk1@x.se"}, got.Filters[0])
	assert.Equal(t, tagFilter{Operator: "OR"}, got.Filters[1])
	assert.Equal(t, tagFilter{Key: "email", Relation: "=", Value: "tolk2@x.se"}, got.Filters[2])
	assert.Equal(t, "normal_booking", got.AndroidSound)
	assert.Equal(t, "Increase", got.IOSBadgeType)
	assert.Equal(t, "job-1", got.Data["job_id"])
	assert.Empty(t, got.SendAfter)
}

func TestSendBatchEmergencyAndDelay(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := testNotification()
	n.Emergency = true
	sendAfter := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	n.SendAfter = &sendAfter

	client := NewClient(Options{AppID: "app-1", RESTKey: "rest-key", Endpoint: srv.URL})
	require.NoError(t, client.SendBatch(context.Background(), n))

	assert.Equal(t, "emergency_booking", got.AndroidSound)
	assert.Equal(t, "emergency_booking.mp3", got.IOSSound)
	assert.Equal(t, "2026-03-11T09:00:00Z", got.SendAfter)
}

func TestSendBatchDefaultSoundForStatusPushes(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Options{AppID: "app-1", RESTKey: "rest-key", Endpoint: srv.URL})

	// Only new-booking pushes use the booking sounds; acceptance,
	// cancellation, expiry and reminder pushes keep the device default.
	for _, typ := range []string{"job_accepted", "job_cancelled", "job_expired", "session_start_remind"} {
		t.Run(typ, func(t *testing.T) {
			n := testNotification()
			n.Data = map[string]string{"notification_type": typ, "job_id": "job-1"}
			require.NoError(t, client.SendBatch(context.Background(), n))

			assert.Equal(t, "default", got.AndroidSound)
			assert.Equal(t, "default", got.IOSSound)
		})
	}
}

func TestSendBatchNoRecipients(t *testing.T) {
	client := NewClient(Options{AppID: "app-1", RESTKey: "rest-key", Endpoint: "http://unreachable.invalid"})
	assert.NoError(t, client.SendBatch(context.Background(), core.PushNotification{}))
}

func TestSendBatchRetriesThenFails(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, `{"errors":["bad app id"]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(Options{AppID: "app-1", RESTKey: "rest-key", Endpoint: srv.URL})
	err := client.SendBatch(context.Background(), testNotification())
	require.Error(t, err)
	assert.True(t, apperrors.IsDelivery(err))
	assert.Equal(t, maxAttempts, calls)
}

func TestSendBatchRecoversOnRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Options{AppID: "app-1", RESTKey: "rest-key", Endpoint: srv.URL})
	require.NoError(t, client.SendBatch(context.Background(), testNotification()))
	assert.Equal(t, 2, calls)
}
