package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"parking-availability-backend/config"
	"parking-availability-backend/internal/auth"
	"parking-availability-backend/internal/fee"
	"parking-availability-backend/internal/model"
	"parking-availability-backend/internal/store"
)

type testEnv struct {
	db     *gorm.DB
	store  store.Store
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:api_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Area{},
		&model.Level{},
		&model.Slot{},
		&model.Sensor{},
		&model.Observation{},
		&model.Session{},
		&model.User{},
		&model.PushSubscription{},
	))

	s := store.NewGormStore(db, fee.DefaultRatePerHalfHour)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	handler := NewHandler(s, tokens, fee.DefaultRatePerHalfHour, nil, nil)
	router := NewRouter(handler, tokens, &config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 1,
	})

	return &testEnv{db: db, store: s, router: router}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, phone string) string {
	t.Helper()

	w := e.request(t, http.MethodPost, "/api/login", "", gin.H{"phone": phone})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func seedArea(t *testing.T, db *gorm.DB, name string, capacity, slots int) (model.Area, []model.Slot) {
	t.Helper()

	area := model.Area{Name: name, AreaType: model.AreaTypeLot, TotalCapacity: capacity}
	require.NoError(t, db.Create(&area).Error)
	var created []model.Slot
	for i := 0; i < slots; i++ {
		slot := model.Slot{Code: fmt.Sprintf("%s-%d", name, i+1), AreaID: area.ID}
		require.NoError(t, db.Create(&slot).Error)
		created = append(created, slot)
	}
	return area, created
}

func TestLoginCreatesUser(t *testing.T) {
	env := newTestEnv(t)

	token := env.login(t, "15550001111")
	assert.NotEmpty(t, token)

	var count int64
	require.NoError(t, env.db.Model(&model.User{}).Where("phone = ?", "15550001111").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Logging in again reuses the record.
	env.login(t, "15550001111")
	require.NoError(t, env.db.Model(&model.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLoginRejectsBadPhone(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodPost, "/api/login", "", gin.H{"phone": "not-a-phone"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAreasReportsCounts(t *testing.T) {
	env := newTestEnv(t)
	_, slots := seedArea(t, env.db, "Central", 2, 2)

	w := env.request(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/observations", slots[0].ID), "", gin.H{"occupied": true})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.request(t, http.MethodGet, "/api/areas", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var areas []AreaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &areas))
	require.Len(t, areas, 1)
	assert.Equal(t, 1, areas[0].OccupiedCount)
	assert.Equal(t, 1, areas[0].AvailableCount)
	assert.Equal(t, int64(2), areas[0].TotalSlots)
}

func TestOccupyLeavePayFlow(t *testing.T) {
	env := newTestEnv(t)
	_, slots := seedArea(t, env.db, "Garage", 1, 1)
	slotID := slots[0].ID

	token := env.login(t, "15550001111")

	w := env.request(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/occupy", slotID), token, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// The slot is now unavailable.
	w = env.request(t, http.MethodGet, fmt.Sprintf("/api/slots/%d", slotID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		IsAvailable bool `json:"is_available"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.False(t, detail.IsAvailable)

	// A second user cannot occupy it.
	otherToken := env.login(t, "15550002222")
	w = env.request(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/occupy", slotID), otherToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Leave and read the closed session back.
	w = env.request(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/leave", slotID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var leaveResp struct {
		Result  string        `json:"result"`
		Session model.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &leaveResp))
	assert.Equal(t, string(store.LeaveOK), leaveResp.Result)
	require.NotNil(t, leaveResp.Session.EndTime)

	// Pay; the charged amount is amount_due regardless of the request.
	w = env.request(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/pay", leaveResp.Session.ID), token, gin.H{"amount": 99.99})
	require.Equal(t, http.StatusOK, w.Code)
	var payResp struct {
		ChargedAmount   float64       `json:"charged_amount"`
		RequestedAmount float64       `json:"requested_amount"`
		Session         model.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payResp))
	assert.True(t, payResp.Session.Paid)
	assert.Equal(t, 99.99, payResp.RequestedAmount)
	assert.Equal(t, payResp.Session.AmountDue, payResp.ChargedAmount)
}

func TestPaySomeoneElsesSession(t *testing.T) {
	env := newTestEnv(t)
	_, slots := seedArea(t, env.db, "Garage", 1, 1)

	owner := env.login(t, "15550001111")
	w := env.request(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/occupy", slots[0].ID), owner, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = env.request(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/leave", slots[0].ID), owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var leaveResp struct {
		Session model.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &leaveResp))

	stranger := env.login(t, "15550002222")
	w = env.request(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/pay", leaveResp.Session.ID), stranger, gin.H{"amount": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSessionRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	_, slots := seedArea(t, env.db, "Lot", 1, 1)

	w := env.request(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/occupy", slots[0].ID), "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.request(t, http.MethodGet, "/api/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLeaveWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	_, slots := seedArea(t, env.db, "Lot", 1, 1)
	slotID := slots[0].ID

	// Sensor reports the slot occupied, with no session behind it.
	w := env.request(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/observations", slotID), "", gin.H{"occupied": true, "sensor_code": "SIM-Lot-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	token := env.login(t, "15550001111")
	w = env.request(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/leave", slotID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var leaveResp struct {
		Result string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &leaveResp))
	assert.Equal(t, string(store.LeaveNoActiveSession), leaveResp.Result)

	// The slot is free again regardless.
	w = env.request(t, http.MethodGet, fmt.Sprintf("/api/slots/%d", slotID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		IsAvailable bool `json:"is_available"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.True(t, detail.IsAvailable)
}

func TestGetAvailableSlotsGeoFilter(t *testing.T) {
	env := newTestEnv(t)

	area := model.Area{Name: "Downtown", AreaType: model.AreaTypeStreet, TotalCapacity: 2}
	require.NoError(t, env.db.Create(&area).Error)

	near := model.Slot{Code: "D-1", AreaID: area.ID, Latitude: ptr(52.5200), Longitude: ptr(13.4050)}
	far := model.Slot{Code: "D-2", AreaID: area.ID, Latitude: ptr(52.6200), Longitude: ptr(13.6050)}
	noCoords := model.Slot{Code: "D-3", AreaID: area.ID}
	require.NoError(t, env.db.Create(&near).Error)
	require.NoError(t, env.db.Create(&far).Error)
	require.NoError(t, env.db.Create(&noCoords).Error)

	w := env.request(t, http.MethodGet, "/api/slots/available?lat=52.5201&lng=13.4051&radius_km=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Slots []availableSlotResponse `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Slots, 1)
	assert.Equal(t, "D-1", resp.Slots[0].Code)
	require.NotNil(t, resp.Slots[0].DistanceKm)
	assert.Less(t, *resp.Slots[0].DistanceKm, 2.0)
}

func TestPostObservationUnknownSlot(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodPost, "/api/slots/9999/observations", "", gin.H{"occupied": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecentObservationsFeed(t *testing.T) {
	env := newTestEnv(t)
	_, slots := seedArea(t, env.db, "Feed", 3, 3)

	for i, slot := range slots {
		w := env.request(t, http.MethodPost, fmt.Sprintf("/api/slots/%d/observations", slot.ID), "",
			gin.H{"occupied": i%2 == 0, "timestamp": time.Date(2025, 6, 1, 10, i, 0, 0, time.UTC)})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.request(t, http.MethodGet, "/api/observations/recent?limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Observations []model.Observation `json:"observations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Observations, 2)
	assert.True(t, resp.Observations[0].Timestamp.After(resp.Observations[1].Timestamp))
}

func ptr(f float64) *float64 { return &f }
