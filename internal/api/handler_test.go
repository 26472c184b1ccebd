package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clinic-session-backend/config"
	"clinic-session-backend/internal/db"
	"clinic-session-backend/internal/model"
	"clinic-session-backend/internal/mw"
	"clinic-session-backend/internal/notify"
	"clinic-session-backend/internal/session"
	"clinic-session-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSecret   = "test-secret"
	testSystemID = "sys-1"
)

func authToken(t *testing.T, userID, systemID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mw.Claims{
		SystemID: systemID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB

	clinic    model.Clinic
	equipment model.Equipment
	service   model.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))

	s := store.NewGormStore(gdb)
	hub := notify.NewHub()
	t.Cleanup(hub.Stop)
	manager := session.NewManager(s, hub, nil, clockwork.NewRealClock())

	cfg := &config.Config{}
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Server.CacheTTLSeconds = 1
	cfg.Auth.JWTSecret = testSecret

	env := &testEnv{
		router: NewRouter(s, manager, hub, &webpush.Options{}, cfg),
		db:     gdb,
	}

	env.clinic = model.Clinic{SystemID: testSystemID, Name: "Central"}
	require.NoError(t, gdb.Create(&env.clinic).Error)
	env.equipment = model.Equipment{SystemID: testSystemID, Name: "Pressotherapy", IsActive: true}
	require.NoError(t, gdb.Create(&env.equipment).Error)

	env.service = model.Service{
		SystemID:                 testSystemID,
		Name:                     "Presso 45",
		DurationMinutes:          60,
		TreatmentDurationMinutes: 45,
	}
	require.NoError(t, gdb.Create(&env.service).Error)
	require.NoError(t, gdb.Create(&model.ServiceEquipmentRequirement{
		ServiceID:   env.service.ID,
		EquipmentID: env.equipment.ID,
	}).Error)

	return env
}

// seedAssignment creates an active assignment, optionally with a telemetry
// snapshot attached.
func (env *testEnv) seedAssignment(t *testing.T, serial string, plug *model.SmartPlugDevice) model.EquipmentClinicAssignment {
	t.Helper()
	assignment := model.EquipmentClinicAssignment{
		EquipmentID:  env.equipment.ID,
		ClinicID:     env.clinic.ID,
		SerialNumber: serial,
		IsActive:     true,
	}
	require.NoError(t, env.db.Create(&assignment).Error)

	if plug != nil {
		plug.SystemID = testSystemID
		plug.EquipmentClinicAssignmentID = &assignment.ID
		require.NoError(t, env.db.Create(plug).Error)
	}
	return assignment
}

func (env *testEnv) seedAppointment(t *testing.T) model.Appointment {
	t.Helper()
	appointment := model.Appointment{
		SystemID:  testSystemID,
		ClinicID:  env.clinic.ID,
		Status:    model.AppointmentScheduled,
		StartTime: time.Now(),
		EndTime:   time.Now().Add(time.Hour),
	}
	require.NoError(t, env.db.Create(&appointment).Error)
	require.NoError(t, env.db.Create(&model.AppointmentService{
		AppointmentID: appointment.ID,
		ServiceID:     env.service.ID,
		Status:        model.ServiceScheduled,
	}).Error)
	return appointment
}

func (env *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestStartAppointmentRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t)

	w := env.request(t, "POST", "/api/appointments/"+appointment.ID+"/start", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.request(t, "POST", "/api/appointments/"+appointment.ID+"/start", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStartAppointmentNotFound(t *testing.T) {
	env := newTestEnv(t)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "POST", "/api/appointments/no-such-id/start", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartAppointmentIsTenantScoped(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t)
	token := authToken(t, "user-1", "other-system")

	w := env.request(t, "POST", "/api/appointments/"+appointment.ID+"/start", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartAppointmentAutoSelects(t *testing.T) {
	env := newTestEnv(t)
	assignment := env.seedAssignment(t, "SN-0042", &model.SmartPlugDevice{
		DeviceID: "shelly-1", Name: "Plug 1", Online: true, RelayOn: false,
	})
	appointment := env.seedAppointment(t)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "POST", "/api/appointments/"+appointment.ID+"/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(45), data["estimatedMinutes"])
	assert.Equal(t, true, data["requiresEquipment"])
	equipment := data["equipment"].(map[string]any)
	assert.Equal(t, assignment.ID, equipment["assignmentId"])
	assert.Equal(t, "Pressotherapy", equipment["name"])

	var usage model.UsageSession
	require.NoError(t, env.db.First(&usage, "appointment_id = ?", appointment.ID).Error)
	assert.Equal(t, model.UsageActive, usage.CurrentStatus)
	require.NotNil(t, usage.EquipmentClinicAssignmentID)
	assert.Equal(t, assignment.ID, *usage.EquipmentClinicAssignmentID)
}

func TestStartAppointmentRequiresSelection(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssignment(t, "SN-0001", &model.SmartPlugDevice{
		DeviceID: "shelly-1", Name: "Plug 1", Online: true, RelayOn: false,
	})
	env.seedAssignment(t, "SN-0002", nil) // no plug, optimistically available
	appointment := env.seedAppointment(t)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "POST", "/api/appointments/"+appointment.ID+"/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["requiresEquipmentSelection"])
	assert.Len(t, body["availableEquipment"], 2)

	// Deferring to the caller must not mutate any state.
	var count int64
	require.NoError(t, env.db.Model(&model.UsageSession{}).Count(&count).Error)
	assert.Zero(t, count)
	var reloaded model.Appointment
	require.NoError(t, env.db.First(&reloaded, "id = ?", appointment.ID).Error)
	assert.Equal(t, model.AppointmentScheduled, reloaded.Status)
}

func TestStartAppointmentAllOccupied(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssignment(t, "SN-0001", &model.SmartPlugDevice{
		DeviceID: "shelly-1", Name: "Plug 1", Online: true, RelayOn: true,
	})
	env.seedAssignment(t, "SN-0002", &model.SmartPlugDevice{
		DeviceID: "shelly-2", Name: "Plug 2", Online: false,
	})
	appointment := env.seedAppointment(t)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "POST", "/api/appointments/"+appointment.ID+"/start", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	var count int64
	require.NoError(t, env.db.Model(&model.UsageSession{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStartAppointmentWithoutEquipmentOverride(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssignment(t, "SN-0001", &model.SmartPlugDevice{
		DeviceID: "shelly-1", Name: "Plug 1", Online: true, RelayOn: true,
	})
	appointment := env.seedAppointment(t)
	token := authToken(t, "user-1", testSystemID)

	// The override starts even though every candidate is occupied.
	w := env.request(t, "POST", "/api/appointments/"+appointment.ID+"/start", token,
		gin.H{"withoutEquipment": true})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	data := body["data"].(map[string]any)
	assert.Equal(t, false, data["requiresEquipment"])
	assert.NotContains(t, data, "equipment")
}

func TestStartAppointmentExplicitAssignmentUnknown(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "POST", "/api/appointments/"+appointment.ID+"/start", token,
		gin.H{"equipmentAssignmentId": "no-such-assignment"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartAppointmentExplicitByEquipmentID(t *testing.T) {
	env := newTestEnv(t)
	assignment := env.seedAssignment(t, "SN-0042", nil)
	appointment := env.seedAppointment(t)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "POST", "/api/appointments/"+appointment.ID+"/start", token,
		gin.H{"equipmentId": env.equipment.ID})
	require.Equal(t, http.StatusOK, w.Code)

	var usage model.UsageSession
	require.NoError(t, env.db.First(&usage, "appointment_id = ?", appointment.ID).Error)
	require.NotNil(t, usage.EquipmentClinicAssignmentID)
	assert.Equal(t, assignment.ID, *usage.EquipmentClinicAssignmentID)
}

func TestGetAppointmentAvailability(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssignment(t, "SN-0001", &model.SmartPlugDevice{
		DeviceID: "shelly-1", Name: "Plug 1", Online: true, RelayOn: true,
	})
	env.seedAssignment(t, "SN-0002", &model.SmartPlugDevice{
		DeviceID: "shelly-2", Name: "Plug 2", Online: true, RelayOn: false,
	})
	appointment := env.seedAppointment(t)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "GET", "/api/appointments/"+appointment.ID+"/equipment-availability", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["totalCount"])
	assert.Equal(t, float64(1), body["availableCount"])

	// Pure read, no session appears.
	var count int64
	require.NoError(t, env.db.Model(&model.UsageSession{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAssignDevice(t *testing.T) {
	env := newTestEnv(t)
	assignment := env.seedAssignment(t, "SN-0042", nil)
	appointment := env.seedAppointment(t)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "POST", "/api/appointments/"+appointment.ID+"/assign-device", token,
		gin.H{"equipmentAssignmentId": assignment.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(45), data["estimatedMinutes"])

	// A second device for the same appointment conflicts.
	other := env.seedAssignment(t, "SN-0043", nil)
	w = env.request(t, "POST", "/api/appointments/"+appointment.ID+"/assign-device", token,
		gin.H{"equipmentAssignmentId": other.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAssignDeviceUnknownAssignment(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "POST", "/api/appointments/"+appointment.ID+"/assign-device", token,
		gin.H{"equipmentAssignmentId": "no-such-assignment"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssignDeviceClaimedByOtherAppointment(t *testing.T) {
	env := newTestEnv(t)
	assignment := env.seedAssignment(t, "SN-0042", nil)
	first := env.seedAppointment(t)
	second := env.seedAppointment(t)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "POST", "/api/appointments/"+first.ID+"/assign-device", token,
		gin.H{"equipmentAssignmentId": assignment.ID})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "POST", "/api/appointments/"+second.ID+"/assign-device", token,
		gin.H{"equipmentAssignmentId": assignment.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateAppointmentDuration(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "POST", "/api/appointments/"+appointment.ID+"/start", token,
		gin.H{"withoutEquipment": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, "PUT", "/api/appointments/"+appointment.ID+"/duration", token,
		gin.H{"estimatedMinutes": 90})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(90), data["estimatedMinutes"])

	// Missing or negative values are rejected.
	w = env.request(t, "PUT", "/api/appointments/"+appointment.ID+"/duration", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.request(t, "PUT", "/api/appointments/"+appointment.ID+"/duration", token,
		gin.H{"estimatedMinutes": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetEquipment(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssignment(t, "SN-0001", nil)
	env.seedAssignment(t, "SN-0002", nil)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "GET", "/api/equipment", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summaries []store.EquipmentSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "Pressotherapy", summaries[0].Name)
	assert.Equal(t, int64(2), summaries[0].TotalAssignments)
	assert.Equal(t, int64(2), summaries[0].ActiveAssignments)
}

func TestGetClinicEquipment(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssignment(t, "SN-0001", &model.SmartPlugDevice{
		DeviceID: "shelly-1", Name: "Plug 1", Online: true, RelayOn: true,
	})
	env.seedAssignment(t, "SN-0002", nil)
	token := authToken(t, "user-1", testSystemID)

	w := env.request(t, "GET", "/api/clinics/"+env.clinic.ID+"/equipment", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var candidates []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &candidates))
	require.Len(t, candidates, 2)

	statuses := map[string]bool{}
	for _, candidate := range candidates {
		statuses[candidate["status"].(string)] = true
	}
	assert.True(t, statuses["occupied"])
	assert.True(t, statuses["no_smart_plug"])
}
