package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/robolab-hub/robolab-progress-hub/internal/application/command"
	"github.com/robolab-hub/robolab-progress-hub/internal/application/query"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/checklist"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
	"github.com/robolab-hub/robolab-progress-hub/internal/infrastructure/persistence/memory"
)

const testAdminPIN = "4242"

func testServerChecklist() *checklist.Checklist {
	return &checklist.Checklist{
		RobotKey:  "otto",
		RobotName: "Otto",
		Levels: []checklist.Level{
			{
				Key:  "assembly",
				Name: "Assembly",
				Items: []checklist.Item{
					{Key: "frame", Title: "Frame", Difficulty: checklist.DifficultyEasy},
					{Key: "servos", Title: "Servos"},
				},
			},
		},
	}
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	provider := memory.NewChecklistProvider(testServerChecklist())
	locks := memory.NewLockRepository()
	rules := xp.NewStaticRulesProvider(xp.DefaultRules())

	engine := command.NewApplyProgressDeltaHandler(store, rules, provider, nil, nil)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPIN), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.AdminPINHash = string(hash)

	deps := Dependencies{
		GetChecklistHandler: query.NewGetChecklistHandler(provider, locks),
		ListRobotsHandler:   query.NewListRobotsHandler(provider),
		GetProgressHandler:  query.NewGetProgressHandler(store.Repos().Progress()),
		GetStatsHandler:     query.NewGetStatsHandler(store.Repos().Stats(), rules, nil, nil),
		ListStudentsHandler: query.NewListStudentsHandler(store.Repos().Students()),

		SaveProgressHandler:  command.NewSaveProgressHandler(store, engine, nil),
		ResetProgressHandler: command.NewResetProgressHandler(store, rules, provider, nil, nil),
		ResetXPHandler:       command.NewResetXPHandler(store, rules, nil, nil),
		AwardXPHandler:       command.NewAwardXPHandler(store, rules, nil, nil),
		StudentRosterHandler: command.NewStudentRosterHandler(store, nil, nil),
		SetLevelLockHandler:  command.NewSetLevelLockHandler(locks, provider, nil),

		LockRepository: locks,
	}
	return NewServer(cfg, deps), store
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Pin": testAdminPIN}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doJSON(t, srv, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestListRobots(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/robots", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	robots := data["robots"].([]interface{})
	require.Len(t, robots, 1)
}

func TestGetChecklistRequiresRobotParam(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/checklist", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "missing_robot", resp.Error.Code)
}

func TestGetChecklistUnknownRobot(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, _ := doJSON(t, srv, http.MethodGet, "/api/v1/checklist?robot=nosuchbot", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveAndReadProgress(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/progress", map[string]interface{}{
		"student": "s1",
		"robot":   "otto",
		"delta": map[string]interface{}{
			"frame": map[string]string{"status": "done"},
		},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["saved"])
	xpBlock := data["xp"].(map[string]interface{})
	assert.Equal(t, float64(15), xpBlock["xpEarned"])

	rec, resp = doJSON(t, srv, http.MethodGet, "/api/v1/progress?student=s1&robot=otto", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := resp.Data.(map[string]interface{})["items"].(map[string]interface{})
	assert.Equal(t, "done", items["frame"])
}

func TestSaveProgressRejectsBadStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/progress", map[string]interface{}{
		"student": "s1",
		"robot":   "otto",
		"delta": map[string]interface{}{
			"frame": map[string]string{"status": "finished"},
		},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "validation_failed", resp.Error.Code)
}

func TestSaveProgressRejectsMissingStudent(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/progress", map[string]interface{}{
		"robot": "otto",
		"delta": map[string]interface{}{
			"frame": map[string]string{"status": "done"},
		},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "validation_failed", resp.Error.Code)
}

func TestGetStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/v1/progress", map[string]interface{}{
		"student": "s1",
		"robot":   "otto",
		"delta": map[string]interface{}{
			"frame":  map[string]string{"status": "done"},
			"servos": map[string]string{"status": "done"},
		},
	}, nil)

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/xp/stats?student=s1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]interface{})
	student := data["student"].(map[string]interface{})
	// 15 + 10 item XP plus the 25 level bonus.
	assert.Equal(t, float64(50), student["totalXP"])
	assert.Equal(t, float64(2), student["level"])
}

func TestAdminRoutesRequirePIN(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/admin/students", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "pin_required", resp.Error.Code)

	rec, resp = doJSON(t, srv, http.MethodGet, "/api/v1/admin/students", nil, map[string]string{"X-Admin-Pin": "0000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "pin_invalid", resp.Error.Code)

	rec, _ = doJSON(t, srv, http.MethodGet, "/api/v1/admin/students", nil, adminHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminDisabledWithoutHash(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.config.AdminPINHash = ""

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/admin/students", nil, adminHeaders())
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "admin_disabled", resp.Error.Code)
}

func TestAdminStudentLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doJSON(t, srv, http.MethodPost, "/api/v1/admin/students",
		map[string]string{"displayName": "Aigerim"}, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)
	id := resp.Data.(map[string]interface{})["id"].(string)
	require.NotEmpty(t, id)

	rec, _ = doJSON(t, srv, http.MethodPut, "/api/v1/admin/students/"+id,
		map[string]string{"displayName": "Aigerim K."}, adminHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = doJSON(t, srv, http.MethodGet, "/api/v1/admin/students", nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	students := resp.Data.(map[string]interface{})["students"].([]interface{})
	require.Len(t, students, 1)
	assert.Equal(t, "Aigerim K.", students[0].(map[string]interface{})["displayName"])

	rec, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/admin/students/"+id, nil, adminHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/admin/students/"+id, nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminResetAndAward(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/v1/progress", map[string]interface{}{
		"student": "s1",
		"robot":   "otto",
		"delta": map[string]interface{}{
			"frame": map[string]string{"status": "done"},
		},
	}, nil)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/admin/students/s1/award",
		map[string]interface{}{"robotKey": "otto", "xp": 40, "reason": "extra effort"}, adminHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/v1/admin/students/s1/reset",
		map[string]interface{}{"action": "reset_xp", "robotKey": "otto", "scope": "robot"}, adminHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/xp/stats?student=s1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	student := resp.Data.(map[string]interface{})["student"].(map[string]interface{})
	assert.Equal(t, float64(0), student["totalXP"])
}

func TestLevelLocks(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/admin/levels", map[string]interface{}{
		"robotKey": "otto",
		"levelKey": "assembly",
		"unlocked": true,
	}, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doJSON(t, srv, http.MethodGet, "/api/v1/admin/levels?robot=otto", nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	locks := resp.Data.(map[string]interface{})["locks"].(map[string]interface{})
	assert.Equal(t, true, locks["assembly"])
}

func TestSelectionCookies(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/selection",
		map[string]string{"student": "s1", "robot": "otto"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}
	require.Contains(t, byName, "rlh_student")
	require.Contains(t, byName, "rlh_robot")
	assert.Equal(t, "s1", byName["rlh_student"].Value)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/selection", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "s1", fmt.Sprint(data["student"]))
	assert.Equal(t, "otto", fmt.Sprint(data["robot"]))
}
