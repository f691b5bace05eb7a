package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/robolab-hub/robolab-progress-hub/internal/application/command"
	"github.com/robolab-hub/robolab-progress-hub/internal/application/query"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/progress"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/shared"
	"github.com/robolab-hub/robolab-progress-hub/pkg/logger"
)

// Selection cookie names. The UI stores the picked student and robot in
// cookies so a shared classroom tablet remembers who is using it.
const (
	cookieStudent = "rlh_student"
	cookieRobot   = "rlh_robot"

	selectionCookieMaxAge = 180 * 24 * time.Hour
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "robolab-progress-hub",
		"status":  "running",
		"uptime":  s.Uptime().String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports readiness: healthy only when every configured backend
// answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	probe := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(r.Context()); err != nil {
			checks[name] = "down: " + err.Error()
			healthy = false
		} else {
			checks[name] = "up"
		}
	}
	probe("postgres", s.deps.Postgres)
	probe("redis", s.deps.Redis)

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{"ready": healthy, "checks": checks})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT-FACING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListRobots(w http.ResponseWriter, r *http.Request) {
	robots, err := s.deps.ListRobotsHandler.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"robots": robots})
}

func (s *Server) handleGetChecklist(w http.ResponseWriter, r *http.Request) {
	robotKey := r.URL.Query().Get("robot")
	if robotKey == "" {
		writeJSONError(w, http.StatusBadRequest, "missing_robot", "robot query parameter is required")
		return
	}

	resp, err := s.deps.GetChecklistHandler.Handle(r.Context(), query.GetChecklistQuery{
		RobotKey:      robotKey,
		Course:        getQueryParam(r, "course", "default"),
		IncludeLocked: getQueryParamBool(r, "includeLocked"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student")
	robotKey := r.URL.Query().Get("robot")
	if studentID == "" || robotKey == "" {
		writeJSONError(w, http.StatusBadRequest, "missing_params", "student and robot query parameters are required")
		return
	}

	statuses, err := s.deps.GetProgressHandler.Handle(r.Context(), query.GetProgressQuery{
		StudentID: studentID,
		RobotKey:  robotKey,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": statuses})
}

type saveProgressRequest struct {
	Student string                      `json:"student"`
	Robot   string                      `json:"robot"`
	Delta   map[string]saveProgressItem `json:"delta"`
}

type saveProgressItem struct {
	Status  string `json:"status"`
	Payload string `json:"payload,omitempty"`
}

// handleSaveProgress persists item statuses and triggers XP scoring. A
// scoring failure never fails the save: the response then simply carries no
// xp block.
func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	var req saveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return
	}

	items := make(map[string]command.SaveProgressItem, len(req.Delta))
	for key, it := range req.Delta {
		items[key] = command.SaveProgressItem{
			Status:  progress.Status(it.Status),
			Payload: it.Payload,
		}
	}

	result, err := s.deps.SaveProgressHandler.Handle(r.Context(), command.SaveProgressCommand{
		StudentID: req.Student,
		RobotKey:  req.Robot,
		Items:     items,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	payload := map[string]interface{}{"saved": result.Saved}
	if result.XP != nil {
		payload["xp"] = map[string]interface{}{
			"xpEarned":        result.XP.XPEarned,
			"itemsAwarded":    result.XP.ItemsAwarded,
			"levelsCompleted": result.XP.LevelsCompleted,
			"tiersGranted":    result.XP.TiersGranted,
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student")
	if studentID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing_student", "student query parameter is required")
		return
	}

	resp, err := s.deps.GetStatsHandler.Handle(r.Context(), query.GetStatsQuery{StudentID: studentID})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// SELECTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	selection := map[string]string{}
	if c, err := r.Cookie(cookieStudent); err == nil {
		selection["student"] = c.Value
	}
	if c, err := r.Cookie(cookieRobot); err == nil {
		selection["robot"] = c.Value
	}
	writeJSON(w, http.StatusOK, selection)
}

type setSelectionRequest struct {
	Student string `json:"student"`
	Robot   string `json:"robot"`
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req setSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return
	}

	setCookie := func(name, value string) {
		cookie := &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			MaxAge:   int(selectionCookieMaxAge.Seconds()),
			SameSite: http.SameSiteLaxMode,
		}
		if value == "" {
			cookie.MaxAge = -1
		}
		http.SetCookie(w, cookie)
	}
	setCookie(cookieStudent, req.Student)
	setCookie(cookieRobot, req.Robot)

	writeJSON(w, http.StatusOK, map[string]string{"student": req.Student, "robot": req.Robot})
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.deps.ListStudentsHandler.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	type studentView struct {
		ID          string    `json:"id"`
		DisplayName string    `json:"displayName"`
		CreatedAt   time.Time `json:"createdAt"`
	}
	views := make([]studentView, 0, len(students))
	for _, st := range students {
		views = append(views, studentView{ID: st.ID, DisplayName: st.DisplayName, CreatedAt: st.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"students": views})
}

type createStudentRequest struct {
	DisplayName string `json:"displayName"`
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return
	}

	st, err := s.deps.StudentRosterHandler.Create(r.Context(), req.DisplayName)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":          st.ID,
		"displayName": st.DisplayName,
	})
}

type bulkCreateRequest struct {
	DisplayNames []string `json:"displayNames"`
}

func (s *Server) handleBulkCreateStudents(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return
	}

	students, err := s.deps.StudentRosterHandler.BulkCreate(r.Context(), req.DisplayNames)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"created": len(students), "students": students})
}

func (s *Server) handleRenameStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return
	}

	if err := s.deps.StudentRosterHandler.Rename(r.Context(), r.PathValue("id"), req.DisplayName); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.StudentRosterHandler.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
}

type resetRequest struct {
	Action         string `json:"action"` // reset_progress | reset_xp
	RobotKey       string `json:"robotKey"`
	Scope          string `json:"scope,omitempty"`          // reset_xp: robot | student
	UpToLevelIndex *int   `json:"upToLevelIndex,omitempty"` // reset_progress only
}

// handleResetStudent dispatches the two reset operations. Both recompute
// aggregates from what remains; an error means nothing was changed.
func (s *Server) handleResetStudent(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return
	}
	studentID := r.PathValue("id")

	switch req.Action {
	case "reset_progress":
		result, err := s.deps.ResetProgressHandler.Handle(r.Context(), command.ResetProgressCommand{
			StudentID:      studentID,
			RobotKey:       req.RobotKey,
			UpToLevelIndex: req.UpToLevelIndex,
		})
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case "reset_xp":
		scope := command.ResetScope(req.Scope)
		if scope == "" {
			scope = command.ResetScopeRobot
		}
		result, err := s.deps.ResetXPHandler.Handle(r.Context(), command.ResetXPCommand{
			StudentID: studentID,
			Scope:     scope,
			RobotKey:  req.RobotKey,
		})
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		writeJSONError(w, http.StatusBadRequest, "invalid_action", "action must be reset_progress or reset_xp")
	}
}

type awardRequest struct {
	RobotKey string `json:"robotKey"`
	XP       int    `json:"xp"`
	Reason   string `json:"reason"`
}

func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return
	}

	result, err := s.deps.AwardXPHandler.Handle(r.Context(), command.AwardXPCommand{
		StudentID: r.PathValue("id"),
		RobotKey:  req.RobotKey,
		XP:        req.XP,
		Reason:    req.Reason,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetLevelLocks(w http.ResponseWriter, r *http.Request) {
	robotKey := r.URL.Query().Get("robot")
	if robotKey == "" {
		writeJSONError(w, http.StatusBadRequest, "missing_robot", "robot query parameter is required")
		return
	}

	locks, err := s.deps.LockRepository.Locks(r.Context(), robotKey, getQueryParam(r, "course", "default"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"locks": locks})
}

type setLockRequest struct {
	RobotKey string `json:"robotKey"`
	Course   string `json:"course"`
	LevelKey string `json:"levelKey"`
	Unlocked bool   `json:"unlocked"`
}

func (s *Server) handleSetLevelLock(w http.ResponseWriter, r *http.Request) {
	var req setLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return
	}
	if req.Course == "" {
		req.Course = "default"
	}

	err := s.deps.SetLevelLockHandler.Handle(r.Context(), command.SetLevelLockCommand{
		RobotKey: req.RobotKey,
		Course:   req.Course,
		LevelKey: req.LevelKey,
		Unlocked: req.Unlocked,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain errors to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsAlreadyExists(err):
		writeJSONError(w, http.StatusConflict, "already_exists", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		s.logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
