package yumi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeController answers the RWS calls New/Recover/Close make with a
// configurable state, so the yumi package's init/recovery/teardown
// sequences can be exercised without a real controller.
type fakeController struct {
	mu sync.Mutex

	opMode      string
	ctrlState   string
	execState   string
	tasksStar   bool
	startCalls  int
	stopCalls   int
	motorsOn    int
}

func newFakeController() *fakeController {
	return &fakeController{
		opMode:    "AUTO",
		ctrlState: "motoron",
		execState: "stopped",
		tasksStar: true,
	}
}

func startFakeController(t *testing.T, fc *fakeController) *httptest.Server {
	t.Helper()
	authorized := map[string]bool{}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		if !authorized[key] && r.Header.Get("Authorization") == "" {
			w.Header().Set("WWW-Authenticate", `Digest realm="RobotWare", qop="auth", nonce="fakenonce", algorithm=MD5`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		authorized[key] = true

		fc.mu.Lock()
		defer fc.mu.Unlock()

		switch {
		case r.URL.Path == "/rw/panel/opmode" && r.Method == http.MethodGet:
			writeState(w, map[string]any{"opmode": fc.opMode})
		case r.URL.Path == "/rw/panel/ctrlstate" && r.Method == http.MethodGet:
			writeState(w, map[string]any{"ctrlstate": fc.ctrlState})
		case r.URL.Path == "/rw/panel/ctrlstate" && r.Method == http.MethodPost:
			fc.motorsOn++
			fc.ctrlState = "motoron"
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/rw/rapid/execution" && r.Method == http.MethodGet:
			writeState(w, map[string]any{"ctrlexecstate": fc.execState})
		case r.URL.Path == "/rw/rapid/execution" && r.Method == http.MethodPost && r.URL.Query().Get("action") == "start":
			fc.startCalls++
			fc.execState = "running"
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/rw/rapid/execution" && r.Method == http.MethodPost && r.URL.Query().Get("action") == "stop":
			fc.stopCalls++
			fc.execState = "stopped"
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/rw/rapid/execution" && r.Method == http.MethodPost && r.URL.Query().Get("action") == "resetpp":
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/rw/rapid/tasks" && r.Method == http.MethodGet:
			state := "stop"
			if fc.tasksStar {
				state = "star"
			}
			writeTasks(w, state)
		case r.Method == http.MethodPost && r.URL.Query().Get("action") == "activate":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeState(w http.ResponseWriter, state map[string]any) {
	env := map[string]any{"_embedded": map[string]any{"_state": []map[string]any{state}}}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(env)
}

func writeTasks(w http.ResponseWriter, execState string) {
	env := map[string]any{"_embedded": map[string]any{"_state": []map[string]any{
		{"name": "T_ROB_L", "excstate": execState},
		{"name": "T_ROB_R", "excstate": execState},
	}}}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(env)
}
