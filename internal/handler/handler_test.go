package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/config"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/store"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/supervisor"
)

const fourPlayersJSON = `{
	"fixed_assignments": {},
	"players": [
		{"name": "P1", "avg": 50, "max": 75},
		{"name": "P2", "avg": 55, "max": 80},
		{"name": "P3", "avg": 40, "max": 60},
		{"name": "P4", "avg": 45, "max": 65}
	]
}`

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	handler *Handler
	sup     *supervisor.Supervisor
	cookies []*http.Cookie
}

func newTestServer(t *testing.T, configure ...func(cfg *config.Config)) *testServer {
	t.Helper()

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.Task.DataDir = t.TempDir()
	cfg.Task.MaxGenerations = 10_000_000
	for _, c := range configure {
		c(cfg)
	}

	files := store.NewFileStore(cfg.Task.DataDir)
	reg := prometheus.NewRegistry()
	sup, err := supervisor.New(supervisor.Options{
		Parameters:     *scheduler.DefaultParameters(1),
		MaxGenerations: cfg.Task.MaxGenerations,
		Store:          files,
		Metrics:        metrics.NewPrometheus(reg, "test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, sup.Shutdown(ctx))
	})

	h, err := NewHandler(cfg, sup, files, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	require.NoError(t, err)
	h.RegisterRoutes()

	return &testServer{t: t, handler: h, sup: sup}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.Mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) call(method, path string, body any) envelope {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return decode(s.t, s.do(req))
}

func (s *testServer) createTask(id, numTeams, repeat, filename, content string) envelope {
	s.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(s.t, mw.WriteField("uuid", id))
	require.NoError(s.t, mw.WriteField("num_teams", numTeams))
	require.NoError(s.t, mw.WriteField("repeat", repeat))
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(s.t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(s.t, err)
	}
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/tasks/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return decode(s.t, s.do(req))
}

func (s *testServer) waitFinished(id string) domain.TaskSnapshot {
	s.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := s.sup.Wait(ctx, id)
	require.NoError(s.t, err)
	return snap
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()

	env := s.createTask(id, "2", "50", "players.json", fourPlayersJSON)
	require.True(t, env.Success, env.Message)
	require.Equal(t, id, decodeData[domain.TaskSnapshot](t, env).ID)

	s.waitFinished(id)

	env = s.call(http.MethodGet, "/tasks/"+id+"/progress", nil)
	require.True(t, env.Success)
	snap := decodeData[domain.TaskSnapshot](t, env)
	require.Equal(t, 100.0, snap.Progress)
	require.Equal(t, domain.TaskCompleted, snap.Status)

	env = s.call(http.MethodGet, "/tasks/"+id+"/result", nil)
	require.True(t, env.Success, env.Message)
	body := decodeData[struct {
		Task   domain.TaskSnapshot     `json:"task"`
		Result domain.AssignmentResult `json:"result"`
	}](t, env)
	require.Len(t, body.Result.Teams, 2)
	require.InDelta(t, 95, body.Result.Teams[0].TotalScore, 1e-9)
	require.InDelta(t, 95, body.Result.Teams[1].TotalScore, 1e-9)

	// 交换两个不同队伍的成员
	a := body.Result.Teams[0].Members[0].Name
	b := body.Result.Teams[1].Members[0].Name
	env = s.call(http.MethodPost, "/tasks/"+id+"/swap", map[string]string{"swap_info": a + "," + b})
	require.True(t, env.Success, env.Message)
	revised := decodeData[domain.TaskSnapshot](t, env)
	require.NotEqual(t, body.Task.ResultPath, revised.ResultPath)

	env = s.call(http.MethodGet, "/tasks/"+id+"/result", nil)
	require.True(t, env.Success)
	body2 := decodeData[struct {
		Result domain.AssignmentResult `json:"result"`
	}](t, env)
	require.Equal(t, a+","+b, body2.Result.Parameters.SwapInfo)
	require.Equal(t, body.Task.ResultPath, body2.Result.Parameters.OriginalData)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/tasks/"+id+"/result?format=png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	env = s.call(http.MethodGet, "/tasks/", nil)
	require.True(t, env.Success)
	require.Len(t, decodeData[[]domain.TaskSnapshot](t, env), 1)

	// 已结束的任务取消时什么也不做
	env = s.call(http.MethodPost, "/tasks/"+id+"/cancel", nil)
	require.True(t, env.Success)
	require.Equal(t, "任务已经结束", env.Message)
}

func TestCreateTaskValidation(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Task.MaxGenerations = 100 })
	id := uuid.NewString()

	tests := []struct {
		name     string
		id       string
		numTeams string
		repeat   string
		filename string
	}{
		{"bad uuid", "not-a-uuid", "2", "10", "players.json"},
		{"num_teams not integer", id, "abc", "10", "players.json"},
		{"repeat not integer", id, "2", "", "players.json"},
		{"zero teams", id, "0", "10", "players.json"},
		{"too many generations", id, "2", "101", "players.json"},
		{"missing file", id, "2", "10", ""},
		{"unsupported file type", id, "2", "10", "players.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := s.createTask(tt.id, tt.numTeams, tt.repeat, tt.filename, fourPlayersJSON)
			require.False(t, env.Success)
			require.NotEmpty(t, env.Message)
		})
	}

	env := s.call(http.MethodGet, "/tasks/"+id+"/progress", nil)
	require.False(t, env.Success)
	require.Equal(t, "任务不存在", env.Message)
}

func TestCreateTaskWhileRunning(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()

	env := s.createTask(id, "2", "1000000", "players.json", fourPlayersJSON)
	require.True(t, env.Success, env.Message)

	env = s.createTask(id, "2", "10", "players.json", fourPlayersJSON)
	require.False(t, env.Success)
	require.Equal(t, domain.ErrJobAlreadyRunning.Error(), env.Message)

	env = s.call(http.MethodGet, "/tasks/"+id+"/result", nil)
	require.True(t, env.Success)
	require.Equal(t, "任务仍在进行中", env.Message)

	env = s.call(http.MethodPost, "/tasks/"+id+"/swap", map[string]string{"swap_info": "P1,P2"})
	require.False(t, env.Success)
	require.Equal(t, domain.ErrResultNotReady.Error(), env.Message)

	env = s.call(http.MethodPost, "/tasks/"+id+"/cancel", nil)
	require.True(t, env.Success)
	require.Equal(t, "已请求取消任务", env.Message)

	snap := s.waitFinished(id)
	require.Equal(t, domain.TaskCancelled, snap.Status)
}

func TestUploadsNeverOverwriteEachOther(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()

	first, err := s.handler.saveUpload(id, "players.json", strings.NewReader(fourPlayersJSON))
	require.NoError(t, err)
	second, err := s.handler.saveUpload(id, "players.json", strings.NewReader("{"))
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.True(t, strings.HasSuffix(first, "-players.json"))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	require.Equal(t, fourPlayersJSON, string(data))
}

func TestConcurrentCreateSameTask(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()

	var wg sync.WaitGroup
	var started atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			assert.NoError(t, mw.WriteField("uuid", id))
			assert.NoError(t, mw.WriteField("num_teams", "2"))
			assert.NoError(t, mw.WriteField("repeat", "20"))
			fw, err := mw.CreateFormFile("file", "players.json")
			assert.NoError(t, err)
			_, err = fw.Write([]byte(fourPlayersJSON))
			assert.NoError(t, err)
			assert.NoError(t, mw.Close())

			req := httptest.NewRequest(http.MethodPost, "/tasks/", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			rec := s.do(req)

			var env envelope
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			if env.Success {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	// 第一个任务可能在其他请求到达前就已经结束，因此至少有一个请求成功
	require.GreaterOrEqual(t, started.Load(), int32(1))

	snap := s.waitFinished(id)
	require.Equal(t, domain.TaskCompleted, snap.Status, snap.Error)

	// 被拒绝的请求不会留下名单文件
	dir, err := s.handler.files.JobDir(id)
	require.NoError(t, err)
	rosters, err := filepath.Glob(filepath.Join(dir, "*-players.json"))
	require.NoError(t, err)
	require.Len(t, rosters, int(started.Load()))
}

func TestFailedTaskResult(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()

	env := s.createTask(id, "5", "10", "players.json", fourPlayersJSON)
	require.True(t, env.Success, env.Message)

	snap := s.waitFinished(id)
	require.Equal(t, domain.TaskFailed, snap.Status)

	env = s.call(http.MethodGet, "/tasks/"+id+"/result", nil)
	require.False(t, env.Success)
	require.True(t, strings.HasPrefix(env.Message, "任务失败: "), env.Message)
}

func TestYAMLRosterUpload(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()

	yamlRoster := `
fixed_assignments:
  P1: 0
players:
  - {name: P1, avg: 50, max: 75}
  - {name: P2, avg: 55, max: 80}
  - {name: P3, avg: 40}
  - {name: P4, avg: 45, max: 65}
`
	env := s.createTask(id, "2", "30", "roster.yaml", yamlRoster)
	require.True(t, env.Success, env.Message)

	snap := s.waitFinished(id)
	require.Equal(t, domain.TaskCompleted, snap.Status)

	res, err := s.sup.LoadResult(context.Background(), id)
	require.NoError(t, err)
	require.Contains(t, []string{res.Teams[0].Members[0].Name, res.Teams[0].Members[1].Name}, "P1")
}

func TestSwapValidation(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()

	require.True(t, s.createTask(id, "2", "5", "players.json", fourPlayersJSON).Success)
	s.waitFinished(id)

	for _, body := range []map[string]string{{}, {"swap_info": "P1"}, {"swap_info": "P1,P2,P3"}} {
		env := s.call(http.MethodPost, "/tasks/"+id+"/swap", body)
		require.False(t, env.Success, body)
	}

	env := s.call(http.MethodPost, "/tasks/"+id+"/swap", map[string]string{"swap_info": "P1,nobody"})
	require.False(t, env.Success)
	require.Contains(t, env.Message, "nobody")
}

func TestTaskIDValidation(t *testing.T) {
	s := newTestServer(t)

	env := s.call(http.MethodGet, "/tasks/not-a-uuid/progress", nil)
	require.False(t, env.Success)
	require.Equal(t, "任务ID无效", env.Message)

	env = s.call(http.MethodPost, "/tasks/"+uuid.NewString()+"/cancel", nil)
	require.False(t, env.Success)
	require.Equal(t, "任务不存在", env.Message)
}

func TestSampleRoster(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/sample-roster?n=12&num_teams=3&fixed=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "players.json")

	var roster struct {
		FixedAssignments map[string]int  `json:"fixed_assignments"`
		Players          []domain.Player `json:"players"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roster))
	require.Len(t, roster.Players, 12)
	require.Len(t, roster.FixedAssignments, 3)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/sample-roster", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roster))
	require.Len(t, roster.Players, defaultSamplePlayers)

	for _, query := range []string{"n=abc", "n=0", "n=501", "n=5&fixed=6&num_teams=2", "n=5&fixed=2"} {
		env := decode(t, s.do(httptest.NewRequest(http.MethodGet, "/sample-roster?"+query, nil)))
		require.False(t, env.Success, query)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()
	require.True(t, s.createTask(id, "2", "5", "players.json", fourPlayersJSON).Success)
	s.waitFinished(id)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "test_task_started_total 1")
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.Username = "admin"
		cfg.Auth.Password = "secret-password"
		cfg.JWT.Secret = "jwt-secret"
	})

	env := s.call(http.MethodGet, "/tasks/", nil)
	require.False(t, env.Success)
	require.Equal(t, "用户未登录", env.Message)

	env = s.call(http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "wrong"})
	require.False(t, env.Success)
	require.Equal(t, "用户名不存在或密码错误", env.Message)

	env = s.call(http.MethodPost, "/auth/login", map[string]string{"username": "root", "password": "secret-password"})
	require.False(t, env.Success)

	env = s.call(http.MethodPost, "/auth/login", map[string]string{"username": "admin"})
	require.False(t, env.Success)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"secret-password"}`))
	rec := s.do(req)
	require.True(t, decode(t, rec).Success)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, tokenCookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	s.cookies = cookies
	env = s.call(http.MethodGet, "/tasks/", nil)
	require.True(t, env.Success, env.Message)

	s.cookies = []*http.Cookie{{Name: tokenCookieName, Value: "forged"}}
	env = s.call(http.MethodGet, "/tasks/", nil)
	require.False(t, env.Success)
	require.Equal(t, "无效的令牌", env.Message)

	s.cookies = nil
	rec = s.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	require.True(t, decode(t, rec).Success)
	require.Equal(t, "", rec.Result().Cookies()[0].Value)
}

func TestLoginWithoutAuthEnabled(t *testing.T) {
	s := newTestServer(t)

	env := s.call(http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "x"})
	require.False(t, env.Success)

	// 未开启认证时不需要登录
	env = s.call(http.MethodGet, "/tasks/", nil)
	require.True(t, env.Success)
}
