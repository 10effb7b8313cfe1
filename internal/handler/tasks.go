package handler

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/render"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/result"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/utils"
)

// CreateTask 接收 multipart 表单：uuid、file（名单文件）、num_teams、repeat
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxUploadSize)
	if err := r.ParseMultipartForm(h.config.Server.MaxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.errorResponse(w, r, fmt.Sprintf("上传的文件不能超过 %d 字节", maxBytesErr.Limit))
			return
		}
		h.errorResponse(w, r, "无法解析表单")
		return
	}

	var req struct {
		UUID     string `validate:"required,uuid"`
		NumTeams int    `validate:"required,min=1"`
		Repeat   int    `validate:"required,min=1"`
	}

	req.UUID = r.FormValue("uuid")
	var err error
	if req.NumTeams, err = strconv.Atoi(r.FormValue("num_teams")); err != nil {
		h.errorResponse(w, r, "队伍数量必须是整数")
		return
	}
	if req.Repeat, err = strconv.Atoi(r.FormValue("repeat")); err != nil {
		h.errorResponse(w, r, "迭代次数必须是整数")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if req.Repeat > h.config.Task.MaxGenerations {
		h.errorResponse(w, r, fmt.Sprintf("迭代次数不能超过 %d", h.config.Task.MaxGenerations))
		return
	}

	// 同一个任务还在运行时不覆盖它正在使用的名单
	if snap, err := h.supervisor.Poll(req.UUID); err == nil && !snap.Finished() {
		h.errorResponse(w, r, domain.ErrJobAlreadyRunning.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorResponse(w, r, "缺少名单文件")
		return
	}
	defer file.Close()

	filename, err := utils.ValidateRosterFilename(header.Filename)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	rosterPath, err := h.saveUpload(req.UUID, filename, file)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.supervisor.Start(req.UUID, req.NumTeams, req.Repeat, rosterPath); err != nil {
		_ = os.Remove(rosterPath)
		h.taskError(w, r, err)
		return
	}

	snap, err := h.supervisor.Poll(req.UUID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "任务已开始", snap)
}

// saveUpload 把名单保存为 <任务目录>/<uuid v7>-<文件名>
// 每次上传都是新文件，正在运行的任务读取的名单不会被之后的请求覆盖
func (h *Handler) saveUpload(taskID, filename string, src io.Reader) (string, error) {
	dir, err := h.files.JobDir(taskID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, id.String()+"-"+filename)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}

	return path, nil
}

func (h *Handler) GetAllTasks(w http.ResponseWriter, r *http.Request) {
	snaps := h.supervisor.Snapshots()
	slices.SortFunc(snaps, func(a, b domain.TaskSnapshot) int {
		return cmp.Compare(a.ID, b.ID)
	})

	h.successResponse(w, r, "获取所有任务成功", snaps)
}

func (h *Handler) GetTaskProgress(w http.ResponseWriter, r *http.Request) {
	snap := r.Context().Value(TaskCtxKey).(domain.TaskSnapshot)

	h.successResponse(w, r, "获取任务进度成功", snap)
}

func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	snap := r.Context().Value(TaskCtxKey).(domain.TaskSnapshot)

	if err := h.supervisor.Cancel(snap.ID); err != nil {
		h.taskError(w, r, err)
		return
	}

	if snap.Finished() {
		h.successResponse(w, r, "任务已经结束", snap)
		return
	}
	h.successResponse(w, r, "已请求取消任务", snap)
}

// GetTaskResult 任务结束后返回分组结果，format=png 时返回渲染后的图片；否则返回当前进度
func (h *Handler) GetTaskResult(w http.ResponseWriter, r *http.Request) {
	snap := r.Context().Value(TaskCtxKey).(domain.TaskSnapshot)

	if !snap.Finished() {
		h.successResponse(w, r, "任务仍在进行中", snap)
		return
	}
	if snap.ResultPath == "" {
		msg := "任务没有生成结果"
		if snap.Error != "" {
			msg = "任务失败: " + snap.Error
		}
		h.errorResponse(w, r, msg)
		return
	}

	res, err := h.supervisor.LoadResult(r.Context(), snap.ID)
	if err != nil {
		h.taskError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "png" {
		w.Header().Set("Content-Type", "image/png")
		if err := render.WritePNG(w, res); err != nil {
			h.logInternalServerError(r, err)
		}
		return
	}

	h.successResponse(w, r, "获取任务结果成功", map[string]any{
		"task":   snap,
		"result": res,
	})
}

func (h *Handler) SwapMembers(w http.ResponseWriter, r *http.Request) {
	snap := r.Context().Value(TaskCtxKey).(domain.TaskSnapshot)

	var req struct {
		SwapInfo string `json:"swap_info" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if _, err := result.ParseSwapInfo(req.SwapInfo); err != nil {
		h.badRequest(w, r, err)
		return
	}

	updated, err := h.supervisor.Revise(r.Context(), snap.ID, req.SwapInfo)
	if err != nil {
		h.taskError(w, r, err)
		return
	}

	h.successResponse(w, r, "交换成员成功", updated)
}
