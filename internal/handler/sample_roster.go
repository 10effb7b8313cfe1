package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/seed"
)

const defaultSamplePlayers = 40

// GetSampleRoster 下载一份随机生成的名单，可以直接作为创建任务时上传的文件
func (h *Handler) GetSampleRoster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Players  int `validate:"min=1,max=500"`
		NumTeams int `validate:"min=0"`
		Fixed    int `validate:"min=0,ltefield=Players"`
	}
	req.Players = defaultSamplePlayers

	query := r.URL.Query()
	for key, dst := range map[string]*int{"n": &req.Players, "num_teams": &req.NumTeams, "fixed": &req.Fixed} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.errorResponse(w, r, "参数 "+key+" 必须是整数")
			return
		}
		*dst = v
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	roster, err := seed.GenerateRoster(seed.Options{
		Players:  req.Players,
		NumTeams: req.NumTeams,
		Fixed:    req.Fixed,
	})
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	data, err := json.MarshalIndent(roster, "", "    ")
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="players.json"`)
	if _, err := w.Write(data); err != nil {
		h.logInternalServerError(r, err)
	}
}
