package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/config"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/store"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/supervisor"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	validate     *validator.Validate
	config       *config.Config
	translator   ut.Translator
	supervisor   *supervisor.Supervisor
	files        *store.FileStore // 上传的名单保存在这里
	metrics      http.Handler
	passwordHash []byte

	Mux *chi.Mux
}

// NewHandler 创建 handler，metrics 为 nil 时不注册 /metrics
func NewHandler(cfg *config.Config, sup *supervisor.Supervisor, files *store.FileStore, metrics http.Handler) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	h := &Handler{
		validate:   validate,
		config:     cfg,
		translator: trans,
		supervisor: sup,
		files:      files,
		metrics:    metrics,

		Mux: chi.NewRouter(),
	}

	if cfg.Auth.Enabled {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Auth.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		h.passwordHash = hash
	}

	return h, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	if h.metrics != nil {
		h.Mux.Handle("/metrics", h.metrics)
	}

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 开启认证时，以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		if h.config.Auth.Enabled {
			r.Use(h.auth)
		}

		r.Get("/sample-roster", h.GetSampleRoster)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", h.CreateTask)
			r.Get("/", h.GetAllTasks)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(h.task)
				r.Get("/progress", h.GetTaskProgress)
				r.Post("/cancel", h.CancelTask)
				r.Get("/result", h.GetTaskResult)
				r.Post("/swap", h.SwapMembers)
			})
		})
	})
}
