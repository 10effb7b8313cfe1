package handler

type ContextKey string

var (
	SubCtxKey  ContextKey = "sub"
	TaskCtxKey ContextKey = "task"
)
