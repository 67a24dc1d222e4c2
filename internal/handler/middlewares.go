package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"time"

	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// routePattern 在路由匹配之后才有值，未匹配的请求统一记为 unmatched
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// logger 记录请求日志和按路由模式统计的耗时
func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		route := routePattern(r)
		h.metrics.ObserveRequest(r.Method, route, rw.StatusCode, duration)
		slog.Info("已处理请求",
			slog.Int("status", rw.StatusCode),
			slog.String("ip", r.RemoteAddr),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", duration),
		)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				slog.Error("请求处理过程中发生 panic", slog.String("route", routePattern(r)), slog.String("stack", string(debug.Stack())))
				h.internalServerError(w, r, fmt.Errorf("panic: %v", v))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(tokenCookieName)
		if err != nil {
			switch {
			case errors.Is(err, http.ErrNoCookie):
				h.errorResponse(w, r, "用户未登录")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		claims, err := h.parseToken(cookie.Value)
		if err != nil {
			h.errorResponse(w, r, "无效的令牌")
			return
		}

		ctx := context.WithValue(r.Context(), RoleCtxKey, claims.Role)
		ctx = context.WithValue(ctx, SubCtxKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// lookup 读取一条记录，不存在时返回 notFound 提示，出错时已经写好了响应
func lookup[T any](h *Handler, w http.ResponseWriter, r *http.Request, notFound string, fetch func() (T, error)) (T, bool) {
	v, err := fetch()
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, notFound)
		default:
			h.internalServerError(w, r, err)
		}
		var zero T
		return zero, false
	}
	return v, true
}

// myInfo 加载令牌对应的用户，停用的账号即使令牌未过期也会被拒绝
func (h *Handler) myInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := strconv.ParseInt(r.Context().Value(SubCtxKey).(string), 10, 64)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}

		me, ok := lookup(h, w, r, "个人信息不存在", func() (*domain.User, error) {
			return h.repository.GetUserByID(sub)
		})
		if !ok {
			return
		}
		if !me.IsActive {
			h.errorResponse(w, r, "账号已停用")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), MyInfoCtx, me)))
	})
}

func (h *Handler) RequiredRole(roles []domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := r.Context().Value(RoleCtxKey).(string)
			if !slices.Contains(roles, domain.Role(role)) {
				h.errorResponse(w, r, "权限不足")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) userInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			h.errorResponse(w, r, "用户ID无效")
			return
		}

		user, ok := lookup(h, w, r, "用户不存在", func() (*domain.User, error) {
			return h.repository.GetUserByID(userID)
		})
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserInfoCtx, user)))
	})
}

func (h *Handler) preventOperateInitialAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Value(UserInfoCtx).(*domain.User).Username == h.config.InitialAdmin.Username {
			h.errorResponse(w, r, "禁止操作初始管理员")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// run 按路由中的 UUID 加载一次优化运行
func (h *Handler) run(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			h.errorResponse(w, r, "运行ID无效")
			return
		}

		run, ok := lookup(h, w, r, "运行不存在", func() (*domain.Run, error) {
			return h.repository.GetRunByID(runID)
		})
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RunCtx, run)))
	})
}

// canOperateRun 只有创建者和管理员可以删除某次运行
func canOperateRun(me *domain.User, run *domain.Run) bool {
	return run.CreatedBy == me.ID || me.Role == domain.RoleAdmin
}

func (h *Handler) preventOperateOthersRun(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		me := r.Context().Value(MyInfoCtx).(*domain.User)
		if !canOperateRun(me, r.Context().Value(RunCtx).(*domain.Run)) {
			h.errorResponse(w, r, "只能操作自己创建的运行")
			return
		}
		next.ServeHTTP(w, r)
	})
}
