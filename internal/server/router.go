package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/loykin/frpdeck/internal/auth"
	"github.com/loykin/frpdeck/internal/manager"
	"github.com/loykin/frpdeck/internal/profile"
	"github.com/loykin/frpdeck/internal/render"
	"github.com/loykin/frpdeck/internal/store"
)

var errProfileNotFound = errors.New("profile not found")

// Router provides the control API as an embeddable http.Handler.
// Endpoints (relative to basePath):
//
//	GET  /profiles              PUT /profiles
//	GET  /profiles/:id
//	GET  /profiles/:id/render   POST /profiles/:id/render
//	POST /profiles/:id/start    ?render=false starts the existing config file
//	POST /profiles/:id/stop
//	GET  /profiles/:id/status
//	GET  /profiles/:id/logs
//	GET  /status
type Router struct {
	sup      *manager.Supervisor
	st       store.Store
	basePath string
	logger   *slog.Logger
	auth     *auth.Service

	// serializes read-modify-write of the profile set
	saveMu sync.Mutex
}

func NewRouter(sup *manager.Supervisor, st store.Store, basePath string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sup: sup, st: st, basePath: sanitizeBase(basePath), logger: logger.With("component", "api")}
}

// SetAuth protects every route registered afterwards; nil disables it.
func (r *Router) SetAuth(s *auth.Service) { r.auth = s }

// BasePath is the sanitized prefix the routes are mounted under.
func (r *Router) BasePath() string { return r.basePath }

// Handler returns a gin engine serving the API.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	r.Register(g.Group(r.basePath))
	return g
}

// Register adds the API routes to an existing gin group.
func (r *Router) Register(group *gin.RouterGroup) {
	if r.auth.Enabled() {
		group.Use(r.auth.GinAuth())
	}
	group.GET("/profiles", r.handleGetProfiles)
	group.PUT("/profiles", r.handlePutProfiles)
	group.GET("/profiles/:id", r.handleGetProfile)
	group.GET("/profiles/:id/render", r.handleRender)
	group.POST("/profiles/:id/render", r.handleWriteConfig)
	group.POST("/profiles/:id/start", r.handleStart)
	group.POST("/profiles/:id/stop", r.handleStop)
	group.GET("/profiles/:id/status", r.handleStatus)
	group.GET("/profiles/:id/logs", r.handleLogs)
	group.GET("/status", r.handleStatusAll)
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type pidResp struct {
	PID int `json:"pid"`
}

type pathResp struct {
	Path string `json:"path"`
}

func (r *Router) profileID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !profile.ValidID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid profile id: allowed [A-Za-z0-9._-] and no '..'"})
		return "", false
	}
	return id, true
}

func (r *Router) findProfile(c *gin.Context, id string) (profile.Profile, error) {
	set, err := r.st.Load(c.Request.Context())
	if err != nil {
		return profile.Profile{}, err
	}
	p, ok := set.Find(id)
	if !ok {
		return profile.Profile{}, fmt.Errorf("%w: %s", errProfileNotFound, id)
	}
	return p, nil
}

func (r *Router) handleGetProfiles(c *gin.Context) {
	set, err := r.st.Load(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	if set.Servers == nil {
		set.Servers = []profile.Profile{}
	}
	writeJSON(c, http.StatusOK, set)
}

func (r *Router) handlePutProfiles(c *gin.Context) {
	var set profile.Set
	if err := c.ShouldBindJSON(&set); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := set.Validate(); err != nil {
		writeErr(c, err)
		return
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	if err := r.st.Save(c.Request.Context(), set); err != nil {
		writeErr(c, err)
		return
	}
	if set.FrpcPath != "" && set.FrpcPath != r.sup.Binary() {
		r.sup.SetBinary(set.FrpcPath)
		r.logger.Info("frpc binary updated", "path", set.FrpcPath)
	}
	if set.Servers == nil {
		set.Servers = []profile.Profile{}
	}
	writeJSON(c, http.StatusOK, set)
}

func (r *Router) handleGetProfile(c *gin.Context) {
	id, ok := r.profileID(c)
	if !ok {
		return
	}
	p, err := r.findProfile(c, id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (r *Router) handleRender(c *gin.Context) {
	id, ok := r.profileID(c)
	if !ok {
		return
	}
	p, err := r.findProfile(c, id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeText(c, http.StatusOK, render.Render(p))
}

func (r *Router) handleWriteConfig(c *gin.Context) {
	id, ok := r.profileID(c)
	if !ok {
		return
	}
	p, err := r.findProfile(c, id)
	if err != nil {
		writeErr(c, err)
		return
	}
	path, err := render.WriteFile(r.sup.WorkDir(), p)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, pathResp{Path: path})
}

func (r *Router) handleStart(c *gin.Context) {
	id, ok := r.profileID(c)
	if !ok {
		return
	}
	var (
		pid int
		err error
	)
	if c.Query("render") == "false" {
		pid, err = r.sup.Start(id, r.sup.ConfigPath(id))
	} else {
		var p profile.Profile
		if p, err = r.findProfile(c, id); err == nil {
			pid, err = r.sup.StartProfile(p)
		}
	}
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, pidResp{PID: pid})
}

func (r *Router) handleStop(c *gin.Context) {
	id, ok := r.profileID(c)
	if !ok {
		return
	}
	if err := r.sup.Stop(id); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	id, ok := r.profileID(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, r.sup.Status(id))
}

func (r *Router) handleLogs(c *gin.Context) {
	id, ok := r.profileID(c)
	if !ok {
		return
	}
	out, err := r.sup.ReadLog(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeText(c, http.StatusOK, out)
}

// handleStatusAll reports every tracked id plus every stored profile.
func (r *Router) handleStatusAll(c *gin.Context) {
	sts := r.sup.List()
	seen := make(map[string]struct{}, len(sts))
	for _, st := range sts {
		seen[st.ProfileID] = struct{}{}
	}
	set, err := r.st.Load(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	for _, p := range set.Servers {
		if _, ok := seen[p.ID]; !ok {
			sts = append(sts, r.sup.Status(p.ID))
		}
	}
	writeJSON(c, http.StatusOK, sts)
}
