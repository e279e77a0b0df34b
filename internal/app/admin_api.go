package app

import (
	"log"
	"net/http"

	"liveconf/internal/errors"
	"liveconf/internal/forms"
	"liveconf/internal/model"
	"liveconf/internal/util"

	"github.com/gin-gonic/gin"
)

// ConfigListResponse 配置列表及当前版本指纹
type ConfigListResponse struct {
	Rows    []model.Row `json:"rows"`
	Version string      `json:"version"`
}

// ConfigUpdateRequest 批量修改请求；未出现的配置项保持当前值
type ConfigUpdateRequest struct {
	Version string            `json:"version"`
	Values  map[string]string `json:"values"`
}

// ConfigUpdateResponse 修改结果
type ConfigUpdateResponse struct {
	Changed []string `json:"changed"`
	Version string   `json:"version"`
}

// requireChange API 权限检查
func (s *Server) requireChange(c *gin.Context) (*model.User, bool) {
	user := CurrentUser(c)
	if !s.admin.HasChangePermission(user) {
		username := ""
		if user != nil {
			username = user.Username
		}
		RespondError(c, http.StatusForbidden, errors.PermissionDenied(username))
		return nil, false
	}
	return user, true
}

// HandleListConfig GET /admin/api/config
func (s *Server) HandleListConfig(c *gin.Context) {
	if _, ok := s.requireChange(c); !ok {
		return
	}
	form, err := s.configService.NewForm(c.Request.Context())
	if err != nil {
		log.Printf("[ERROR] 读取配置失败: %v", err)
		RespondError(c, http.StatusInternalServerError, err)
		return
	}
	RespondJSON(c, http.StatusOK, ConfigListResponse{Rows: buildRows(form), Version: form.Version()})
}

// HandleGetConfig GET /admin/api/config/:name
func (s *Server) HandleGetConfig(c *gin.Context) {
	if _, ok := s.requireChange(c); !ok {
		return
	}
	name := c.Param("name")
	if _, ok := s.configService.Schema().Lookup(name); !ok {
		RespondError(c, http.StatusNotFound, errors.UnknownSetting(name))
		return
	}
	form, err := s.configService.NewForm(c.Request.Context())
	if err != nil {
		log.Printf("[ERROR] 读取配置失败: %v", err)
		RespondError(c, http.StatusInternalServerError, err)
		return
	}
	for _, row := range buildRows(form) {
		if row.Name == name {
			RespondJSON(c, http.StatusOK, row)
			return
		}
	}
	RespondError(c, http.StatusNotFound, errors.UnknownSetting(name))
}

// HandleUpdateConfig POST /admin/api/config
// 与页面表单走同一套校验：字段清洗 + 版本指纹比对
func (s *Server) HandleUpdateConfig(c *gin.Context) {
	user, ok := s.requireChange(c)
	if !ok {
		return
	}
	if !VerifyCSRF(c) {
		RespondErrorMsg(c, http.StatusForbidden, "CSRF verification failed")
		return
	}

	var req ConfigUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		RespondError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	form, err := s.configService.NewForm(ctx)
	if err != nil {
		log.Printf("[ERROR] 构造配置表单失败: %v", err)
		RespondError(c, http.StatusInternalServerError, err)
		return
	}

	data := form.InitialData()
	data.Set(forms.VersionField, req.Version)
	for name, v := range req.Values {
		if _, ok := form.Field(name); !ok {
			RespondError(c, http.StatusBadRequest, errors.UnknownSetting(name))
			return
		}
		data.Set(name, v)
	}
	form.Bind(data)

	if !form.IsValid() {
		if form.HasConcurrentModification() {
			RespondAppError(c, http.StatusConflict, errors.ConcurrentModification(), nil)
			return
		}
		fieldErrors := form.Errors()
		RespondAppError(c, http.StatusBadRequest, errors.ValidationFailed(fieldErrors), fieldErrors)
		return
	}

	changed, err := form.Save(ctx, s.configService)
	if err != nil {
		log.Printf("[ERROR] 保存配置失败: %v", err)
		RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if changed == nil {
		changed = []string{}
	}
	util.SafePrintf("[INFO] 用户 %s 通过API修改配置: %v", user.Username, changed)

	after, err := s.configService.NewForm(ctx)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, err)
		return
	}
	RespondJSON(c, http.StatusOK, ConfigUpdateResponse{Changed: changed, Version: after.Version()})
}

// HandleResetConfig POST /admin/api/config/:name/reset
func (s *Server) HandleResetConfig(c *gin.Context) {
	user, ok := s.requireChange(c)
	if !ok {
		return
	}
	if !VerifyCSRF(c) {
		RespondErrorMsg(c, http.StatusForbidden, "CSRF verification failed")
		return
	}

	name := c.Param("name")
	if err := s.configService.Reset(c.Request.Context(), name); err != nil {
		if errors.HasErrorCode(err, errors.ErrCodeUnknownSetting) {
			RespondError(c, http.StatusNotFound, err)
			return
		}
		log.Printf("[ERROR] 重置配置 %s 失败: %v", name, err)
		RespondError(c, http.StatusInternalServerError, err)
		return
	}
	util.SafePrintf("[INFO] 用户 %s 重置配置 %s", user.Username, name)
	s.HandleGetConfig(c)
}
