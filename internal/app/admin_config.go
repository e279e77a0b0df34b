package app

import (
	"html/template"
	"log"
	"net/http"
	"sort"

	"liveconf/internal/config"
	"liveconf/internal/forms"
	"liveconf/internal/model"
	"liveconf/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

const (
	// ChangeListPath 配置修改页
	ChangeListPath = "/admin/liveconf/config/"
	// AddPath 与修改页共用同一处理函数
	AddPath = "/admin/liveconf/config/add/"

	// SavedMessage 保存成功后的提示
	SavedMessage = "Live settings updated successfully."

	flashCookie = "liveconf_flash"
)

// helpTextPolicy 帮助文本允许少量内联标签
var helpTextPolicy = bluemonday.UGCPolicy()

// buildRows 按名称排序生成展示行
func buildRows(form *forms.Form) []model.Row {
	fs := form.Fields()
	rows := make([]model.Row, 0, len(fs))
	for _, f := range fs {
		value := f.FormattedInitial()
		def := f.FormattedDefault()
		rows = append(rows, model.Row{
			Name:     f.Name(),
			Type:     f.Type,
			Default:  def,
			HelpText: sanitizeHelpText(f.Setting.HelpText),
			Value:    value,
			Modified: value != def,
			Field:    f,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

// sanitizeHelpText 过滤危险标签后作为HTML输出
func sanitizeHelpText(s string) template.HTML {
	return template.HTML(helpTextPolicy.Sanitize(s)) //nolint:gosec // 已由 bluemonday 过滤
}

// HandleConfigView 配置修改页：GET 渲染；POST 校验后保存并重定向，或带错误重新渲染
func (s *Server) HandleConfigView(c *gin.Context) {
	user := CurrentUser(c)
	if !s.admin.HasChangePermission(user) {
		c.String(http.StatusForbidden, "403 Forbidden")
		return
	}

	ctx := c.Request.Context()
	form, err := s.configService.NewForm(ctx)
	if err != nil {
		log.Printf("[ERROR] 构造配置表单失败: %v", err)
		c.String(http.StatusInternalServerError, "500 Internal Server Error")
		return
	}

	if c.Request.Method == http.MethodPost {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.DefaultMaxFormBytes)
		if err := c.Request.ParseForm(); err != nil {
			c.String(http.StatusBadRequest, "400 Bad Request")
			return
		}
		if !VerifyCSRF(c) {
			c.String(http.StatusForbidden, "CSRF verification failed")
			return
		}

		form.Bind(c.Request.PostForm)
		if form.IsValid() {
			saved, err := form.Save(ctx, s.configService)
			if err != nil {
				log.Printf("[ERROR] 保存配置失败: %v", err)
				c.String(http.StatusInternalServerError, "500 Internal Server Error")
				return
			}
			util.SafePrintf("[INFO] 用户 %s 修改配置: %v", user.Username, saved)
			setFlash(c, SavedMessage)
			c.Redirect(http.StatusFound, c.Request.URL.Path)
			return
		}
	}

	c.HTML(http.StatusOK, "change_list.html", gin.H{
		"Title":         "Live settings",
		"User":          user,
		"Rows":          buildRows(form),
		"Form":          form,
		"Errors":        form.Errors(),
		"VersionErrors": form.VersionErrors(),
		"CSRFField":     CSRFField,
		"CSRFToken":     CSRFToken(c),
		"Flash":         popFlash(c),
		"HasAdd":        s.admin.HasAddPermission(user),
		"HasDelete":     s.admin.HasDeletePermission(user),
	})
}

func setFlash(c *gin.Context, msg string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, msg, 60, "/admin/", "", c.Request.TLS != nil, true)
}

// popFlash 读取并清除一次性提示
func popFlash(c *gin.Context) string {
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return ""
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, "", -1, "/admin/", "", c.Request.TLS != nil, true)
	return raw
}
